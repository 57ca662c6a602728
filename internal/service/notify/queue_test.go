package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"PerpScout/internal/domain/models"
)

type captureQueue struct {
	msgType string
	payload interface{}
	err     error
}

func (q *captureQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.msgType, q.payload = msgType, payload
	return q.err
}

type captureNotifier struct {
	recs []models.Recommendation
}

func (n *captureNotifier) Notify(_ context.Context, recs []models.Recommendation) error {
	n.recs = recs
	return nil
}

func TestQueuedEnqueuesDigest(t *testing.T) {
	q := &captureQueue{}
	n := NewQueued(q)

	if err := n.Notify(context.Background(), []models.Recommendation{sampleRec()}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if q.msgType != DigestType {
		t.Fatalf("type = %q, want %q", q.msgType, DigestType)
	}
	p, ok := q.payload.(digestPayload)
	if !ok {
		t.Fatalf("payload is %T", q.payload)
	}
	if len(p.Entries) != 1 || p.Entries[0].Symbol != "BTCUSDT" {
		t.Fatalf("entries = %+v", p.Entries)
	}
}

func TestQueuedSkipsEmptyDigest(t *testing.T) {
	q := &captureQueue{err: errors.New("queue down")}
	if err := NewQueued(q).Notify(context.Background(), nil); err != nil {
		t.Fatalf("empty digest should not touch the queue: %v", err)
	}
}

func TestQueuedPropagatesQueueError(t *testing.T) {
	q := &captureQueue{err: errors.New("queue down")}
	if err := NewQueued(q).Notify(context.Background(), []models.Recommendation{sampleRec()}); err == nil {
		t.Fatal("queue error was swallowed")
	}
}

// The worker hands payloads over as json.RawMessage after a redis round
// trip; the job must rebuild the digest from that form.
func TestDigestJobHandlesRawPayload(t *testing.T) {
	rec := sampleRec()
	q := &captureQueue{}
	if err := NewQueued(q).Notify(context.Background(), []models.Recommendation{rec}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	b, err := json.Marshal(q.payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	inner := &captureNotifier{}
	job := NewDigestJob(inner)
	if job.Type() != DigestType {
		t.Fatalf("job type = %q", job.Type())
	}
	if err := job.Handle(context.Background(), json.RawMessage(b)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(inner.recs) != 1 {
		t.Fatalf("inner got %d recommendations", len(inner.recs))
	}
	got := inner.recs[0]
	if got.Signal.Symbol != rec.Signal.Symbol || got.Signal.Side != rec.Signal.Side {
		t.Fatalf("signal identity lost: %+v", got.Signal)
	}
	if got.Structure.Entry != rec.Structure.Entry || got.Structure.StopLoss != rec.Structure.StopLoss {
		t.Fatalf("structure lost: %+v", got.Structure)
	}
}

func TestDigestJobRejectsGarbage(t *testing.T) {
	job := NewDigestJob(&captureNotifier{})
	if err := job.Handle(context.Background(), 42); err == nil {
		t.Fatal("numeric payload accepted")
	}
}
