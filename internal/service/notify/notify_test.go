package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PerpScout/internal/domain/models"
	pkghttp "PerpScout/pkg/http"
)

func sampleRec() models.Recommendation {
	return models.Recommendation{
		Signal: models.Signal{
			Symbol:     "BTCUSDT",
			Side:       models.SideLong,
			Score:      87,
			Confidence: 92,
			Regime:     models.RegimeBreakout,
			Style:      models.StyleTrend,
		},
		Structure: models.TradeStructure{
			Entry:            97000.5,
			TakeProfit:       99500,
			StopLoss:         95800,
			PositionSize:     0.0077,
			MarginRequired:   37.36,
			LiquidationPrice: 92635,
		},
	}
}

func TestTelegramSendsFormPerRecommendation(t *testing.T) {
	var got []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bottoken123/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got = append(got, map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"text":       r.PostForm.Get("text"),
			"parse_mode": r.PostForm.Get("parse_mode"),
		})
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("token123", "42", pkghttp.NewClient(pkghttp.WithTimeout(2*time.Second)))
	tg.base = srv.URL

	if err := tg.Notify(context.Background(), []models.Recommendation{sampleRec(), sampleRec()}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sends, want 2", len(got))
	}
	first := got[0]
	if first["chat_id"] != "42" || first["parse_mode"] != "HTML" {
		t.Fatalf("form = %v", first)
	}
	for _, frag := range []string{"BTCUSDT", "long", "97000.5", "99500", "95800"} {
		if !strings.Contains(first["text"], frag) {
			t.Fatalf("message missing %q:\n%s", frag, first["text"])
		}
	}
}

func TestDiscordSendsJSONContent(t *testing.T) {
	var contents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var m map[string]string
		if err := json.Unmarshal(b, &m); err != nil {
			t.Errorf("payload not json: %v", err)
		}
		contents = append(contents, m["content"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, pkghttp.NewClient(pkghttp.WithTimeout(2*time.Second)))
	if err := d.Notify(context.Background(), []models.Recommendation{sampleRec()}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(contents) != 1 || !strings.Contains(contents[0], "`BTCUSDT`") {
		t.Fatalf("contents = %v", contents)
	}
}

type flakyNotifier struct {
	err    error
	called int
}

func (f *flakyNotifier) Notify(context.Context, []models.Recommendation) error {
	f.called++
	return f.err
}

func TestMultiTriesEveryChannel(t *testing.T) {
	bad := &flakyNotifier{err: errors.New("rate limited")}
	good := &flakyNotifier{}
	m := NewMulti(bad, good)

	err := m.Notify(context.Background(), []models.Recommendation{sampleRec()})
	if err == nil {
		t.Fatal("channel failure was swallowed")
	}
	if bad.called != 1 || good.called != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", bad.called, good.called)
	}
}

func TestMultiSkipsEmptyDigest(t *testing.T) {
	ch := &flakyNotifier{}
	if err := NewMulti(ch).Notify(context.Background(), nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if ch.called != 0 {
		t.Fatalf("empty digest still posted %d times", ch.called)
	}
}
