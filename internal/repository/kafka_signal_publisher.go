package repository

import (
	"context"
	"time"

	"PerpScout/internal/domain/models"
	domrepo "PerpScout/internal/domain/repository"
	pkgkafka "PerpScout/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, rec models.Recommendation) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Signal.Symbol), signalPayload(rec))
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(recs))
	for i, rec := range recs {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(rec.Signal.Symbol),
			Value: signalPayload(rec),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func signalPayload(rec models.Recommendation) map[string]interface{} {
	sig, st := rec.Signal, rec.Structure
	return map[string]interface{}{
		"symbol":            sig.Symbol,
		"side":              string(sig.Side),
		"regime":            string(sig.Regime),
		"style":             string(sig.Style),
		"score":             sig.Score,
		"confidence":        sig.Confidence,
		"reference_price":   sig.ReferencePrice,
		"atr":               sig.ATR,
		"entry":             st.Entry,
		"take_profit":       st.TakeProfit,
		"stop_loss":         st.StopLoss,
		"trailing_stop":     st.TrailingStop,
		"trail_activation":  st.TrailActivation,
		"position_size":     st.PositionSize,
		"margin_required":   st.MarginRequired,
		"liquidation_price": st.LiquidationPrice,
		"leverage":          st.Leverage,
		"bar_time":          sig.BarTime.UTC().Format(time.RFC3339),
	}
}
