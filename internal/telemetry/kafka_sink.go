//go:build enterprise

package telemetry

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"council/internal/observability"
)

// KafkaSink durably forwards safety events to a Kafka topic for downstream
// SIEM/analytics consumption. Only built with the "enterprise" tag.
//
// Emit never blocks the caller: it enqueues onto a buffered channel and a
// background goroutine does the actual write. When the buffer is full the
// event is dropped and counted in Dropped, never blocking the stage that
// produced it (§6.4).
type KafkaSink struct {
	writer  *kafka.Writer
	queue   chan Event
	Dropped atomic.Int64
}

// NewKafkaSink builds a KafkaSink writing to topic across brokers, with a
// queue of the given capacity.
func NewKafkaSink(brokers []string, topic string, queueCap int) *KafkaSink {
	if queueCap <= 0 {
		queueCap = 1000
	}
	s := &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 200 * time.Millisecond,
		},
		queue: make(chan Event, queueCap),
	}
	go s.run()
	return s
}

// Emit implements Sink.
func (s *KafkaSink) Emit(ctx context.Context, ev Event) {
	select {
	case s.queue <- ev:
	default:
		s.Dropped.Add(1)
	}
}

// Close flushes and closes the underlying Kafka writer.
func (s *KafkaSink) Close() error {
	close(s.queue)
	return s.writer.Close()
}

func (s *KafkaSink) run() {
	logger := observability.LoggerWithTrace(context.Background())
	for ev := range s.queue {
		payload, err := json.Marshal(struct {
			Kind   EventKind      `json:"kind"`
			Fields map[string]any `json:"fields"`
		}{Kind: ev.Kind, Fields: ev.Fields})
		if err != nil {
			continue
		}
		if err := s.writer.WriteMessages(context.Background(), kafka.Message{
			Key:   []byte(ev.Kind),
			Value: payload,
		}); err != nil {
			logger.Warn().Err(err).Str("event_kind", string(ev.Kind)).Msg("safety telemetry kafka write failed")
		}
	}
}
