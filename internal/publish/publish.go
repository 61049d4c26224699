package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/devalgupta404/IntegrityInspect/internal/config"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher hands completed assessments to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ra *assessment.RiskAssessment) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces assessments to a Kafka topic.
type Writer struct {
	writer messageWriter
}

func NewWriter(cfg config.KafkaConfig) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w}
}

func (w *Writer) Publish(ctx context.Context, ra *assessment.RiskAssessment) error {
	msg, err := serializeToMessage(ra)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish assessment %s: %w", ra.AssessmentID, err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage keys the message by assessment id so every update of one
// assessment lands on the same partition.
func serializeToMessage(ra *assessment.RiskAssessment) (kafkago.Message, error) {
	data, err := json.Marshal(ra)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assessment: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ra.AssessmentID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "risk_level", Value: []byte(ra.RiskLevel)},
			{Key: "generated_at", Value: []byte(ra.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}

// Noop drops everything. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, *assessment.RiskAssessment) error { return nil }
func (Noop) Close() error                                               { return nil }

// New returns a Kafka writer, or Noop when no brokers are configured.
func New(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return Noop{}
	}
	return NewWriter(cfg)
}
