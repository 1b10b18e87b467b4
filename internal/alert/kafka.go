package alert

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/health"
)

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Event is the JSON body of an alert message.
type Event struct {
	Check      string    `json:"check"`
	Healthy    bool      `json:"healthy"`
	Message    string    `json:"message,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// KafkaSink publishes one message per alert, keyed by check name so that all
// alerts of a check land on the same partition.
type KafkaSink struct {
	Writer  MessageWriter
	Logger  *zap.Logger
	Timeout time.Duration
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaSink(w MessageWriter, l *zap.Logger) *KafkaSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &KafkaSink{Writer: w, Logger: l, Timeout: 5 * time.Second}
}

func (s *KafkaSink) Publish(checkName string, v health.Verdict) {
	b, err := json.Marshal(Event{
		Check:      checkName,
		Healthy:    v.Healthy,
		Message:    v.Message,
		ObservedAt: v.ObservedAt,
	})
	if err != nil {
		s.Logger.Warn("alert_kafka_marshal_error", zap.String("check", checkName), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	if err := s.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(checkName), Value: b}); err != nil {
		s.Logger.Warn("alert_kafka_write_error", zap.String("check", checkName), zap.Error(err))
	}
}
