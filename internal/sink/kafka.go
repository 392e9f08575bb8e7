package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/fusion"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes signals and fusion decisions as JSON messages keyed by asset,
// so every message of one asset lands on the same partition.
type KafkaPublisher struct {
	writer        messageWriter
	signalTopic   string
	decisionTopic string
	logger        *logger.Logger
}

// NewKafkaPublisher builds a publisher from configuration. Brokers are required.
func NewKafkaPublisher(cfg config.KafkaConfig, log *logger.Logger) (*KafkaPublisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New(errors.ErrCodeMissingParameter, "kafka brokers are required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: time.Duration(cfg.BatchTimeoutMs) * time.Millisecond,
	}

	return newKafkaPublisher(writer, cfg, log), nil
}

func newKafkaPublisher(writer messageWriter, cfg config.KafkaConfig, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:        writer,
		signalTopic:   cfg.SignalTopic,
		decisionTopic: cfg.DecisionTopic,
		logger:        log,
	}
}

// Publish sends signals to the signal topic in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, signals []types.Signal) error {
	msgs := make([]kafka.Message, 0, len(signals))
	for _, s := range signals {
		msg, err := message(p.signalTopic, s.Asset, s)
		if err != nil {
			return err
		}

		msgs = append(msgs, msg)
	}

	return p.write(ctx, p.signalTopic, msgs)
}

// PublishDecisions sends fusion decisions to the decision topic in one batch.
func (p *KafkaPublisher) PublishDecisions(ctx context.Context, decisions []fusion.Decision) error {
	msgs := make([]kafka.Message, 0, len(decisions))
	for _, d := range decisions {
		msg, err := message(p.decisionTopic, d.Asset, d)
		if err != nil {
			return err
		}

		msgs = append(msgs, msg)
	}

	return p.write(ctx, p.decisionTopic, msgs)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) write(ctx context.Context, topic string, msgs []kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("Failed to publish to kafka",
			zap.String("topic", topic),
			zap.Int("messages", len(msgs)),
			zap.Error(err),
		)

		return errors.Wrapf(errors.ErrCodePublishFailed, err, "failed to publish %d messages to %s", len(msgs), topic)
	}

	p.logger.Info("Published to kafka",
		zap.String("topic", topic),
		zap.Int("messages", len(msgs)),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}

func message(topic, key string, value any) (kafka.Message, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return kafka.Message{}, errors.Wrapf(errors.ErrCodePublishFailed, err, "failed to encode message for %s", key)
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	}, nil
}
