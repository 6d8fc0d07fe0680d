package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"crm-sync/internal/config"
	"crm-sync/internal/domain/entity"
	"crm-sync/internal/usecase"
)

const summaryEventType = "crm-sync.run.completed"

var Module = fx.Module("kafka",
	fx.Provide(NewSummaryReporter),
)

// messageWriter is the part of *kafka.Writer the reporter needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// summaryEvent wraps a run summary with event metadata
type summaryEvent struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"`
	Source  string                 `json:"source"`
	Time    time.Time              `json:"time"`
	Summary *entity.SyncRunSummary `json:"data"`
}

// SummaryReporter publishes sync run summaries, it does nothing when kafka is disabled
type SummaryReporter struct {
	writer messageWriter
	source string
	logger *zap.Logger
}

func NewSummaryReporter(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) usecase.SyncReporter {
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
		logger.Info("Kafka disabled, sync summaries will not be published")
		return newSummaryReporter(nil, cfg.App.Name, logger)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.SummaryTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing kafka writer")
			return writer.Close()
		},
	})

	logger.Info("Kafka summary reporter initialized",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.SummaryTopic),
	)

	return newSummaryReporter(writer, cfg.App.Name, logger)
}

func newSummaryReporter(writer messageWriter, source string, logger *zap.Logger) *SummaryReporter {
	return &SummaryReporter{
		writer: writer,
		source: source,
		logger: logger,
	}
}

func (r *SummaryReporter) Report(ctx context.Context, summary *entity.SyncRunSummary) error {
	if r.writer == nil || summary == nil {
		return nil
	}

	event := summaryEvent{
		ID:      uuid.NewString(),
		Type:    summaryEventType,
		Source:  r.source,
		Time:    time.Now().UTC(),
		Summary: summary,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sync summary event: %w", err)
	}

	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(summary.Kind),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(summaryEventType)},
			{Key: "status", Value: []byte(summary.Status())},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish sync summary: %w", err)
	}

	r.logger.Debug("Sync summary published",
		zap.String("event_id", event.ID),
		zap.String("kind", string(summary.Kind)),
	)

	return nil
}
