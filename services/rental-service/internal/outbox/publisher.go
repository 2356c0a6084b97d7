package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/billboardrent/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// Source hands out batches of unpublished records. Ids returned by publish
// are marked published.
type Source interface {
	Drain(ctx context.Context, limit int, publish func(context.Context, []Record) ([]int64, error)) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	source    Source
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(source Source, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		logger:    logger.With("component", "outbox"),
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(p.brokers...),
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	p.Loop(ctx, writer)
}

// Loop drains the source every poll interval until ctx is done.
func (p *Publisher) Loop(ctx context.Context, writer MessageWriter) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PublishBatch(ctx, writer); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// PublishBatch writes one batch in order and stops at the first failed write,
// so undelivered records stay queued behind the delivered ones.
func (p *Publisher) PublishBatch(ctx context.Context, writer MessageWriter) error {
	return p.source.Drain(ctx, p.batchSize, func(ctx context.Context, records []Record) ([]int64, error) {
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			if err := writer.WriteMessages(ctx, message(ctx, r)); err != nil {
				return ids, err
			}
			ids = append(ids, r.ID)
		}
		return ids, nil
	})
}

func message(ctx context.Context, r Record) kafka.Message {
	meta := kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType, TenantID: r.TenantID}
	return kafka.Message{
		Topic:   r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.InjectTraceHeaders(r.Trace.Restore(ctx), meta.Headers()),
	}
}
