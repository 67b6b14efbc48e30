// Package relay ships audit outbox rows to Kafka. It is the only component
// that talks to the broker; domain code writes outbox rows in the same
// transaction as its mutation and never blocks on Kafka availability.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	outbox "trustgrid/pkg/platform/audit/store/postgres"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Relay polls the outbox and produces unpublished rows to a Kafka topic.
// Rows are marked published only after the broker acknowledges the batch, so
// delivery is at-least-once; consumers deduplicate on the event ID embedded
// in the payload.
type Relay struct {
	store    *outbox.Store
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	batch    int
	interval time.Duration
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batch = n }
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

func New(store *outbox.Store, client *kgo.Client, topic string, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		store:    store,
		client:   client,
		topic:    topic,
		logger:   logger,
		batch:    defaultBatchSize,
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureTopic creates the audit topic if the broker does not have it yet.
// Safe to call on every startup.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Run polls until the context is cancelled. One failed batch is retried on
// the next tick; rows stay unpublished until acknowledged.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.shipBatch(ctx); err != nil {
				r.logger.Error("audit relay batch failed", "error", err)
			}
		}
	}
}

func (r *Relay) shipBatch(ctx context.Context) error {
	rows, err := r.store.FetchUnpublished(ctx, r.batch)
	if err != nil {
		return fmt.Errorf("fetch unpublished audit rows: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		records = append(records, &kgo.Record{
			Topic: r.topic,
			Key:   []byte(row.ID.String()),
			Value: row.Payload,
		})
		ids = append(ids, row.ID)
	}

	if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}
	if err := r.store.MarkPublished(ctx, ids); err != nil {
		return fmt.Errorf("mark audit rows published: %w", err)
	}

	r.logger.Debug("audit relay batch shipped", "count", len(rows))
	return nil
}
