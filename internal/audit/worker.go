package audit

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RelayWorker drains the audit outbox into Kafka. Kafka is the operator
// review surface; the outbox table is only a durability buffer.
type RelayWorker struct {
	store    *PostgresStore
	client   *kgo.Client
	topic    string
	log      *log.Logger
	interval time.Duration
	batch    int
}

// NewRelayWorker connects to the Kafka seeds and ensures the topic exists.
func NewRelayWorker(store *PostgresStore, seeds []string, topic string, logger *log.Logger) (*RelayWorker, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil && !isTopicExists(err) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}

	return &RelayWorker{
		store:    store,
		client:   client,
		topic:    topic,
		log:      logger,
		interval: 2 * time.Second,
		batch:    100,
	}, nil
}

// kadm reports TOPIC_ALREADY_EXISTS as an error; treat it as success.
func isTopicExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "TOPIC_ALREADY_EXISTS")
}

// Run polls the outbox until the context is cancelled.
func (w *RelayWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.client.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.relayOnce(ctx); err != nil {
				w.log.Printf("audit relay: %v", err)
			}
		}
	}
}

func (w *RelayWorker) relayOnce(ctx context.Context) error {
	entries, err := w.store.NextBatch(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		record := &kgo.Record{
			Topic: w.topic,
			Key:   []byte(entry.Kind),
			Value: entry.Payload,
		}
		if err := w.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			// Stop at the first failure; unpublished entries stay in the
			// outbox and are retried next tick.
			break
		}
		published = append(published, entry.ID)
	}
	if len(published) == 0 {
		return nil
	}
	return w.store.MarkPublished(ctx, published)
}
