// Package stream publishes enrichment results to Kafka as they complete.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/enrich/cache"
	"github.com/gastromap/location-enricher/pkg/pipeline/schema"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config addresses one topic.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Publisher writes one message per result. Messages are keyed by the record id, or the venue
// identity when the record has none, so updates for one venue stay on one partition.
type Publisher struct {
	w MessageWriter
}

// NewWriter builds a kafka writer for cfg.
func NewWriter(cfg Config) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 || strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}, nil
}

// NewPublisher wraps w.
func NewPublisher(w MessageWriter) *Publisher {
	return &Publisher{w: w}
}

// Message is the JSON value of a published record.
type Message struct {
	RunID  string         `json:"run_id"`
	Row    map[string]any `json:"row"`
	Result *enrich.Result `json:"result"`
}

// Publish writes res tagged with runID. Nil results are ignored.
func (p *Publisher) Publish(ctx context.Context, runID string, res *enrich.Result) error {
	if res == nil {
		return nil
	}
	value, err := json.Marshal(Message{
		RunID:  runID,
		Row:    schema.RowFromResult(res).Record(),
		Result: res,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	key := strings.TrimSpace(res.Original.ID)
	if key == "" {
		key = cache.Key(res.Original)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "success", Value: []byte(fmt.Sprint(res.Metadata.Success))},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish result for %q: %w", res.Original.Name, err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
