// Package kafka writes workspace graph events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

// Writer is the subset of *kafka.Writer the producer uses
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	// Compression is one of snappy, gzip, lz4, zstd or none. Empty means snappy.
	Compression string
}

var codecs = map[string]compress.Compression{
	"":       compress.Snappy,
	"snappy": compress.Snappy,
	"gzip":   compress.Gzip,
	"lz4":    compress.Lz4,
	"zstd":   compress.Zstd,
	"none":   compress.None,
}

func (c ProducerConfig) writer() (*kafka.Writer, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if c.Topic == "" {
		return nil, errors.New("no kafka topic configured")
	}
	codec, ok := codecs[c.Compression]
	if !ok {
		return nil, fmt.Errorf("unknown kafka compression %q", c.Compression)
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              c.BatchSize,
		BatchTimeout:           c.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(c.RequiredAcks),
		Compression:            kafka.Compression(codec),
		AllowAutoTopicCreation: true,
	}, nil
}

// Ping dials the first broker and closes the connection
func (c ProducerConfig) Ping(ctx context.Context) error {
	if len(c.Brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", c.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka broker %s: %w", c.Brokers[0], err)
	}
	return conn.Close()
}

// Producer publishes graph events keyed by workspace, so one workspace's events stay ordered on one partition
type Producer struct {
	writer Writer
	logger ectologger.Logger
}

// NewProducer builds a producer over a fresh *kafka.Writer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) (*Producer, error) {
	w, err := cfg.writer()
	if err != nil {
		return nil, err
	}
	return NewProducerWith(w, logger), nil
}

// NewProducerWith creates a producer over an existing writer. The writer owns the topic.
func NewProducerWith(writer Writer, logger ectologger.Logger) *Producer {
	return &Producer{writer: writer, logger: logger}
}

// Close flushes pending batches and closes the writer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// GraphEvent describes a change to a workspace graph
type GraphEvent struct {
	EventType     string    `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	WorkspaceID   string    `json:"workspace_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	NodeCount     int       `json:"node_count"`
	EdgeCount     int       `json:"edge_count"`
	NodeIDs       []string  `json:"node_ids,omitempty"`
	SurvivorID    string    `json:"survivor_id,omitempty"`
	RecordCount   int       `json:"record_count,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e *GraphEvent) message() (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", e.EventType, err)
	}
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(e.EventType)},
		{Key: "workspace_id", Value: []byte(e.WorkspaceID)},
		{Key: "schema_version", Value: []byte(e.SchemaVersion)},
	}
	if e.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(e.CorrelationID)})
	}
	return kafka.Message{Key: []byte(e.WorkspaceID), Value: value, Headers: headers, Time: e.Timestamp}, nil
}

// PublishGraphEvent writes one event. A zero timestamp is set to now.
func (p *Producer) PublishGraphEvent(ctx context.Context, event *GraphEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishGraphEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	msg, err := event.message()
	if err != nil {
		return err
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{"event_type": event.EventType, "workspace_id": event.WorkspaceID})
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(event.EventType, "error").Inc()
		log.WithError(err).Error("Failed to publish graph event")
		return err
	}
	metrics.EventsPublishedTotal.WithLabelValues(event.EventType, "ok").Inc()
	log.Debug("Published graph event")
	return nil
}
