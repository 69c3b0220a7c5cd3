// Package kafka forwards rendered detection events to a Kafka topic.
// Events are the same JSON documents the json output format prints.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/mcdetect/internal/config"
	"firestige.xyz/mcdetect/internal/core"
	"firestige.xyz/mcdetect/internal/core/decoder"
	"firestige.xyz/mcdetect/internal/log"
	"firestige.xyz/mcdetect/internal/render"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
	defaultWriteTimeout = 5 * time.Second
)

// messageWriter is the subset of *kafka.Writer the sink needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink publishes one message per event. It implements render.Renderer.
type Sink struct {
	writer  messageWriter
	topic   string
	withHex bool
	logger  log.Logger

	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// New creates a sink from cfg. Writes are asynchronous; delivery failures
// are logged and counted, never returned to the receive loop.
func New(cfg config.KafkaConfig) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka brokers is required", core.ErrConfigInvalid)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: kafka topic is required", core.ErrConfigInvalid)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	if cfg.Compression == "" {
		cfg.Compression = defaultCompression
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	codec, err := compression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		topic:   cfg.Topic,
		withHex: cfg.Hex,
		logger: log.GetLogger().WithFields(log.Fields{
			"sink":  "kafka",
			"topic": cfg.Topic,
		}),
	}
	s.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // records of one source stay on one partition
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: defaultWriteTimeout,
		Compression:  codec,
		Async:        true,
		Completion:   s.completed,
	}

	s.logger.WithFields(log.Fields{
		"brokers":       cfg.Brokers,
		"batch_size":    cfg.BatchSize,
		"batch_timeout": cfg.BatchTimeout,
		"compression":   cfg.Compression,
	}).Info("kafka sink started")
	return s, nil
}

func compression(name string) (compress.Compression, error) {
	switch name {
	case "none":
		return compress.None, nil
	case "gzip":
		return compress.Gzip, nil
	case "snappy":
		return compress.Snappy, nil
	case "lz4":
		return compress.Lz4, nil
	case "zstd":
		return compress.Zstd, nil
	default:
		return compress.None, fmt.Errorf("%w: invalid kafka compression type: %s", core.ErrConfigInvalid, name)
	}
}

// Record publishes a decoded record keyed by its source id.
func (s *Sink) Record(d core.Datagram, rec decoder.DetectionRecord) error {
	key := strconv.FormatUint(uint64(rec.SourceID), 10)
	return s.publish(key, render.NewRecordEvent(d, rec, s.withHex))
}

// DecodeError publishes an undecodable datagram keyed by its sender.
func (s *Sink) DecodeError(d core.Datagram, err error) error {
	return s.publish(d.Source.String(), render.NewDecodeErrorEvent(d, err, s.withHex))
}

func (s *Sink) publish(key string, ev render.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		s.errorCount.Add(1)
		return fmt.Errorf("serialize event failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  ev.ReceivedAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Event)},
			{Key: "sender", Value: []byte(ev.Source)},
		},
	}
	if err := s.writer.WriteMessages(context.Background(), msg); err != nil {
		s.errorCount.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

// completed is the async delivery callback.
func (s *Sink) completed(msgs []kafka.Message, err error) {
	if err != nil {
		s.errorCount.Add(uint64(len(msgs)))
		s.logger.WithError(err).WithField("messages", len(msgs)).Error("kafka delivery failed")
		return
	}
	s.reportedCount.Add(uint64(len(msgs)))
}

// Reported returns the number of messages acknowledged by the brokers.
func (s *Sink) Reported() uint64 {
	return s.reportedCount.Load()
}

// Errors returns the number of messages that could not be serialized or delivered.
func (s *Sink) Errors() uint64 {
	return s.errorCount.Load()
}

// Close flushes pending messages and closes the writer.
func (s *Sink) Close() error {
	if err := s.writer.Close(); err != nil {
		s.logger.WithError(err).Error("error closing kafka writer")
		return err
	}
	s.logger.WithFields(log.Fields{
		"total_reported": s.reportedCount.Load(),
		"total_errors":   s.errorCount.Load(),
	}).Info("kafka sink stopped")
	return nil
}
