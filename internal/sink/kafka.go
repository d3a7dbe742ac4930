package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes page records to a topic, keyed by job ID so one crawl stays on one partition.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a sink writing to topic on broker.
func NewKafkaSink(broker, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: false,
		},
	}
}

// NewKafkaSinkWithWriter builds a sink on a custom writer (tests).
func NewKafkaSinkWithWriter(writer messageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

// WritePage publishes rec as JSON.
func (s *KafkaSink) WritePage(ctx context.Context, jobID string, rec models.PageRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode page record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(jobID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "article_url", Value: []byte(rec.ArticleURL)},
		},
		Time: time.Now().UTC(),
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish page %s: %w", rec.ArticleURL, err)
	}
	return nil
}

// Close shuts down the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
