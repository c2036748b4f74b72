package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Producer interface {
	SendMessage(ctx context.Context, key string, message interface{}) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer builds a writer for topic. Connections are opened lazily on
// the first write, so an unreachable broker surfaces as a delivery error
// that the outbox retries.
func NewProducer(brokers []string, topic string) Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logrus.WithFields(logrus.Fields{
		"brokers": brokers,
		"topic":   topic,
	}).Info("Kafka producer configured")
	return &kafkaProducer{writer: writer, topic: topic}
}

// SendMessage publishes message as JSON. Messages with the same key land on
// the same partition.
func (p *kafkaProducer) SendMessage(ctx context.Context, key string, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: messageBytes,
		Time:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logrus.WithError(err).WithField("topic", p.topic).Warn("Failed to write message to Kafka")
		return err
	}
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}
