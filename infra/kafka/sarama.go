package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

// SaramaProducer publishes events with a synchronous sarama producer.
type SaramaProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSaramaConfig waits for all in-sync replicas and retries five times.
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

func NewSaramaProducer(brokers []string, topic string) (*SaramaProducer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("sarama: connect %v: %w", brokers, err)
	}
	return NewSaramaProducerFrom(producer, topic), nil
}

// NewSaramaProducerFrom wraps an existing producer.
func NewSaramaProducerFrom(producer sarama.SyncProducer, topic string) *SaramaProducer {
	return &SaramaProducer{producer: producer, topic: topic}
}

func (p *SaramaProducer) Publish(_ context.Context, key string, payload []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("sarama: send %s: %w", p.topic, err)
	}
	return nil
}

func (p *SaramaProducer) Close() error {
	return p.producer.Close()
}
