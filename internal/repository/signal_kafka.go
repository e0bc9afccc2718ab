package repository

import (
	"context"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
	pkgkafka "PairScan/pkg/kafka"
)

// KafkaSignalPublisher implements SignalPublisher for Kafka.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSignalPublisher creates a Kafka signal publisher.
func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) repository.SignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, res models.ConsensusResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(res.Instrument), map[string]interface{}{
		"instrument": res.Instrument,
		"direction":  string(res.Direction),
		"long":       res.LongCount,
		"short":      res.ShortCount,
		"neutral":    res.NeutralCount,
		"t":          res.EvaluatedAt.Unix(),
	})
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
