package lib

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
)

// EventPublisher emits domain events to downstream consumers. Publishing is
// best effort: callers log failures and never roll back on them.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	Close()
}

type KafkaPublisher struct {
	producer *kafka.Producer
	log      *zap.Logger
}

func GetKafkaProducerConfig(broker, clientID string) kafka.ConfigMap {
	return kafka.ConfigMap{
		"bootstrap.servers": broker,
		"client.id":         clientID,
		"acks":              "all",
	}
}

func NewKafkaPublisher(broker, clientID string, log *zap.Logger) (*KafkaPublisher, error) {
	if broker == "" {
		return nil, errors.New("kafka broker is not configured")
	}
	cfg := GetKafkaProducerConfig(broker, clientID)
	p, err := kafka.NewProducer(&cfg)
	if err != nil {
		return nil, err
	}
	kp := &KafkaPublisher{producer: p, log: log}
	go kp.drain()
	return kp, nil
}

func (k *KafkaPublisher) drain() {
	for ev := range k.producer.Events() {
		if m, ok := ev.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			k.log.Warn("[kafka] delivery failed",
				zap.String("topic", *m.TopicPartition.Topic),
				zap.Error(m.TopicPartition.Error),
			)
		}
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
	}, nil)
}

func (k *KafkaPublisher) Close() {
	k.producer.Flush(5000)
	k.producer.Close()
}

func KafkaCreateTopics(ctx context.Context, broker string, topics ...string) ([]kafka.TopicResult, error) {
	a, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": broker})
	if err != nil {
		return nil, err
	}
	defer a.Close()
	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, topic := range topics {
		specs = append(specs, kafka.TopicSpecification{Topic: topic, NumPartitions: 10, ReplicationFactor: 1})
	}
	return a.CreateTopics(ctx, specs)
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (NoopPublisher) Close()                                             {}
