package events

import (
	"context"

	kafka "github.com/segmentio/kafka-go"
)

const DefaultTopic = "zava.rooms"

// KafkaPublisher writes events keyed by room id, so every event of one room
// lands on the same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	body, err := e.Encode()
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.RoomID),
		Value: body,
		Time:  e.At,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
