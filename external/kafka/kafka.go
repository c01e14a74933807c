package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/alpacahq/gofolio/utils/gbevents"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Publisher writes events to a Kafka topic as JSON, keyed by
// account id so one account's events stay in order on a
// single partition.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(list string) []string {
	brokers := []string{}
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (p *Publisher) Publish(ctx context.Context, evt *gbevents.Event) error {
	msg, err := message(evt)
	if err != nil {
		return err
	}

	if err = p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to write %s to kafka", evt.Name)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func message(evt *gbevents.Event) (kafka.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "failed to encode event")
	}

	return kafka.Message{
		Key:   []byte(evt.AccountID),
		Value: data,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(evt.Name)},
		},
	}, nil
}
