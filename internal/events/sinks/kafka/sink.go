// Package kafka produces committed records to a Kafka topic. Records are keyed
// by ledger so that each ledger's records stay ordered within one partition.
// Consumers deduplicate on the epoch and seq headers.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"trustledger/internal/events"
)

const (
	DefaultTopic = "trustledger.records"

	HeaderEpoch    = "epoch"
	HeaderSeq      = "seq"
	HeaderKind     = "kind"
	HeaderCategory = "category"
)

type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects a producer to brokers. Extra client options are appended after the
// defaults.
func New(brokers []string, topic string, opts ...kgo.Opt) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

func (s *Sink) Name() string { return "kafka" }

func (s *Sink) Topic() string { return s.topic }

// EnsureTopic creates the topic if it does not exist yet.
func (s *Sink) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	admin := kadm.NewClient(s.client)
	resp, err := admin.CreateTopic(ctx, partitions, replication, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", s.topic, resp.Err)
	}
	return nil
}

// Deliver produces the batch synchronously and fails if any record was rejected.
func (s *Sink) Deliver(ctx context.Context, records []events.Record) error {
	batch := make([]*kgo.Record, 0, len(records))
	for _, rec := range records {
		msg, err := toMessage(rec)
		if err != nil {
			return err
		}
		batch = append(batch, msg)
	}
	if err := s.client.ProduceSync(ctx, batch...).FirstErr(); err != nil {
		return fmt.Errorf("kafka deliver: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	s.client.Close()
	return nil
}

func toMessage(rec events.Record) (*kgo.Record, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record %d: %w", rec.Seq, err)
	}
	return &kgo.Record{
		Key:   []byte(rec.Ledger),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: HeaderEpoch, Value: []byte(rec.Epoch.String())},
			{Key: HeaderSeq, Value: []byte(rec.Key())},
			{Key: HeaderKind, Value: []byte(rec.Kind)},
			{Key: HeaderCategory, Value: []byte(rec.Category)},
		},
	}, nil
}
