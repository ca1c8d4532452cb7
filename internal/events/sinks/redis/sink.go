// Package redis publishes committed records to Redis: a pub/sub channel for live
// observers and a capped stream for late joiners. Stream entries carry the
// record's epoch and seq so readers can deduplicate redeliveries.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trustledger/internal/events"
)

const (
	DefaultChannel   = "trustledger:records"
	DefaultStream    = "trustledger:records:stream"
	defaultStreamCap = 100_000
)

type Sink struct {
	client    redis.UniversalClient
	channel   string
	stream    string
	streamCap int64
}

type Option func(*Sink)

func WithChannel(channel string) Option {
	return func(s *Sink) {
		s.channel = channel
	}
}

func WithStream(stream string) Option {
	return func(s *Sink) {
		s.stream = stream
	}
}

// WithStreamCap bounds the stream length. Trimming is approximate.
func WithStreamCap(n int64) Option {
	return func(s *Sink) {
		if n > 0 {
			s.streamCap = n
		}
	}
}

func New(client redis.UniversalClient, opts ...Option) *Sink {
	s := &Sink{
		client:    client,
		channel:   DefaultChannel,
		stream:    DefaultStream,
		streamCap: defaultStreamCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Name() string { return "redis" }

// Deliver publishes and streams the batch inside one MULTI/EXEC.
func (s *Sink) Deliver(ctx context.Context, records []events.Record) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, rec := range records {
			body, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal record %d: %w", rec.Seq, err)
			}
			pipe.Publish(ctx, s.channel, body)
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: s.stream,
				MaxLen: s.streamCap,
				Approx: true,
				Values: map[string]any{
					"epoch":  rec.Epoch.String(),
					"seq":    rec.Key(),
					"ledger": string(rec.Ledger),
					"kind":   string(rec.Kind),
					"record": body,
				},
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis deliver: %w", err)
	}
	return nil
}

// LastSeq reads the sequence number of the newest stream entry. It returns 0
// when the stream is empty or its newest entry belongs to another epoch.
func (s *Sink) LastSeq(ctx context.Context, epoch uuid.UUID) (uint64, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis last seq: %w", err)
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	if got, _ := msgs[0].Values["epoch"].(string); got != epoch.String() {
		return 0, nil
	}
	raw, ok := msgs[0].Values["seq"].(string)
	if !ok {
		return 0, fmt.Errorf("redis last seq: stream entry %s has no seq", msgs[0].ID)
	}
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis last seq: %w", err)
	}
	return seq, nil
}
