//go:build integration

package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustledger/internal/events"
	id "trustledger/pkg/domain"
	"trustledger/pkg/testutil/containers"
)

type SinkSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	log   *events.Log
	sink  *Sink
}

func TestSinkSuite(t *testing.T) {
	suite.Run(t, new(SinkSuite))
}

func (s *SinkSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *SinkSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.log = events.NewLog()
	s.sink = New(s.redis.Client, WithStreamCap(10))
}

func (s *SinkSuite) appendRecords(n int) []events.Record {
	for i := 0; i < n; i++ {
		entry, err := events.Encode(events.UserVerified{Target: id.Address("0x01")})
		s.Require().NoError(err)
		s.log.Append(context.Background(), entry)
	}
	return s.log.Since(0, 0)
}

func (s *SinkSuite) TestDeliverPublishesAndStreams() {
	ctx := context.Background()
	sub := s.redis.Client.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	s.Require().NoError(err)

	records := s.appendRecords(2)
	s.Require().NoError(s.sink.Deliver(ctx, records))

	for _, want := range records {
		msg, err := sub.ReceiveMessage(ctx)
		s.Require().NoError(err)
		var got events.Record
		s.Require().NoError(json.Unmarshal([]byte(msg.Payload), &got))
		s.Equal(want.Seq, got.Seq)
		s.Equal(want.Hash, got.Hash)
	}

	length, err := s.redis.Client.XLen(ctx, DefaultStream).Result()
	s.Require().NoError(err)
	s.Equal(int64(2), length)
}

func (s *SinkSuite) TestLastSeq() {
	ctx := context.Background()
	seq, err := s.sink.LastSeq(ctx, s.log.Epoch())
	s.Require().NoError(err)
	s.Zero(seq)

	s.Require().NoError(s.sink.Deliver(ctx, s.appendRecords(3)))

	seq, err = s.sink.LastSeq(ctx, s.log.Epoch())
	s.Require().NoError(err)
	s.Equal(uint64(3), seq)
}

func (s *SinkSuite) TestLastSeqIgnoresEarlierEpoch() {
	ctx := context.Background()
	s.Require().NoError(s.sink.Deliver(ctx, s.appendRecords(3)))

	s.log = events.NewLog()
	seq, err := s.sink.LastSeq(ctx, s.log.Epoch())
	s.Require().NoError(err)
	s.Zero(seq)

	s.Require().NoError(s.sink.Deliver(ctx, s.appendRecords(1)))
	seq, err = s.sink.LastSeq(ctx, s.log.Epoch())
	s.Require().NoError(err)
	s.Equal(uint64(1), seq)
}

func (s *SinkSuite) TestDeliverRespectsContext() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	s.Error(s.sink.Deliver(ctx, s.appendRecords(1)))
}
