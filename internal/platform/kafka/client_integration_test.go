//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"warden/internal/platform/kafka"
	"warden/pkg/testutil/containers"
)

type ProducerSuite struct {
	suite.Suite
	broker   *containers.KafkaContainer
	producer *kafka.Producer
}

func TestProducerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerSuite))
}

func (s *ProducerSuite) SetupSuite() {
	s.broker = containers.NewKafkaContainer(s.T())
	p, err := kafka.NewProducer(context.Background(), s.broker.Brokers)
	s.Require().NoError(err)
	s.producer = p
	s.T().Cleanup(p.Close)
}

func (s *ProducerSuite) TestEnsureTopicsIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, "warden.test.ensure"))
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, "warden.test.ensure"))
}

func (s *ProducerSuite) TestPublishRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	const topic = "warden.test.roundtrip"
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, topic))

	s.Require().NoError(s.producer.Publish(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte("PBRB-NV-K0001"),
		Value:   []byte(`{"event":"punishment.created"}`),
		Headers: map[string]string{"event": "punishment.created"},
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	var got []*kgo.Record
	fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	s.Require().Len(got, 1)
	s.Equal("PBRB-NV-K0001", string(got[0].Key))
	s.Require().Len(got[0].Headers, 1)
	s.Equal("event", got[0].Headers[0].Key)
}

func (s *ProducerSuite) TestConsumerGroupReadsAndCommits() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	const topic = "warden.test.consume"
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, topic))
	s.Require().NoError(s.producer.Publish(ctx,
		kafka.Message{Topic: topic, Key: []byte("a"), Value: []byte("1"), Headers: map[string]string{"event": "x"}},
		kafka.Message{Topic: topic, Key: []byte("b"), Value: []byte("2")},
	))

	consumer, err := kafka.NewConsumer(ctx, s.broker.Brokers, "warden-test", []string{topic}, nil)
	s.Require().NoError(err)
	defer consumer.Close()

	got := make(chan kafka.Message, 2)
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(runCtx, func(_ context.Context, msg kafka.Message) error {
			got <- msg
			return nil
		})
	}()

	var msgs []kafka.Message
	for len(msgs) < 2 {
		select {
		case m := <-got:
			msgs = append(msgs, m)
		case <-ctx.Done():
			s.FailNow("timed out waiting for records")
		}
	}
	first, second := msgs[0], msgs[1]
	stop()
	s.Require().NoError(<-done)

	s.Equal("a", string(first.Key))
	s.Equal("x", first.Headers["event"])
	s.Equal("2", string(second.Value))
}
