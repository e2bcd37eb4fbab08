package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	noop := func(int, error) {}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		var retried []int
		err := retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		}, func(attempt int, _ error) { retried = append(retried, attempt) })

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("returns the last error when exhausted", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 2, time.Millisecond, func() error {
			calls++
			return errors.New("still broken")
		}, noop)

		require.EqualError(t, err, "still broken")
		assert.Equal(t, 2, calls)
	})

	t.Run("stops waiting when the context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retry(ctx, 5, time.Hour, func() error {
			calls++
			cancel()
			return errors.New("down")
		}, noop)

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestNewConsumer_Defaults(t *testing.T) {
	c, err := NewConsumer(Config{Brokers: []string{"localhost:9092"}, ConsumerGroup: "g"}, "ledger.events",
		func(context.Context, Message) error { return nil }, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, 3, c.attempts)
	assert.Equal(t, 500*time.Millisecond, c.backoff)
	assert.Equal(t, "ledger.events", c.reader.Config().Topic)
	assert.Equal(t, "g", c.reader.Config().GroupID)
}

func TestFromKafkaMessage(t *testing.T) {
	msg := fromKafkaMessage(kafkago.Message{
		Key:     []byte("loan-1"),
		Value:   []byte(`{}`),
		Headers: []kafkago.Header{{Key: "event_type", Value: []byte("ledger.payment.posted")}},
	})

	assert.Equal(t, []byte("loan-1"), msg.Key)
	assert.Equal(t, map[string]string{"event_type": "ledger.payment.posted"}, msg.Headers)
}
