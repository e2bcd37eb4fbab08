package kafka

import (
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer(t *testing.T) {
	p, err := NewProducer(Config{Brokers: []string{"localhost:9092", "localhost:9093"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, p.brokers)
	assert.Empty(t, p.writers)
	assert.Nil(t, p.transport)
}

func TestNewProducer_SASLAndTLS(t *testing.T) {
	p, err := NewProducer(Config{
		Brokers:       []string{"kafka:9093"},
		TLS:           true,
		SASLEnabled:   true,
		SASLMechanism: "SCRAM-SHA-512",
		SASLUsername:  "ledger",
		SASLPassword:  "secret",
	})
	require.NoError(t, err)
	require.NotNil(t, p.transport)
	assert.NotNil(t, p.transport.TLS)
	assert.Equal(t, "SCRAM-SHA-512", p.transport.SASL.Name())
}

func TestNewProducer_UnknownSASLMechanism(t *testing.T) {
	_, err := NewProducer(Config{SASLEnabled: true, SASLMechanism: "GSSAPI"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GSSAPI")
}

func TestGetOrCreateWriter(t *testing.T) {
	p, err := NewProducer(Config{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)

	w1 := p.getOrCreateWriter("ledger.loan")
	w2 := p.getOrCreateWriter("ledger.loan")
	w3 := p.getOrCreateWriter("ledger.blotter")

	assert.Same(t, w1, w2)
	assert.NotSame(t, w1, w3)
	assert.IsType(t, &kafkago.Hash{}, w1.Balancer)
	assert.Len(t, p.writers, 2)

	require.NoError(t, p.Close())
	assert.Empty(t, p.writers)
}

func TestToKafkaMessages(t *testing.T) {
	out := toKafkaMessages([]Message{{
		Key:     []byte("loan-1"),
		Value:   []byte(`{"amount":"854.41"}`),
		Headers: map[string]string{"event_type": "ledger.payment.posted"},
	}})

	require.Len(t, out, 1)
	assert.Equal(t, []byte("loan-1"), out[0].Key)
	require.Len(t, out[0].Headers, 1)
	assert.Equal(t, "event_type", out[0].Headers[0].Key)

	back := fromKafkaMessage(out[0])
	assert.Equal(t, "ledger.payment.posted", back.Headers["event_type"])
}
