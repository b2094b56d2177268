package analytics

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenChannel(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	t.Cleanup(func() { _ = client.Close() })

	t.Run("redis", func(t *testing.T) {
		ch, err := OpenChannel(ChannelConfig{Driver: DriverRedis, Name: "clicks_queue", AckMode: AckAfterCommit}, client)
		require.NoError(t, err)

		stream, ok := ch.(*RedisStream)
		require.True(t, ok)
		assert.Equal(t, AckAfterCommit, stream.AckMode())
		assert.Equal(t, "clicks_queue:dlq", stream.deadLetterStream)
	})

	t.Run("kafka", func(t *testing.T) {
		ch, err := OpenChannel(ChannelConfig{Driver: DriverKafka, Name: "clicks", KafkaBrokers: []string{"localhost:9092"}}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = ch.Close() })

		topic, ok := ch.(*KafkaTopic)
		require.True(t, ok)
		assert.Equal(t, AckOnReceipt, topic.AckMode())
		assert.Equal(t, "clicks.dlq", topic.dlqTopic)
	})

	for name, cfg := range map[string]ChannelConfig{
		"unknown driver":  {Driver: "amqp", Name: "clicks"},
		"missing name":    {Driver: DriverRedis},
		"kafka no broker": {Driver: DriverKafka, Name: "clicks"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := OpenChannel(cfg, client)
			assert.Error(t, err)
		})
	}

	t.Run("redis without client", func(t *testing.T) {
		_, err := OpenChannel(ChannelConfig{Driver: DriverRedis, Name: "clicks"}, nil)
		assert.Error(t, err)
	})
}
