package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel drivers.
const (
	DriverRedis = "redis"
	DriverKafka = "kafka"
)

// ChannelConfig selects and configures a Channel driver.
type ChannelConfig struct {
	Driver       string
	Name         string
	KafkaBrokers []string
	AckMode      AckMode
	DialTimeout  time.Duration
	BlockTimeout time.Duration
	// ConsumerID names this process in the redis consumer group.
	// Generated when empty.
	ConsumerID string
}

// OpenChannel builds the configured Channel. The redis driver reuses
// client; the kafka driver ignores it. No broker round trip is made,
// call Declare before use.
func OpenChannel(cfg ChannelConfig, client *redis.Client) (Channel, error) {
	if cfg.Name == "" {
		return nil, errors.New("channel name is required")
	}

	switch cfg.Driver {
	case DriverRedis, "":
		if client == nil {
			return nil, errors.New("redis driver requires a redis client")
		}
		return NewRedisStream(client, RedisStreamOptions{
			Stream:       cfg.Name,
			ConsumerID:   cfg.ConsumerID,
			AckMode:      cfg.AckMode,
			BlockTimeout: cfg.BlockTimeout,
		}), nil

	case DriverKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("kafka driver requires at least one broker")
		}
		return NewKafkaTopic(KafkaTopicOptions{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.Name,
			AckMode:      cfg.AckMode,
			DialTimeout:  cfg.DialTimeout,
			BlockTimeout: cfg.BlockTimeout,
		}), nil

	default:
		return nil, fmt.Errorf("unknown channel driver %q", cfg.Driver)
	}
}
