package analytics

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// ConsumerGroup is the Redis consumer group shared by click log writers.
	ConsumerGroup = "click_log_writers"

	// maxDeadLetterLen keeps the last poison messages only.
	maxDeadLetterLen = 10000

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 30 * time.Second
)

// RedisStreamOptions configures a RedisStream.
type RedisStreamOptions struct {
	Stream       string
	ConsumerID   string
	AckMode      AckMode
	BlockTimeout time.Duration
	ClaimIdle    time.Duration
}

// RedisStream is a Channel backed by a Redis stream and consumer group.
//
// In AckOnReceipt mode messages are read with NOACK so they never enter
// the pending list. In AckAfterCommit mode they stay pending until Ack,
// and pending entries idle longer than ClaimIdle are reclaimed with
// XAUTOCLAIM, including those left by crashed consumers.
type RedisStream struct {
	client           *redis.Client
	stream           string
	deadLetterStream string
	consumerID       string
	ackMode          AckMode
	blockTimeout     time.Duration
	claimIdle        time.Duration
	claimInterval    time.Duration

	claimStartID string
	lastClaim    time.Time
	reclaimed    []redis.XMessage
}

// NewRedisStream creates a stream channel. The client is owned by the caller.
func NewRedisStream(client *redis.Client, opts RedisStreamOptions) *RedisStream {
	if opts.BlockTimeout <= 0 {
		opts.BlockTimeout = DefaultBlockTimeout
	}
	if opts.ClaimIdle <= 0 {
		opts.ClaimIdle = DefaultClaimIdle
	}
	if opts.ConsumerID == "" {
		opts.ConsumerID = NewConsumerID()
	}
	return &RedisStream{
		client:           client,
		stream:           opts.Stream,
		deadLetterStream: opts.Stream + ":dlq",
		consumerID:       opts.ConsumerID,
		ackMode:          opts.AckMode,
		blockTimeout:     opts.BlockTimeout,
		claimIdle:        opts.ClaimIdle,
		claimInterval:    DefaultClaimInterval,
		claimStartID:     "0-0",
	}
}

// NewConsumerID names this process within the consumer group.
// Entries left pending under an old name are picked up by XAUTOCLAIM.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + strings.ToLower(ulid.Make().String())
}

// Declare creates the stream and consumer group if they don't exist.
func (s *RedisStream) Declare(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return unavailable("xgroup create", err)
	}
	return nil
}

// Publish appends a payload to the stream. The stream is not capped here:
// a MAXLEN trim would drop entries no consumer has read. See TrimConsumed.
func (s *RedisStream) Publish(ctx context.Context, body []byte) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(body),
		},
	}).Err()
	if err != nil {
		return unavailable("xadd", err)
	}
	return nil
}

// Receive returns the next message for this consumer, or nil after the block timeout.
func (s *RedisStream) Receive(ctx context.Context) (*Delivery, error) {
	if s.ackMode == AckAfterCommit {
		if msg, ok := s.nextReclaimed(ctx); ok {
			return s.delivery(msg), nil
		}
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: s.consumerID,
		Streams:  []string{s.stream, ">"},
		Count:    1,
		Block:    s.blockTimeout,
		NoAck:    s.ackMode == AckOnReceipt,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unavailable("xreadgroup", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return s.delivery(streams[0].Messages[0]), nil
}

// nextReclaimed pops a reclaimed message, refilling the buffer with
// XAUTOCLAIM at most once per claim interval.
func (s *RedisStream) nextReclaimed(ctx context.Context) (redis.XMessage, bool) {
	if len(s.reclaimed) == 0 {
		if !s.lastClaim.IsZero() && time.Since(s.lastClaim) < s.claimInterval {
			return redis.XMessage{}, false
		}
		s.lastClaim = time.Now()

		messages, start, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   s.stream,
			Group:    ConsumerGroup,
			Consumer: s.consumerID,
			MinIdle:  s.claimIdle,
			Start:    s.claimStartID,
			Count:    100,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return redis.XMessage{}, false
		}
		if start != "" {
			s.claimStartID = start
		}
		s.reclaimed = messages
	}

	if len(s.reclaimed) == 0 {
		return redis.XMessage{}, false
	}
	msg := s.reclaimed[0]
	s.reclaimed = s.reclaimed[1:]
	return msg, true
}

func (s *RedisStream) delivery(msg redis.XMessage) *Delivery {
	// A missing or non-string payload yields a nil body, which fails decoding.
	var body []byte
	if payload, ok := msg.Values["payload"].(string); ok {
		body = []byte(payload)
	}

	var ack func(ctx context.Context) error
	if s.ackMode == AckAfterCommit {
		id := msg.ID
		ack = func(ctx context.Context) error {
			if err := s.client.XAck(ctx, s.stream, ConsumerGroup, id).Err(); err != nil {
				return unavailable("xack", err)
			}
			return nil
		}
	}

	return NewDelivery(msg.ID, body, ack)
}

// DeadLetter writes a poison message to the dead-letter stream with metadata.
func (s *RedisStream) DeadLetter(ctx context.Context, d *Delivery, reason string) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.deadLetterStream,
		MaxLen: maxDeadLetterLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      d.ID,
			"original_stream":  s.stream,
			"reason":           reason,
			"payload":          string(d.Body),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return unavailable("xadd dead letter", err)
	}
	return nil
}

// Depth returns pending plus undelivered entries for the consumer group.
func (s *RedisStream) Depth(ctx context.Context) (int64, error) {
	groups, err := s.client.XInfoGroups(ctx, s.stream).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, unavailable("xinfo groups", err)
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			return group.Pending + group.Lag, nil
		}
	}
	return 0, fmt.Errorf("consumer group %q not declared on %q", ConsumerGroup, s.stream)
}

// TrimConsumed deletes entries every consumer group has already read and
// acknowledged, returning how many were removed. The floor is the oldest
// pending entry of any group, or its last delivered ID when nothing is
// pending.
func (s *RedisStream) TrimConsumed(ctx context.Context) (int64, error) {
	groups, err := s.client.XInfoGroups(ctx, s.stream).Result()
	if err != nil {
		return 0, unavailable("xinfo groups", err)
	}

	var floor string
	for _, group := range groups {
		id := group.LastDeliveredID
		if group.Pending > 0 {
			pending, err := s.client.XPending(ctx, s.stream, group.Name).Result()
			if err != nil {
				return 0, unavailable("xpending", err)
			}
			id = pending.Lower
		}
		if floor == "" || compareStreamIDs(id, floor) < 0 {
			floor = id
		}
	}
	if floor == "" || compareStreamIDs(floor, "0-0") <= 0 {
		return 0, nil
	}

	n, err := s.client.XTrimMinID(ctx, s.stream, floor).Result()
	if err != nil {
		return 0, unavailable("xtrim", err)
	}
	return n, nil
}

// compareStreamIDs orders two "<ms>-<seq>" entry IDs.
func compareStreamIDs(a, b string) int {
	am, as := splitStreamID(a)
	bm, bs := splitStreamID(b)
	if c := cmp.Compare(am, bm); c != 0 {
		return c
	}
	return cmp.Compare(as, bs)
}

func splitStreamID(id string) (uint64, uint64) {
	msPart, seqPart, _ := strings.Cut(id, "-")
	ms, _ := strconv.ParseUint(msPart, 10, 64)
	seq, _ := strconv.ParseUint(seqPart, 10, 64)
	return ms, seq
}

// AckMode returns the acknowledgment mode the stream was opened with.
func (s *RedisStream) AckMode() AckMode {
	return s.ackMode
}

// Close is a no-op; the Redis client is closed by its owner.
func (s *RedisStream) Close() error {
	return nil
}

// isConsumerGroupExistsError checks if the error is "BUSYGROUP" (group exists).
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
