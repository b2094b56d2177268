package analytics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaTopicOptions configures a KafkaTopic.
type KafkaTopicOptions struct {
	Brokers      []string
	Topic        string
	AckMode      AckMode
	DialTimeout  time.Duration
	BlockTimeout time.Duration
}

// KafkaTopic is a Channel backed by a Kafka topic and consumer group.
//
// In AckOnReceipt mode the reader commits offsets as messages are read.
// In AckAfterCommit mode offsets are committed by Ack, so uncommitted
// messages are redelivered after a restart or rebalance.
type KafkaTopic struct {
	brokers      []string
	topic        string
	dlqTopic     string
	ackMode      AckMode
	blockTimeout time.Duration

	dialer    *kafka.Dialer
	transport *kafka.Transport
	writer    *kafka.Writer
	dlqWriter *kafka.Writer

	mu     sync.Mutex
	reader *kafka.Reader
}

// NewKafkaTopic creates a topic channel. No connection is made until first use.
func NewKafkaTopic(opts KafkaTopicOptions) *KafkaTopic {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 2 * time.Second
	}
	if opts.BlockTimeout <= 0 {
		opts.BlockTimeout = DefaultBlockTimeout
	}

	transport := &kafka.Transport{DialTimeout: opts.DialTimeout}
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(opts.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
			Transport:    transport,
		}
	}

	return &KafkaTopic{
		brokers:      opts.Brokers,
		topic:        opts.Topic,
		dlqTopic:     opts.Topic + ".dlq",
		ackMode:      opts.AckMode,
		blockTimeout: opts.BlockTimeout,
		dialer:       &kafka.Dialer{Timeout: opts.DialTimeout, DualStack: true},
		transport:    transport,
		writer:       newWriter(opts.Topic),
		dlqWriter:    newWriter(opts.Topic + ".dlq"),
	}
}

// Declare creates the topic and its dead-letter topic on the cluster controller.
func (t *KafkaTopic) Declare(ctx context.Context) error {
	if len(t.brokers) == 0 {
		return unavailable("declare", errors.New("no brokers configured"))
	}

	conn, err := t.dialer.DialContext(ctx, "tcp", t.brokers[0])
	if err != nil {
		return unavailable("dial broker", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return unavailable("find controller", err)
	}

	ctrl, err := t.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return unavailable("dial controller", err)
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(
		kafka.TopicConfig{Topic: t.topic, NumPartitions: 1, ReplicationFactor: 1},
		kafka.TopicConfig{Topic: t.dlqTopic, NumPartitions: 1, ReplicationFactor: 1},
	)
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return unavailable("create topics", err)
	}
	return nil
}

// Publish writes a payload and waits for all in-sync replicas.
func (t *KafkaTopic) Publish(ctx context.Context, body []byte) error {
	if err := t.writer.WriteMessages(ctx, kafka.Message{Value: body}); err != nil {
		return unavailable("write message", err)
	}
	return nil
}

func (t *KafkaTopic) groupReader() *kafka.Reader {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.reader == nil {
		t.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  t.brokers,
			GroupID:  ConsumerGroup,
			Topic:    t.topic,
			Dialer:   t.dialer,
			MinBytes: 1,
			MaxBytes: 1 << 20,
			MaxWait:  t.blockTimeout,
		})
	}
	return t.reader
}

// Receive returns the next message for the group, or nil after the block timeout.
func (t *KafkaTopic) Receive(ctx context.Context) (*Delivery, error) {
	reader := t.groupReader()

	readCtx, cancel := context.WithTimeout(ctx, t.blockTimeout)
	defer cancel()

	var (
		msg kafka.Message
		err error
	)
	if t.ackMode == AckOnReceipt {
		msg, err = reader.ReadMessage(readCtx)
	} else {
		msg, err = reader.FetchMessage(readCtx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, unavailable("read message", err)
	}

	var ack func(ctx context.Context) error
	if t.ackMode == AckAfterCommit {
		ack = func(ctx context.Context) error {
			if err := reader.CommitMessages(ctx, msg); err != nil {
				return unavailable("commit offset", err)
			}
			return nil
		}
	}

	id := fmt.Sprintf("%d-%d", msg.Partition, msg.Offset)
	return NewDelivery(id, msg.Value, ack), nil
}

// DeadLetter writes a poison message to the dead-letter topic with metadata headers.
func (t *KafkaTopic) DeadLetter(ctx context.Context, d *Delivery, reason string) error {
	err := t.dlqWriter.WriteMessages(ctx, kafka.Message{
		Value: d.Body,
		Headers: []kafka.Header{
			{Key: "original_id", Value: []byte(d.ID)},
			{Key: "original_topic", Value: []byte(t.topic)},
			{Key: "reason", Value: []byte(reason)},
			{Key: "dead_lettered_at", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	})
	if err != nil {
		return unavailable("write dead letter", err)
	}
	return nil
}

// Depth returns the group's lag summed over all partitions of the topic.
func (t *KafkaTopic) Depth(ctx context.Context) (int64, error) {
	client := &kafka.Client{Addr: kafka.TCP(t.brokers...), Transport: t.transport}

	meta, err := client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{t.topic}})
	if err != nil {
		return 0, unavailable("metadata", err)
	}
	if len(meta.Topics) == 0 || meta.Topics[0].Error != nil {
		return 0, fmt.Errorf("topic %q not declared", t.topic)
	}

	var (
		ids      []int
		requests []kafka.OffsetRequest
	)
	for _, p := range meta.Topics[0].Partitions {
		ids = append(ids, p.ID)
		requests = append(requests, kafka.FirstOffsetOf(p.ID), kafka.LastOffsetOf(p.ID))
	}

	committed, err := client.OffsetFetch(ctx, &kafka.OffsetFetchRequest{
		GroupID: ConsumerGroup,
		Topics:  map[string][]int{t.topic: ids},
	})
	if err != nil {
		return 0, unavailable("offset fetch", err)
	}

	offsets, err := client.ListOffsets(ctx, &kafka.ListOffsetsRequest{
		Topics: map[string][]kafka.OffsetRequest{t.topic: requests},
	})
	if err != nil {
		return 0, unavailable("list offsets", err)
	}

	committedByPartition := make(map[int]int64, len(ids))
	for _, p := range committed.Topics[t.topic] {
		committedByPartition[p.Partition] = p.CommittedOffset
	}
	return topicLag(committedByPartition, offsets.Topics[t.topic]), nil
}

// topicLag sums end offset minus committed offset over the partitions.
// A partition the group never committed on counts from its first
// retained offset.
func topicLag(committed map[int]int64, partitions []kafka.PartitionOffsets) int64 {
	var lag int64
	for _, p := range partitions {
		start, ok := committed[p.Partition]
		if !ok || start < 0 {
			start = max(p.FirstOffset, 0)
		}
		if n := p.LastOffset - start; n > 0 {
			lag += n
		}
	}
	return lag
}

// AckMode returns the acknowledgment mode the topic was opened with.
func (t *KafkaTopic) AckMode() AckMode {
	return t.ackMode
}

// Close flushes the writers and leaves the consumer group.
func (t *KafkaTopic) Close() error {
	t.mu.Lock()
	reader := t.reader
	t.mu.Unlock()

	errs := []error{t.writer.Close(), t.dlqWriter.Close()}
	if reader != nil {
		errs = append(errs, reader.Close())
	}
	return errors.Join(errs...)
}
