package analytics

import (
	"context"
	"errors"
	"fmt"
)

// Channel errors.
var (
	// ErrChannelUnavailable means the broker could not be reached or refused the operation.
	ErrChannelUnavailable = errors.New("event channel unavailable")

	// ErrMalformedEvent means a payload could not be decoded into a click event.
	ErrMalformedEvent = errors.New("malformed click event")
)

// AckMode selects when the consumer acknowledges a delivery.
type AckMode int

const (
	// AckOnReceipt acknowledges as the message is received, before it is
	// persisted. A crash between receipt and commit loses the event.
	AckOnReceipt AckMode = iota

	// AckAfterCommit acknowledges only after the click log commit.
	// Unacknowledged messages are redelivered.
	AckAfterCommit
)

// ParseAckMode maps the configuration value to an AckMode.
func ParseAckMode(s string) (AckMode, error) {
	switch s {
	case "on_receipt", "":
		return AckOnReceipt, nil
	case "after_commit":
		return AckAfterCommit, nil
	default:
		return AckOnReceipt, fmt.Errorf("unknown ack mode %q", s)
	}
}

func (m AckMode) String() string {
	if m == AckAfterCommit {
		return "after_commit"
	}
	return "on_receipt"
}

// Delivery is one message handed to a consumer.
type Delivery struct {
	ID   string
	Body []byte
	ack  func(ctx context.Context) error
}

// NewDelivery builds a delivery. A nil ack marks a message the broker
// already considers acknowledged.
func NewDelivery(id string, body []byte, ack func(ctx context.Context) error) *Delivery {
	return &Delivery{ID: id, Body: body, ack: ack}
}

// Ack acknowledges the delivery to the broker.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Channel is the durable conduit between the redirect path and the log consumer.
//
// Delivery is at-least-once and FIFO per producer. Receive blocks for at
// most the driver's block timeout and returns (nil, nil) when nothing
// arrived, so callers can loop without busy polling. Receive is not safe
// for concurrent use; run one consumer per Channel.
type Channel interface {
	// Declare creates the queue and its consumer group if missing.
	// Declaring an existing channel is a no-op.
	Declare(ctx context.Context) error
	Publish(ctx context.Context, body []byte) error
	Receive(ctx context.Context) (*Delivery, error)
	// DeadLetter copies a poison delivery aside. It does not acknowledge it.
	DeadLetter(ctx context.Context, d *Delivery, reason string) error
	// Depth reports messages not yet acknowledged by the consumer group.
	Depth(ctx context.Context) (int64, error)
	AckMode() AckMode
	Close() error
}

// Trimmer is implemented by channels whose storage grows until consumed
// entries are removed explicitly. TrimConsumed never removes an entry
// that some consumer group has yet to read or acknowledge.
type Trimmer interface {
	TrimConsumed(ctx context.Context) (int64, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrChannelUnavailable, err)
}
