package analytics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/linkpulse/linkpulse/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChannel is an in-process Channel for unit tests.
type fakeChannel struct {
	mu           sync.Mutex
	mode         AckMode
	seq          int
	queue        []*Delivery
	published    [][]byte
	acked        []string
	deadLettered map[string]string
	publishErr   error
	// publishGate, when set, makes Publish wait for a value or ctx expiry.
	publishGate chan struct{}
}

func newFakeChannel(mode AckMode) *fakeChannel {
	return &fakeChannel{mode: mode, deadLettered: make(map[string]string)}
}

func (f *fakeChannel) Declare(ctx context.Context) error { return nil }

func (f *fakeChannel) Publish(ctx context.Context, body []byte) error {
	if f.publishGate != nil {
		select {
		case <-f.publishGate:
		case <-ctx.Done():
			return unavailable("publish", ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return unavailable("publish", f.publishErr)
	}
	f.published = append(f.published, body)
	return nil
}

// push enqueues a raw body for Receive.
func (f *fakeChannel) push(body []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	id := fmt.Sprintf("%d-0", f.seq)

	var ack func(ctx context.Context) error
	if f.mode == AckAfterCommit {
		ack = func(ctx context.Context) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.acked = append(f.acked, id)
			return nil
		}
	}
	f.queue = append(f.queue, NewDelivery(id, body, ack))
	return id
}

func (f *fakeChannel) pushEvent(event model.ClickEvent) string {
	body, err := EncodeClickEvent(event)
	if err != nil {
		panic(err)
	}
	return f.push(body)
}

func (f *fakeChannel) Receive(ctx context.Context) (*Delivery, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		d := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return d, nil
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (f *fakeChannel) DeadLetter(ctx context.Context, d *Delivery, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLettered[d.ID] = reason
	return nil
}

func (f *fakeChannel) Depth(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.queue)), nil
}

func (f *fakeChannel) AckMode() AckMode { return f.mode }

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) publishedEvents() []model.ClickEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	events := make([]model.ClickEvent, 0, len(f.published))
	for _, body := range f.published {
		event, err := DecodeClickEvent(body)
		if err != nil {
			panic(err)
		}
		events = append(events, event)
	}
	return events
}

func (f *fakeChannel) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

// fakeClickLog is an in-memory ClickLogWriter.
type fakeClickLog struct {
	mu      sync.Mutex
	records []*model.ClickLogRecord
	err     error
}

func (f *fakeClickLog) Append(ctx context.Context, rec *model.ClickLogRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeClickLog) rows() []*model.ClickLogRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.ClickLogRecord(nil), f.records...)
}

func clickEvent(code string, at time.Time) model.ClickEvent {
	return model.ClickEvent{ShortCode: code, UserAgent: "test-agent/1.0", ObservedAt: at}
}
