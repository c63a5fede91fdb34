package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v outside (0, %v]", attempt, d, max)
		}
	}
	if d := backoffWithJitter(min, max, 1); d < min/2 {
		t.Fatalf("first backoff %v below half of min", d)
	}
}

type flakyHandler struct {
	fails int
	calls int
}

func (h *flakyHandler) Topic() string { return "candles" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.fails {
		return errors.New("boom")
	}
	return nil
}

func TestHandleWithRetry(t *testing.T) {
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	km := kafka.Message{Topic: "candles", Value: []byte(`{}`)}

	h := &flakyHandler{fails: 2}
	if err := c.handleWithRetry(h, km); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if h.calls != 3 {
		t.Fatalf("calls = %d, want 3", h.calls)
	}

	h = &flakyHandler{fails: 5}
	if err := c.handleWithRetry(h, km); err == nil {
		t.Fatalf("expected failure after retries")
	}
	if h.calls != 3 {
		t.Fatalf("calls = %d, want 3", h.calls)
	}
}

func TestTraceIDHook(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, err := TraceIDHook().BeforeHandle(context.Background(), "t", km, nil)
	if err != nil {
		t.Fatalf("hook: %v", err)
	}
	if got := TraceID(ctx); got != "abc" {
		t.Fatalf("trace id = %q", got)
	}
}

func TestHookPanicBecomesError(t *testing.T) {
	h := HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, []byte, error) {
		panic("bad hook")
	}}
	_, _, err := runBefore(h, context.Background(), "t", kafka.Message{}, nil)
	if err == nil {
		t.Fatalf("expected error from panicking hook")
	}
}
