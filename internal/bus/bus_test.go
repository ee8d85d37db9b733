package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var received atomic.Int32
	sub, err := b.Subscribe(ctx, domain.TopicAssessmentCompleted, func(_ context.Context, msg *domain.Message) error {
		if string(msg.Payload) != "hello" {
			t.Errorf("unexpected payload %q", msg.Payload)
		}
		received.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, domain.TopicAssessmentCompleted, []byte("hello")); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	deadline := time.After(time.Second)
	for received.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("message not delivered within a second")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestChannelBusTopicIsolation(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var wrongTopic atomic.Int32
	sub, err := b.Subscribe(ctx, domain.TopicAlertRaised, func(_ context.Context, _ *domain.Message) error {
		wrongTopic.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, domain.TopicModelRetrain, []byte("retrain")); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if wrongTopic.Load() != 0 {
		t.Error("subscriber received a message from another topic")
	}
}

func TestChannelBusMultipleSubscribers(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var count atomic.Int32
	for i := 0; i < 3; i++ {
		if _, err := b.Subscribe(ctx, domain.TopicModelReady, func(_ context.Context, _ *domain.Message) error {
			count.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("failed to subscribe: %v", err)
		}
	}

	if err := b.Publish(ctx, domain.TopicModelReady, []byte("v2")); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	deadline := time.After(time.Second)
	for count.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected 3 deliveries, got %d", count.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestChannelBusClosed(t *testing.T) {
	b := NewChannelBus(10)
	b.Close()
	ctx := context.Background()

	if err := b.Publish(ctx, domain.TopicAlertRaised, []byte("x")); err == nil {
		t.Error("expected publish on closed bus to fail")
	}
	if _, err := b.Subscribe(ctx, domain.TopicAlertRaised, nil); err == nil {
		t.Error("expected subscribe on closed bus to fail")
	}
	if err := b.Ping(ctx); err == nil {
		t.Error("expected ping on closed bus to fail")
	}
}

func TestNewUnsupportedBusType(t *testing.T) {
	_, err := New(domain.EventBusConfig{Type: "kafka"})
	if err == nil {
		t.Error("expected error for unsupported bus type")
	}
}
