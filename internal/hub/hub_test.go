package hub

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubDeliversInPublishOrder(t *testing.T) {
	h := NewHub(16, zap.NewNop())
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	for i := 0; i < 10; i++ {
		h.Publish(Event{
			Type:      EventTypeOrder,
			AccountID: "acc-1",
			Payload:   fmt.Sprintf("event-%d", i),
		})
	}

	for i := 0; i < 10; i++ {
		event := <-sub.C
		assert.Equal(t, fmt.Sprintf("event-%d", i), event.Payload)
	}
}

func TestHubMultipleSubscribersReceiveAll(t *testing.T) {
	h := NewHub(16, zap.NewNop())
	first := h.Subscribe()
	second := h.Subscribe()
	defer h.Unsubscribe(first)
	defer h.Unsubscribe(second)

	h.Publish(Event{Type: EventTypeTrade, AccountID: "acc-1", Payload: "t1"})

	assert.Equal(t, "t1", (<-first.C).Payload)
	assert.Equal(t, "t1", (<-second.C).Payload)
}

func TestHubDropsForSlowSubscriberWithoutBlocking(t *testing.T) {
	h := NewHub(2, zap.NewNop())
	slow := h.Subscribe()
	defer h.Unsubscribe(slow)

	// 队列容量2，发布4条不应阻塞，超出的被丢弃
	for i := 0; i < 4; i++ {
		h.Publish(Event{Type: EventTypeDecision, AccountID: "acc-1", Payload: i})
	}

	require.EqualValues(t, 2, h.DroppedCount())

	// 已入队的事件顺序保持不变
	assert.Equal(t, 0, (<-slow.C).Payload)
	assert.Equal(t, 1, (<-slow.C).Payload)
	select {
	case event := <-slow.C:
		t.Fatalf("unexpected event: %v", event.Payload)
	default:
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(4, zap.NewNop())
	sub := h.Subscribe()

	require.Equal(t, 1, h.SubscriberCount())
	h.Unsubscribe(sub)
	assert.Equal(t, 0, h.SubscriberCount())

	_, open := <-sub.C
	assert.False(t, open)

	// 重复注销应当安全
	h.Unsubscribe(sub)
}

func TestHubPublishAfterUnsubscribe(t *testing.T) {
	h := NewHub(4, zap.NewNop())
	sub := h.Subscribe()
	h.Unsubscribe(sub)

	h.Publish(Event{Type: EventTypeAccountSnapshot, AccountID: "acc-1"})
	assert.EqualValues(t, 0, h.DroppedCount())
}
