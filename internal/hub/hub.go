package hub

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType 事件类型
type EventType string

const (
	EventTypeOrder           EventType = "order"
	EventTypeTrade           EventType = "trade"
	EventTypePositionUpdate  EventType = "position_update"
	EventTypeDecision        EventType = "decision"
	EventTypeAccountSnapshot EventType = "account_snapshot"
)

// Event 已提交的状态变更事件
type Event struct {
	Type       EventType   `json:"type"`
	AccountID  string      `json:"account_id"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Subscriber 订阅者句柄，事件按发布顺序送入 C
type Subscriber struct {
	C  chan Event
	id int
}

// Hub 发布订阅中心。发布方仅在结算提交之后调用 Publish；
// 每个订阅者持有有界FIFO队列，队列满时丢弃该订阅者的新事件，
// 已入队事件的顺序永不重排。
type Hub struct {
	logger *zap.Logger

	mu          sync.Mutex
	subscribers map[int]*Subscriber
	nextID      int
	bufferSize  int
	dropped     int64
}

// NewHub 创建广播中心，bufferSize 为每个订阅者的队列容量
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		logger:      logger,
		subscribers: make(map[int]*Subscriber),
		bufferSize:  bufferSize,
	}
}

// Subscribe 注册订阅者
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{
		C:  make(chan Event, h.bufferSize),
		id: h.nextID,
	}
	h.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe 注销订阅者并关闭其通道
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub.id]; !ok {
		return
	}
	delete(h.subscribers, sub.id)
	close(sub.C)
}

// Publish 按提交顺序向所有订阅者投递事件。
// 投递是尽力而为：慢订阅者的事件被丢弃并记录，不阻塞发布方。
func (h *Hub) Publish(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subscribers {
		select {
		case sub.C <- event:
		default:
			h.dropped++
			h.logger.Warn("dropping event for slow subscriber",
				zap.String("event_type", string(event.Type)),
				zap.String("account_id", event.AccountID),
				zap.Int("subscriber_id", sub.id))
		}
	}
}

// SubscriberCount 当前订阅者数量
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// DroppedCount 因慢订阅者被丢弃的事件总数
func (h *Hub) DroppedCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
