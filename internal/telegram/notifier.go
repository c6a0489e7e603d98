package telegram

import (
	"context"
	"fmt"

	"github.com/dushixiang/flux/internal/hub"
	"github.com/dushixiang/flux/internal/models"
	"go.uber.org/zap"
)

// Notifier 订阅事件中心，把成交和失败的决策推送到Telegram。
// 事件投递是尽力而为的，通知失败不影响交易流程。
type Notifier struct {
	logger   *zap.Logger
	bot      *Telegram
	eventHub *hub.Hub
	cancel   context.CancelFunc
}

func NewNotifier(logger *zap.Logger, bot *Telegram, eventHub *hub.Hub) *Notifier {
	return &Notifier{
		logger:   logger,
		bot:      bot,
		eventHub: eventHub,
	}
}

// Start 开始消费事件
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	sub := n.eventHub.Subscribe()

	go func() {
		defer n.eventHub.Unsubscribe(sub)
		for {
			select {
			case event, ok := <-sub.C:
				if !ok {
					return
				}
				n.handle(event)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop 停止消费
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
}

func (n *Notifier) handle(event hub.Event) {
	var msg string

	switch event.Type {
	case hub.EventTypeTrade:
		trade, ok := event.Payload.(*models.Trade)
		if !ok {
			return
		}
		side := "买入"
		if trade.Side == models.OrderSideSell {
			side = "卖出"
		}
		msg = fmt.Sprintf("*成交通知*\n%s %s\n数量: %s\n价格: $%s\n手续费: $%s",
			side, trade.Symbol,
			trade.Quantity.String(), trade.Price.String(), trade.Commission.String())

	case hub.EventTypeDecision:
		decision, ok := event.Payload.(*models.Decision)
		if !ok {
			return
		}
		// 只推送失败的周期，正常周期的成交另有通知
		if decision.State != models.DecisionStateFailed {
			return
		}
		msg = fmt.Sprintf("*周期失败*\n账户: %s\n周期: %d\n原因: %s",
			event.AccountID, decision.Cycle, decision.Reasoning)

	default:
		return
	}

	if err := n.bot.Notify(msg); err != nil {
		n.logger.Warn("failed to send telegram notification",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
