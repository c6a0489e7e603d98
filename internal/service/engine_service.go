package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dushixiang/flux/internal/hub"
	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/repo"
	"github.com/dushixiang/flux/internal/xe"
	"github.com/go-orz/orz"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Decider 决策来源
type Decider interface {
	Decide(ctx context.Context, account *models.Account, system, prompt string) (*AgentDecision, *AgentUsage, error)
}

// EngineService 决策周期引擎。一个周期依次经历
// 构建上下文、请求决策、执行订单、落库审计四个阶段，
// 无论成败每个周期都恰好写入一条决策记录。
type EngineService struct {
	logger *zap.Logger

	*orz.Service
	*repo.AccountRepo
	*repo.DecisionRepo
	*repo.EquityHistoryRepo

	locks    *AccountLocks
	market   *MarketService
	prompt   *PromptService
	agent    Decider
	executor *ExecutorService
	eventHub *hub.Hub
}

func NewEngineService(
	db *gorm.DB,
	logger *zap.Logger,
	locks *AccountLocks,
	market *MarketService,
	prompt *PromptService,
	agent Decider,
	executor *ExecutorService,
	eventHub *hub.Hub,
) *EngineService {
	return &EngineService{
		logger:            logger,
		Service:           orz.NewService(db),
		AccountRepo:       repo.NewAccountRepo(db),
		DecisionRepo:      repo.NewDecisionRepo(db),
		EquityHistoryRepo: repo.NewEquityHistoryRepo(db),
		locks:             locks,
		market:            market,
		prompt:            prompt,
		agent:             agent,
		executor:          executor,
		eventHub:          eventHub,
	}
}

// RunCycle 执行一个账户的完整决策周期。调用方必须已持有该账户的锁。
func (s *EngineService) RunCycle(ctx context.Context, accountID string) (*models.Decision, error) {
	account, err := s.AccountRepo.FindById(ctx, accountID)
	if err != nil {
		return nil, err
	}

	latest, err := s.DecisionRepo.FindLatestCycle(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cycle := latest + 1
	startedAt := time.Now()

	s.logger.Info("cycle started",
		zap.String("account_id", accountID),
		zap.Int("cycle", cycle))

	decision := &models.Decision{
		ID:         ulid.Make().String(),
		AccountID:  accountID,
		Cycle:      cycle,
		Action:     models.DecisionActionHold,
		Model:      account.Model,
		ExecutedAt: startedAt,
	}

	result, err := s.runStages(ctx, &account, cycle, decision)
	if err != nil {
		// 失败的周期同样留下审计记录
		decision.State = models.DecisionStateFailed
		if decision.Reasoning == "" {
			decision.Reasoning = err.Error()
		}
	}

	if createErr := s.DecisionRepo.Create(ctx, decision); createErr != nil {
		s.logger.Error("failed to save decision record",
			zap.String("account_id", accountID),
			zap.Int("cycle", cycle),
			zap.Error(createErr))
		return nil, createErr
	}

	s.recordEquity(ctx, &account, cycle)
	s.publishCycleEvents(&account, decision, result)

	s.logger.Info("cycle finished",
		zap.String("account_id", accountID),
		zap.Int("cycle", cycle),
		zap.String("state", string(decision.State)),
		zap.String("action", string(decision.Action)),
		zap.Duration("duration", time.Since(startedAt)))

	return decision, err
}

// runStages 执行周期的各个阶段，填充决策记录并返回成交结果
func (s *EngineService) runStages(ctx context.Context, account *models.Account, cycle int, decision *models.Decision) (*ExecutionResult, error) {
	mc, err := s.market.BuildContext(ctx, account, cycle)
	if err != nil {
		return nil, xe.Transient(err)
	}
	if snapshot, marshalErr := json.Marshal(mc); marshalErr == nil {
		decision.ContextSnapshot = snapshot
	}

	system := s.prompt.SystemInstructions(account)
	userPrompt := s.prompt.BuildPrompt(mc)

	agentDecision, usage, err := s.agent.Decide(ctx, account, system, userPrompt)
	if usage != nil {
		decision.PromptTokens = usage.PromptTokens
		decision.CompletionTokens = usage.CompletionTokens
	}
	if err != nil {
		return nil, err
	}

	decision.Action = agentDecision.Action
	decision.Symbol = agentDecision.Symbol
	decision.Quantity = agentDecision.Quantity
	decision.Reasoning = agentDecision.Reasoning

	if agentDecision.Action == models.DecisionActionHold {
		decision.State = models.DecisionStateCommitted
		return nil, nil
	}

	result, err := s.executor.Execute(ctx, account, agentDecision)
	if err != nil {
		if errors.Is(err, xe.ErrValidation) {
			decision.State = models.DecisionStateRejected
			if result != nil && result.Order != nil {
				decision.OrderID = &result.Order.ID
			}
			return nil, nil
		}
		return nil, err
	}

	decision.State = models.DecisionStateCommitted
	decision.OrderID = &result.Order.ID
	return result, nil
}

// recordEquity 记录周期结束时的账户净值
func (s *EngineService) recordEquity(ctx context.Context, account *models.Account, cycle int) {
	cash, positionValue, err := s.market.Equity(ctx, account)
	if err != nil {
		s.logger.Warn("failed to compute equity",
			zap.String("account_id", account.ID),
			zap.Error(err))
		return
	}

	equity := cash.Add(positionValue)
	returnPercent := decimal.Zero
	if account.InitialCapital.IsPositive() {
		returnPercent = equity.Sub(account.InitialCapital).
			Div(account.InitialCapital).
			Mul(decimal.NewFromInt(100))
	}

	history := &models.EquityHistory{
		ID:            ulid.Make().String(),
		AccountID:     account.ID,
		Cycle:         cycle,
		Cash:          cash,
		PositionValue: positionValue,
		Equity:        equity,
		ReturnPercent: returnPercent,
		RecordedAt:    time.Now(),
	}
	if err := s.EquityHistoryRepo.Create(ctx, history); err != nil {
		s.logger.Warn("failed to save equity history",
			zap.String("account_id", account.ID),
			zap.Error(err))
	}
}

// publishCycleEvents 周期落库之后发布事件。
// 只有真实成交才发布订单和成交事件，失败周期只发布决策事件。
func (s *EngineService) publishCycleEvents(account *models.Account, decision *models.Decision, result *ExecutionResult) {
	s.eventHub.Publish(hub.Event{
		Type:      hub.EventTypeDecision,
		AccountID: account.ID,
		Payload:   decision,
	})

	if result == nil || result.Settlement == nil {
		return
	}
	settlement := result.Settlement

	s.eventHub.Publish(hub.Event{
		Type:      hub.EventTypeOrder,
		AccountID: account.ID,
		Payload:   settlement.Order,
	})
	s.eventHub.Publish(hub.Event{
		Type:      hub.EventTypeTrade,
		AccountID: account.ID,
		Payload:   settlement.Trade,
	})

	positionPayload := orz.Map{
		"symbol":  settlement.Trade.Symbol,
		"removed": settlement.Position == nil,
	}
	if settlement.Position != nil {
		positionPayload["quantity"] = settlement.Position.Quantity
		positionPayload["avg_cost"] = settlement.Position.AvgCost
	}
	s.eventHub.Publish(hub.Event{
		Type:      hub.EventTypePositionUpdate,
		AccountID: account.ID,
		Payload:   positionPayload,
	})

	s.eventHub.Publish(hub.Event{
		Type:      hub.EventTypeAccountSnapshot,
		AccountID: account.ID,
		Payload: orz.Map{
			"cash":    settlement.CashAfter,
			"version": account.Version,
		},
	})
}

// TriggerCycle 立即执行一个决策周期，不等待排期。
// 该账户已有周期在执行时直接返回冲突，不排队。
func (s *EngineService) TriggerCycle(ctx context.Context, accountID string) (*models.Decision, error) {
	if !s.locks.TryAcquire(accountID) {
		return nil, xe.ErrCycleInProgress
	}
	defer s.locks.Release(accountID)

	return s.RunCycle(ctx, accountID)
}

// ManualOrder 手动下单。与自动周期共用账户锁，串行执行，
// 不产生决策记录，但订单与成交照常落库并广播。
func (s *EngineService) ManualOrder(ctx context.Context, accountID string, side models.OrderSide, symbol string, quantity decimal.Decimal) (*ExecutionResult, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, xe.ErrInvalidParams
	}

	s.locks.Acquire(accountID)
	defer s.locks.Release(accountID)

	account, err := s.AccountRepo.FindById(ctx, accountID)
	if err != nil {
		return nil, err
	}

	decision := &AgentDecision{
		Action:    models.DecisionAction(side),
		Symbol:    symbol,
		Quantity:  quantity,
		Reasoning: "manual order",
	}

	result, err := s.executor.Execute(ctx, &account, decision)
	if err != nil {
		return result, err
	}

	s.publishManualEvents(&account, result)
	return result, nil
}

func (s *EngineService) publishManualEvents(account *models.Account, result *ExecutionResult) {
	if result == nil || result.Settlement == nil {
		return
	}
	settlement := result.Settlement

	s.eventHub.Publish(hub.Event{
		Type:      hub.EventTypeOrder,
		AccountID: account.ID,
		Payload:   settlement.Order,
	})
	s.eventHub.Publish(hub.Event{
		Type:      hub.EventTypeTrade,
		AccountID: account.ID,
		Payload:   settlement.Trade,
	})
	s.eventHub.Publish(hub.Event{
		Type:      hub.EventTypeAccountSnapshot,
		AccountID: account.ID,
		Payload: orz.Map{
			"cash":    settlement.CashAfter,
			"version": account.Version,
		},
	})
}
