package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dushixiang/flux/internal/config"
	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/repo"
	"github.com/dushixiang/flux/internal/xe"
	"github.com/go-orz/orz"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AccountCreateRequest 创建账户请求
type AccountCreateRequest struct {
	Name               string   `json:"name" validate:"required,max=100"`
	InitialCapital     string   `json:"initial_capital" validate:"required"`
	Provider           string   `json:"provider" validate:"omitempty,oneof=openai gemini"`
	BaseURL            string   `json:"base_url"`
	APIKey             string   `json:"api_key"`
	Model              string   `json:"model"`
	CustomInstructions string   `json:"custom_instructions"`
	Symbols            []string `json:"symbols" validate:"required,min=1"`
	EnableIndicators   *bool    `json:"enable_indicators"`
	EnableNews         *bool    `json:"enable_news"`
	IntervalMinutes    int      `json:"interval_minutes" validate:"omitempty,min=1"`
}

// AccountUpdateRequest 更新账户请求，不允许修改资金字段
type AccountUpdateRequest struct {
	Name               string   `json:"name" validate:"required,max=100"`
	Provider           string   `json:"provider" validate:"omitempty,oneof=openai gemini"`
	BaseURL            string   `json:"base_url"`
	APIKey             string   `json:"api_key"`
	Model              string   `json:"model"`
	CustomInstructions string   `json:"custom_instructions"`
	Symbols            []string `json:"symbols" validate:"required,min=1"`
	EnableIndicators   *bool    `json:"enable_indicators"`
	EnableNews         *bool    `json:"enable_news"`
	IntervalMinutes    int      `json:"interval_minutes" validate:"omitempty,min=1"`
}

// AccountService 账户管理服务
type AccountService struct {
	logger *zap.Logger

	*orz.Service
	*repo.AccountRepo
	*repo.PositionRepo
	*repo.OrderRepo
	*repo.TradeRepo
	*repo.DecisionRepo
	*repo.DecisionQARepo
	*repo.EquityHistoryRepo

	conf      *config.Config
	agent     *AgentService
	locks     *AccountLocks
	scheduler *SchedulerService
}

func NewAccountService(
	db *gorm.DB,
	logger *zap.Logger,
	conf *config.Config,
	agent *AgentService,
	locks *AccountLocks,
	scheduler *SchedulerService,
) *AccountService {
	return &AccountService{
		logger:            logger,
		Service:           orz.NewService(db),
		AccountRepo:       repo.NewAccountRepo(db),
		PositionRepo:      repo.NewPositionRepo(db),
		OrderRepo:         repo.NewOrderRepo(db),
		TradeRepo:         repo.NewTradeRepo(db),
		DecisionRepo:      repo.NewDecisionRepo(db),
		DecisionQARepo:    repo.NewDecisionQARepo(db),
		EquityHistoryRepo: repo.NewEquityHistoryRepo(db),
		conf:              conf,
		agent:             agent,
		locks:             locks,
		scheduler:         scheduler,
	}
}

// Create 创建账户并加入调度
func (s *AccountService) Create(ctx context.Context, req *AccountCreateRequest) (*models.Account, error) {
	capital, err := decimal.NewFromString(req.InitialCapital)
	if err != nil || capital.LessThanOrEqual(decimal.Zero) {
		return nil, xe.ErrInvalidParams
	}

	interval := req.IntervalMinutes
	if interval <= 0 {
		interval = s.conf.Trading.DefaultIntervalMinutes
	}

	provider := models.LLMProvider(req.Provider)
	if provider == "" {
		provider = models.LLMProviderOpenAI
	}

	name := strings.TrimSpace(req.Name)
	used, err := s.AccountRepo.ExistsByName(ctx, name, "")
	if err != nil {
		return nil, err
	}
	if used {
		return nil, xe.ErrAccountNameUsed
	}

	account := &models.Account{
		ID:                 ulid.Make().String(),
		Name:               name,
		Cash:               capital,
		InitialCapital:     capital,
		Provider:           provider,
		BaseURL:            req.BaseURL,
		APIKey:             req.APIKey,
		Model:              req.Model,
		CustomInstructions: req.CustomInstructions,
		Symbols:            datatypes.NewJSONSlice(req.Symbols),
		EnableIndicators:   true,
		IntervalMinutes:    interval,
	}
	if req.EnableIndicators != nil {
		account.EnableIndicators = *req.EnableIndicators
	}
	if req.EnableNews != nil {
		account.EnableNews = *req.EnableNews
	}

	if err := s.AccountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	if err := s.scheduler.Register(account); err != nil {
		s.logger.Error("failed to schedule new account",
			zap.String("account_id", account.ID),
			zap.Error(err))
	}

	s.logger.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("name", account.Name),
		zap.String("initial_capital", capital.String()))

	return account, nil
}

// Update 更新账户配置，资金字段不受影响
func (s *AccountService) Update(ctx context.Context, id string, req *AccountUpdateRequest) (*models.Account, error) {
	account, err := s.AccountRepo.FindById(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, xe.ErrAccountNotFound
		}
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name != account.Name {
		used, err := s.AccountRepo.ExistsByName(ctx, name, account.ID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, xe.ErrAccountNameUsed
		}
	}

	account.Name = name
	if req.Provider != "" {
		account.Provider = models.LLMProvider(req.Provider)
	}
	account.BaseURL = req.BaseURL
	if req.APIKey != "" {
		account.APIKey = req.APIKey
	}
	account.Model = req.Model
	account.CustomInstructions = req.CustomInstructions
	account.Symbols = datatypes.NewJSONSlice(req.Symbols)
	if req.EnableIndicators != nil {
		account.EnableIndicators = *req.EnableIndicators
	}
	if req.EnableNews != nil {
		account.EnableNews = *req.EnableNews
	}

	intervalChanged := false
	if req.IntervalMinutes > 0 && req.IntervalMinutes != account.IntervalMinutes {
		account.IntervalMinutes = req.IntervalMinutes
		intervalChanged = true
	}

	if err := s.AccountRepo.Save(ctx, &account); err != nil {
		return nil, err
	}

	if intervalChanged {
		if err := s.scheduler.Register(&account); err != nil {
			s.logger.Error("failed to reschedule account",
				zap.String("account_id", account.ID),
				zap.Error(err))
		}
	}

	return &account, nil
}

// Delete 删除账户及其全部关联数据
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if _, err := s.AccountRepo.FindById(ctx, id); err != nil {
		if err == gorm.ErrRecordNotFound {
			return xe.ErrAccountNotFound
		}
		return err
	}

	// 等待执行中的周期结束再删除，期间新的触发会被丢弃
	s.locks.Acquire(id)
	defer s.locks.Release(id)

	s.scheduler.Deregister(id)

	err := s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.PositionRepo.DeleteByAccountID(ctx, id); err != nil {
			return err
		}
		if err := s.OrderRepo.DeleteByAccountID(ctx, id); err != nil {
			return err
		}
		if err := s.TradeRepo.DeleteByAccountID(ctx, id); err != nil {
			return err
		}
		if err := s.DecisionRepo.DeleteByAccountID(ctx, id); err != nil {
			return err
		}
		if err := s.DecisionQARepo.DeleteByAccountID(ctx, id); err != nil {
			return err
		}
		if err := s.EquityHistoryRepo.DeleteByAccountID(ctx, id); err != nil {
			return err
		}
		return s.AccountRepo.DeleteById(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("account deleted", zap.String("account_id", id))
	return nil
}

// FindAll 列出所有账户
func (s *AccountService) FindAll(ctx context.Context) ([]models.Account, error) {
	return s.AccountRepo.FindAllOrderByCreatedAt(ctx)
}

// FindById 获取单个账户
func (s *AccountService) FindById(ctx context.Context, id string) (models.Account, error) {
	account, err := s.AccountRepo.FindById(ctx, id)
	if err == gorm.ErrRecordNotFound {
		return account, xe.ErrAccountNotFound
	}
	return account, err
}

// Ask 向账户绑定的模型询问其交易行为，问答记录落库
func (s *AccountService) Ask(ctx context.Context, accountID, decisionID, question string) (*models.DecisionQA, error) {
	account, err := s.FindById(ctx, accountID)
	if err != nil {
		return nil, err
	}

	recent, err := s.DecisionRepo.FindRecentByAccountID(ctx, accountID, 20)
	if err != nil {
		return nil, err
	}

	answer, _, err := s.agent.Ask(ctx, &account, question, recent)
	if err != nil {
		if errors.Is(err, xe.ErrConfiguration) {
			return nil, xe.ErrLLMNotConfigured
		}
		return nil, err
	}

	qa := &models.DecisionQA{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now(),
	}
	if decisionID != "" {
		qa.DecisionID = &decisionID
	}
	if err := s.DecisionQARepo.Create(ctx, qa); err != nil {
		return nil, err
	}
	return qa, nil
}
