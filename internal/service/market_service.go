package service

import (
	"context"
	"time"

	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/pricecache"
	"github.com/dushixiang/flux/internal/repo"
	"github.com/dushixiang/flux/pkg/ta"
	"github.com/go-orz/orz"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SymbolContext 单个交易对的市场上下文
type SymbolContext struct {
	Symbol     string           `json:"symbol"`
	Price      decimal.Decimal  `json:"price"`
	ObservedAt time.Time        `json:"observed_at"`
	Indicators *ta.IndicatorSet `json:"indicators,omitempty"`
}

// PositionContext 持仓上下文
type PositionContext struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	MarketValue   decimal.Decimal `json:"market_value,omitempty"`
	PriceMissing  bool            `json:"price_missing,omitempty"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl,omitempty"`
}

// DecisionContext 历史决策摘要
type DecisionContext struct {
	Cycle     int    `json:"cycle"`
	State     string `json:"state"`
	Action    string `json:"action"`
	Symbol    string `json:"symbol,omitempty"`
	Quantity  string `json:"quantity,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

// MarketContext 一次决策周期的完整上下文快照。
// 构建之后不再变化，审计记录与提示词都以它为准。
type MarketContext struct {
	AccountID       string            `json:"account_id"`
	Cycle           int               `json:"cycle"`
	Cash            decimal.Decimal   `json:"cash"`
	InitialCapital  decimal.Decimal   `json:"initial_capital"`
	Symbols         []SymbolContext   `json:"symbols"`
	MissingSymbols  []string          `json:"missing_symbols,omitempty"`
	Positions       []PositionContext `json:"positions"`
	RecentDecisions []DecisionContext `json:"recent_decisions,omitempty"`
	News            []NewsItem        `json:"news,omitempty"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// MarketService 市场上下文构建服务
type MarketService struct {
	logger *zap.Logger

	*orz.Service
	*repo.PositionRepo
	*repo.DecisionRepo

	cache            *pricecache.Cache
	indicatorService *IndicatorService
	newsService      *NewsService
}

func NewMarketService(
	db *gorm.DB,
	logger *zap.Logger,
	cache *pricecache.Cache,
	indicatorService *IndicatorService,
	newsService *NewsService,
) *MarketService {
	return &MarketService{
		logger:           logger,
		Service:          orz.NewService(db),
		PositionRepo:     repo.NewPositionRepo(db),
		DecisionRepo:     repo.NewDecisionRepo(db),
		cache:            cache,
		indicatorService: indicatorService,
		newsService:      newsService,
	}
}

// BuildContext 为指定账户构建决策上下文。
// 缓存里没有新鲜价格的交易对从快照中省略并单独记入 MissingSymbols，
// 上下文不会包含过期价格。
func (s *MarketService) BuildContext(ctx context.Context, account *models.Account, cycle int) (*MarketContext, error) {
	mc := &MarketContext{
		AccountID:      account.ID,
		Cycle:          cycle,
		Cash:           account.Cash,
		InitialCapital: account.InitialCapital,
		GeneratedAt:    time.Now(),
	}

	var indicators map[string]ta.IndicatorSet
	if account.EnableIndicators {
		indicators = s.indicatorService.ComputeAll(ctx, account.Symbols)
	}

	for _, symbol := range account.Symbols {
		entry, ok := s.cache.Get(symbol)
		if !ok {
			mc.MissingSymbols = append(mc.MissingSymbols, symbol)
			continue
		}
		sc := SymbolContext{
			Symbol:     symbol,
			Price:      entry.Price,
			ObservedAt: entry.ObservedAt,
		}
		if set, ok := indicators[symbol]; ok {
			sc.Indicators = &set
		}
		mc.Symbols = append(mc.Symbols, sc)
	}

	positions, err := s.PositionRepo.FindByAccountID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	for _, position := range positions {
		pc := PositionContext{
			Symbol:   position.Symbol,
			Quantity: position.Quantity,
			AvgCost:  position.AvgCost,
		}
		if entry, ok := s.cache.Get(position.Symbol); ok {
			pc.MarketValue = position.MarketValue(entry.Price)
			pc.UnrealizedPnl = position.Quantity.Mul(entry.Price.Sub(position.AvgCost))
		} else {
			pc.PriceMissing = true
		}
		mc.Positions = append(mc.Positions, pc)
	}

	decisions, err := s.DecisionRepo.FindRecentByAccountID(ctx, account.ID, 5)
	if err != nil {
		return nil, err
	}
	for _, decision := range decisions {
		mc.RecentDecisions = append(mc.RecentDecisions, DecisionContext{
			Cycle:     decision.Cycle,
			State:     string(decision.State),
			Action:    string(decision.Action),
			Symbol:    decision.Symbol,
			Quantity:  decision.Quantity.String(),
			Reasoning: decision.Reasoning,
		})
	}

	if account.EnableNews {
		news, err := s.newsService.FetchLatest(ctx, 10)
		if err != nil {
			s.logger.Warn("failed to fetch news for context",
				zap.String("account_id", account.ID),
				zap.Error(err))
		} else {
			mc.News = news
		}
	}

	return mc, nil
}

// Equity 计算账户当前净值：现金加上按新鲜价格估值的持仓。
// 价格缺失的持仓按成本估值。
func (s *MarketService) Equity(ctx context.Context, account *models.Account) (cash, positionValue decimal.Decimal, err error) {
	positions, err := s.PositionRepo.FindByAccountID(ctx, account.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	positionValue = decimal.Zero
	for _, position := range positions {
		if entry, ok := s.cache.Get(position.Symbol); ok {
			positionValue = positionValue.Add(position.MarketValue(entry.Price))
		} else {
			positionValue = positionValue.Add(position.MarketValue(position.AvgCost))
		}
	}

	return account.Cash, positionValue, nil
}
