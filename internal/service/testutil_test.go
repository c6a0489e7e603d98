package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/dushixiang/flux/internal/config"
	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/pkg/exchange"
	"github.com/glebarez/sqlite"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubMarketSource 测试用行情源，只返回空数据
type stubMarketSource struct{}

func (stubMarketSource) GetPrices(ctx context.Context, symbols []string) ([]*exchange.SymbolPrice, error) {
	return nil, nil
}

func (stubMarketSource) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, fmt.Errorf("no price for %s", symbol)
}

func (stubMarketSource) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*exchange.Kline, error) {
	return nil, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		models.Account{}, models.Position{}, models.Order{}, models.Trade{},
		models.Decision{}, models.DecisionQA{}, models.EquityHistory{},
	))
	return db
}

func newTestConfig() *config.Config {
	conf := &config.Config{}
	conf.Trading.Normalize()
	return conf
}

func newTestAccount(t *testing.T, db *gorm.DB, cash string, symbols ...string) *models.Account {
	t.Helper()

	capital := decimal.RequireFromString(cash)
	account := &models.Account{
		ID:              ulid.Make().String(),
		Name:            "test",
		Cash:            capital,
		InitialCapital:  capital,
		Provider:        models.LLMProviderOpenAI,
		Symbols:         datatypes.NewJSONSlice(symbols),
		IntervalMinutes: 30,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func requireDecimalEqual(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(expected).Equal(actual),
		"expected %s, got %s", expected, actual.String())
}
