package internal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dushixiang/flux/internal/config"
	"github.com/dushixiang/flux/internal/handler"
	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/service"
	"github.com/dushixiang/flux/internal/telegram"
	"github.com/dushixiang/flux/pkg/nostd"
	"github.com/go-orz/orz"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func Run(configPath string) error {
	app := NewFluxApp()

	framework, err := orz.NewFramework(
		orz.WithConfig(configPath),
		orz.WithLoggerFromConfig(),
		orz.WithDatabase(),
		orz.WithHTTP(),
		orz.WithApplication(app),
	)
	if err != nil {
		return err
	}

	return framework.Run()
}

func NewFluxApp() orz.Application {
	return &FluxApp{}
}

var _ orz.Application = (*FluxApp)(nil)

type AppComponents struct {
	AccountHandler *handler.AccountHandler
	StreamHandler  *handler.StreamHandler

	AccountService *service.AccountService
	EngineService  *service.EngineService
	Scheduler      *service.SchedulerService
	Pricefeed      *service.PricefeedService

	notifier *telegram.Notifier
	tg       *telegram.Telegram
}

type FluxApp struct {
	components *AppComponents
	conf       *config.Config
}

// GetComponents 获取应用组件
func (r *FluxApp) GetComponents() *AppComponents {
	return r.components
}

func (r *FluxApp) Configure(app *orz.App) error {
	logger := app.Logger()
	e := app.GetEcho()
	db := app.GetDatabase()

	var conf config.Config
	err := app.GetConfig().App.Unmarshal(&conf)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %v", err)
	}
	conf.Trading.Normalize()

	components, err := InitializeApp(logger, db, &conf)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %v", err)
	}
	r.components = components
	r.conf = &conf

	if err := db.AutoMigrate(
		models.Account{}, models.Position{}, models.Order{}, models.Trade{},
		models.Decision{}, models.DecisionQA{}, models.EquityHistory{},
	); err != nil {
		logger.Fatal("database auto migrate failed", zap.Error(err))
	}

	if err := r.Init(logger); err != nil {
		logger.Fatal("app init failed", zap.Error(err))
	}

	e.HidePort = true
	e.HideBanner = true

	e.Use(middleware.Gzip())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper:      middleware.DefaultSkipper,
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			sugar := logger.Sugar()
			sugar.Error(fmt.Sprintf("[PANIC RECOVER] %v %s\n", err, stack))
			return err
		},
	}))
	e.Use(WithErrorHandler(logger))
	customValidator := nostd.CustomValidator{Validator: validator.New()}
	if err := customValidator.TransInit(); err != nil {
		logger.Sugar().Fatal("failed to init custom validator", zap.Error(err))
	}
	e.Validator = &customValidator

	api := e.Group("/api")
	{
		r.components.AccountHandler.RegisterRoutes(api)
		r.components.StreamHandler.RegisterRoutes(api)
	}

	return nil
}

func (r *FluxApp) Init(logger *zap.Logger) error {
	logger.Info("=================================================")
	logger.Info("Flux Trading Simulator Starting...")
	logger.Info("=================================================")

	components := r.GetComponents()
	if components == nil {
		return fmt.Errorf("components not initialized")
	}

	ctx := context.Background()

	components.Pricefeed.Start(ctx)

	if err := components.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if components.tg != nil {
		components.tg.Start()
	}
	if components.notifier != nil {
		components.notifier.Start(ctx)
	}

	return nil
}
