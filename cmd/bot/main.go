package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"fundingbot/internal/api"
	"fundingbot/internal/bot"
	"fundingbot/internal/config"
	"fundingbot/internal/exchange"
	"fundingbot/internal/feed"
	"fundingbot/internal/marketdata"
	"fundingbot/internal/repository"
	"fundingbot/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting funding bot",
		zap.String("mode", cfg.Mode),
		zap.Strings("symbols", cfg.Trading.Symbols))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Биржа: live или симулятор
	ex, err := exchange.NewExchange(cfg.Mode, cfg.Exchange.APIKey, cfg.Exchange.SecretKey,
		cfg.Exchange.SimulatedBalance)
	if err != nil {
		return fmt.Errorf("create exchange: %w", err)
	}
	defer ex.Close()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err = ex.Connect(connectCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("exchange connect: %w", err)
	}
	logger.Info("exchange connected", zap.String("exchange", ex.Name()))

	// Персистентность опциональна
	var orderSink bot.OrderSink
	var positionStore bot.PositionStore
	if cfg.Database.Enabled {
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		logger.Info("database connected", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

		posRepo := repository.NewPositionRepository(db)
		orderSink = repository.NewOrderRepository(db)
		positionStore = posRepo

		// брошенные позиции с прошлого запуска: бот их не подхватывает,
		// но обязан сказать о них оператору
		if live, err := posRepo.ListLive(ctx); err != nil {
			logger.Warn("failed to check for abandoned positions", zap.Error(err))
		} else {
			for _, p := range live {
				logger.Warn("abandoned position from previous run",
					zap.String("position_id", p.ID),
					zap.String("symbol", p.Symbol),
					zap.String("state", p.State))
			}
		}
	}

	cache := marketdata.NewCache()

	detector := bot.NewDetector(bot.DetectorConfig{
		MinFundingRate:          cfg.Trading.MinFundingRate,
		MinSpreadPercent:        cfg.Trading.MinSpreadPercent,
		MaxSpreadPercent:        cfg.Trading.MaxSpreadPercent,
		FundingIntervalsPerYear: cfg.Trading.FundingIntervalsPerYear,
		MaxQuoteAge:             cfg.Trading.MaxQuoteAge,
		TTL:                     cfg.Trading.OpportunityTTL,
	}, cache)

	gate := bot.NewRiskGate(bot.RiskConfig{
		MaxSlippagePercent: cfg.Trading.MaxSlippagePercent,
		MaxOpenPositions:   cfg.Trading.MaxOpenPositions,
	})

	coordinator := bot.NewCoordinator(bot.CoordinatorConfig{
		PositionNotional: cfg.Trading.PositionNotional,
		HoldingDuration:  cfg.Trading.HoldingDuration,
	}, ex, orderSink, logger)

	manager := bot.NewManager(coordinator, cache, positionStore, logger)

	account := bot.NewAccountState()

	feeds := []*feed.Feed{
		newFeed("spot", cfg.Feed.SpotURL, cfg, bot.FeedHandler(cache, exchange.MarketSpot), nil, logger),
		newFeed("futures", cfg.Feed.FuturesURL, cfg, bot.FeedHandler(cache, exchange.MarketFutures), nil, logger),
	}

	// пользовательский поток аутентифицирован и существует только
	// на настоящей бирже
	if strings.EqualFold(cfg.Mode, exchange.ModeLive) {
		signer, err := exchange.NewSigner(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)
		if err != nil {
			return fmt.Errorf("create stream signer: %w", err)
		}
		feeds = append(feeds,
			newFeed("user", cfg.Feed.UserURL, cfg, account.Handler(), signer.StreamAuthHeaders, logger))
	}

	engine := bot.NewEngine(bot.EngineConfig{
		Symbols:         cfg.Trading.Symbols,
		ScanInterval:    cfg.Trading.ScanInterval,
		MonitorInterval: cfg.Trading.MonitorInterval,
		MaxQuoteAge:     cfg.Trading.MaxQuoteAge,
		ReadyTimeout:    cfg.Feed.ReadyTimeout,
	}, cache, detector, gate, coordinator, manager, feeds, account, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.SetupRoutes(engine, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrs := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- err
		}
	}()

	engineErrs := make(chan error, 1)
	go func() {
		engineErrs <- engine.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		runErr = <-engineErrs // движок помечает позиции и выходит
	case err := <-engineErrs:
		runErr = err
	case err := <-serverErrs:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	logger.Info("funding bot stopped")
	return nil
}

// newFeed собирает потоковое соединение с заданным обработчиком кадров
func newFeed(name, url string, cfg *config.Config, handler func(feed.Message),
	auth func() http.Header, logger *zap.Logger) *feed.Feed {
	return feed.New(feed.Config{
		Name:           name,
		URL:            url,
		Symbols:        cfg.Trading.Symbols,
		InitialDelay:   cfg.Feed.InitialDelay,
		MaxDelay:       cfg.Feed.MaxDelay,
		MaxRetries:     cfg.Feed.MaxRetries,
		JitterFactor:   cfg.Feed.JitterFactor,
		ConnectTimeout: cfg.Feed.ConnectTimeout,
		PingInterval:   cfg.Feed.PingInterval,
		ReadTimeout:    cfg.Feed.ReadTimeout,
		AuthHeaders:    auth,
	}, nil, handler, logger)
}
