package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"

	"spotbot/internal/account"
	"spotbot/internal/candle"
	"spotbot/internal/exchange"
	"spotbot/internal/exchange/binance"
	"spotbot/internal/marketdata"
	"spotbot/internal/notify"
	"spotbot/internal/obs"
	"spotbot/internal/ops"
	"spotbot/internal/repository"
	"spotbot/internal/signal"
	"spotbot/internal/trader"
	"spotbot/pkg/conn"
	"spotbot/pkg/websocket"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("trader exited, err: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config (built-in defaults when empty)")
	envFile := flag.String("env", ".env", "Path to .env file with secrets")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	secrets, err := ops.LoadSecrets(*envFile)
	if err != nil {
		return err
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if secrets.PyroscopeServer != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "spotbot.trader",
			ServerAddress:   secrets.PyroscopeServer,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return errors.Wrap(err, "start pyroscope")
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := obs.New(prometheus.NewRegistry())

	client := binance.New(binance.Config{
		RestURL:             secrets.BinanceRestURL,
		StreamURL:           secrets.BinanceStreamWS,
		APIKey:              secrets.BinanceAPIKey,
		Secret:              secrets.BinanceSecret,
		MaxReconnectRetries: cfg.MaxReconnectRetries,
		Backoff: websocket.Backoff{
			Min:    cfg.BackoffMin,
			Max:    cfg.BackoffMax,
			Factor: 2,
			Jitter: 0.2,
		},
	}, nil, metrics)

	var history exchange.HistorySource = client
	if secrets.CandleCacheEnabled() {
		pg, err := conn.New(ctx, secrets.PostgresOption())
		if err != nil {
			return err
		}
		defer pg.Close()

		repo := repository.NewCandleRepository(pg.DB())
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		history = marketdata.NewCachedHistory(repo, client)
		logs.Info("candle cache enabled")
	}

	evaluator, err := signal.New(signal.Config{
		Strategy:  cfg.Strategy.Name,
		Window:    cfg.Strategy.Window,
		Threshold: cfg.Strategy.Threshold,
	})
	if err != nil {
		return err
	}

	store := candle.NewStore(cfg.Symbols, cfg.Window)
	market := marketdata.NewStream(marketdata.Config{
		Interval:             cfg.Interval,
		Lookback:             cfg.Lookback,
		BootstrapConcurrency: cfg.BootstrapConcurrency,
		QueueCapacity:        cfg.QueueCapacity,
	}, store, history, client, metrics)
	tracker := account.NewTracker(client, cfg.BaseAssets, cfg.QuoteAsset, cfg.QueueCapacity, metrics)

	eg, ctx := errgroup.WithContext(ctx)

	var notifier notify.Notifier = notify.LogNotifier{}
	if secrets.DiscordWebhook != "" {
		discord := notify.NewDiscord(secrets.DiscordWebhook, nil, cfg.NotifyQueueCapacity, metrics)
		notifier = discord
		eg.Go(func() error {
			return discord.Run(ctx)
		})
	}

	controller := trader.NewController(trader.Config{
		QuoteAsset:    cfg.QuoteAsset,
		Tick:          cfg.Tick,
		BuyTimeout:    cfg.BuyTimeout,
		MinProfit:     cfg.MinProfit,
		Fees:          trader.Fees{Buy: cfg.BuyFee, Sell: cfg.SellFee},
		MaxInvestment: cfg.MaxInvestment,
		Risk:          cfg.Risk,
	}, store, tracker, client, evaluator, notifier, metrics)

	if cfg.MetricsAddr != "" {
		serveMetrics(ctx, eg, cfg.MetricsAddr, metrics.Handler())
	}

	eg.Go(func() error {
		return market.Run(ctx)
	})
	eg.Go(func() error {
		return tracker.Run(ctx)
	})
	eg.Go(func() error {
		return controller.Run(ctx, market, tracker)
	})

	logs.Infof("trader running, symbols: %v, strategy: %s", cfg.Symbols, cfg.Strategy.Name)
	return eg.Wait()
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Resolve(ops.Default())
	}
	return ops.Load(path)
}

func serveMetrics(ctx context.Context, eg *errgroup.Group, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg.Go(func() error {
		logs.Infof("metrics listening, addr: %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "serve metrics")
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
