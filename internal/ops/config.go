package ops

import (
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"spotbot/internal/risk"
	"spotbot/pkg/exception"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	QuoteAsset           string         `json:"quoteAsset"`
	BaseAssets           []string       `json:"baseAssets"`
	Interval             string         `json:"interval"`
	Window               int            `json:"window"`
	Lookback             string         `json:"lookback"`
	BootstrapConcurrency int            `json:"bootstrapConcurrency"`
	QueueCapacity        int            `json:"queueCapacity"`
	Tick                 string         `json:"tick"`
	BuyTimeout           string         `json:"buyTimeout"`
	MinProfit            string         `json:"minProfit"`
	BuyFee               string         `json:"buyFee"`
	SellFee              string         `json:"sellFee"`
	MaxInvestment        string         `json:"maxInvestment"`
	Strategy             StrategyConfig `json:"strategy"`
	Stream               StreamConfig   `json:"stream"`
	Risk                 RiskConfig     `json:"risk"`
	MetricsAddr          string         `json:"metricsAddr"`
	NotifyQueueCapacity  int            `json:"notifyQueueCapacity"`
}

// StrategyConfig selects the entry signal.
type StrategyConfig struct {
	Name      string  `json:"name"`
	Window    int     `json:"window"`
	Threshold float64 `json:"threshold"`
}

// StreamConfig controls websocket reconnects.
type StreamConfig struct {
	MaxReconnectRetries int    `json:"maxReconnectRetries"`
	BackoffMin          string `json:"backoffMin"`
	BackoffMax          string `json:"backoffMax"`
}

// RiskConfig holds pre-trade limits. Zero disables a limit.
type RiskConfig struct {
	KillSwitch       bool   `json:"killSwitch"`
	MaxOrderNotional string `json:"maxOrderNotional"`
	OrderRateLimit   int    `json:"orderRateLimit"`
	OrderRateWindow  string `json:"orderRateWindow"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	QuoteAsset           string   `validate:"required,uppercase"`
	BaseAssets           []string `validate:"required,min=1,dive,required,uppercase"`
	Symbols              []string
	Interval             string        `validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d"`
	Window               int           `validate:"gte=2"`
	Lookback             time.Duration `validate:"gt=0"`
	BootstrapConcurrency int           `validate:"gte=1"`
	QueueCapacity        int           `validate:"gte=1"`
	Tick                 time.Duration `validate:"gt=0"`
	BuyTimeout           time.Duration `validate:"gtfield=Tick"`
	MinProfit            decimal.Decimal
	BuyFee               decimal.Decimal
	SellFee              decimal.Decimal
	MaxInvestment        decimal.Decimal
	Strategy             StrategyConfig
	MaxReconnectRetries  int `validate:"gte=0"`
	BackoffMin           time.Duration
	BackoffMax           time.Duration `validate:"gtefield=BackoffMin"`
	Risk                 risk.Config
	MetricsAddr          string
	NotifyQueueCapacity  int `validate:"gte=1"`
}

// Default matches the settings the bot has been run with: RSI(13) under
// 26 on one minute candles, 0.3% take profit and a two minute buy timeout.
func Default() FileConfig {
	return FileConfig{
		BaseAssets:           []string{"BTC", "ETH", "BNB", "XRP", "SOL", "ADA", "AVAX", "DOT", "DOGE", "SHIB"},
		QuoteAsset:           "USDT",
		Interval:             "1m",
		Window:               200,
		Lookback:             "3h",
		BootstrapConcurrency: 4,
		QueueCapacity:        1024,
		Tick:                 "1s",
		BuyTimeout:           "120s",
		MinProfit:            "1.003",
		BuyFee:               "0.00075",
		SellFee:              "0.00075",
		MaxInvestment:        "0",
		Strategy:             StrategyConfig{Name: "rsi", Window: 13, Threshold: 26},
		Stream:               StreamConfig{MaxReconnectRetries: 5, BackoffMin: "250ms", BackoffMax: "5s"},
		Risk:                 RiskConfig{MaxOrderNotional: "0", OrderRateWindow: "1m"},
		MetricsAddr:          ":9090",
		NotifyQueueCapacity:  64,
	}
}

// Load reads a JSON config file over the defaults and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	return Parse(data)
}

// Parse resolves a JSON config document over the defaults.
func Parse(data []byte) (Loaded, error) {
	cfg := Default()
	if err := sonic.ConfigStd.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "unmarshal config")
	}
	return Resolve(cfg)
}

// Resolve parses durations and decimals and validates the result.
func Resolve(cfg FileConfig) (Loaded, error) {
	var (
		loaded = Loaded{
			QuoteAsset:           cfg.QuoteAsset,
			BaseAssets:           cfg.BaseAssets,
			Interval:             cfg.Interval,
			Window:               cfg.Window,
			BootstrapConcurrency: cfg.BootstrapConcurrency,
			QueueCapacity:        cfg.QueueCapacity,
			Strategy:             cfg.Strategy,
			MaxReconnectRetries:  cfg.Stream.MaxReconnectRetries,
			Risk: risk.Config{
				KillSwitch:     cfg.Risk.KillSwitch,
				OrderRateLimit: cfg.Risk.OrderRateLimit,
			},
			MetricsAddr:         cfg.MetricsAddr,
			NotifyQueueCapacity: cfg.NotifyQueueCapacity,
		}
		err error
	)

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"lookback", cfg.Lookback, &loaded.Lookback},
		{"tick", cfg.Tick, &loaded.Tick},
		{"buyTimeout", cfg.BuyTimeout, &loaded.BuyTimeout},
		{"stream.backoffMin", cfg.Stream.BackoffMin, &loaded.BackoffMin},
		{"stream.backoffMax", cfg.Stream.BackoffMax, &loaded.BackoffMax},
		{"risk.orderRateWindow", cfg.Risk.OrderRateWindow, &loaded.Risk.OrderRateWindow},
	} {
		if *d.dst, err = time.ParseDuration(d.raw); err != nil {
			return Loaded{}, errors.Wrapf(exception.ErrInvalidConfig, "%s: %s", d.name, err.Error())
		}
	}

	for _, d := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"minProfit", cfg.MinProfit, &loaded.MinProfit},
		{"buyFee", cfg.BuyFee, &loaded.BuyFee},
		{"sellFee", cfg.SellFee, &loaded.SellFee},
		{"maxInvestment", cfg.MaxInvestment, &loaded.MaxInvestment},
		{"risk.maxOrderNotional", cfg.Risk.MaxOrderNotional, &loaded.Risk.MaxOrderNotional},
	} {
		if *d.dst, err = decimal.NewFromString(d.raw); err != nil {
			return Loaded{}, errors.Wrapf(exception.ErrInvalidConfig, "%s: %s", d.name, err.Error())
		}
	}

	if err := validator.New().Struct(loaded); err != nil {
		return Loaded{}, errors.Wrap(exception.ErrInvalidConfig, err.Error())
	}
	if err := validateMoney(loaded); err != nil {
		return Loaded{}, err
	}

	loaded.Symbols = make([]string, 0, len(loaded.BaseAssets))
	for _, base := range loaded.BaseAssets {
		loaded.Symbols = append(loaded.Symbols, base+loaded.QuoteAsset)
	}
	return loaded, nil
}

func validateMoney(cfg Loaded) error {
	one := decimal.NewFromInt(1)
	if !cfg.MinProfit.GreaterThan(one) {
		return errors.Wrap(exception.ErrInvalidConfig, "minProfit must be > 1")
	}
	for _, fee := range []decimal.Decimal{cfg.BuyFee, cfg.SellFee} {
		if fee.IsNegative() || !fee.LessThan(one) {
			return errors.Wrap(exception.ErrInvalidConfig, "fees must be in [0, 1)")
		}
	}
	if cfg.MaxInvestment.IsNegative() {
		return errors.Wrap(exception.ErrInvalidConfig, "maxInvestment must be >= 0")
	}
	if cfg.Risk.MaxOrderNotional.IsNegative() || cfg.Risk.OrderRateLimit < 0 || cfg.Risk.OrderRateWindow < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "risk limits must be >= 0")
	}
	return nil
}
