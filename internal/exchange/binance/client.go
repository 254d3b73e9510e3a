package binance

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"spotbot/internal/exchange"
	"spotbot/internal/obs"
	"spotbot/pkg/websocket"
)

const (
	_binanceBaseUrl   = "https://api.binance.com"
	_binanceBaseWsUrl = "wss://stream.binance.com:9443"

	_klineLimit = 1000
)

var _ exchange.Gateway = (*Client)(nil)

// Config holds endpoints, credentials and stream policy.
type Config struct {
	RestURL             string
	StreamURL           string
	APIKey              string
	Secret              string
	RecvWindow          time.Duration
	RequestTimeout      time.Duration
	MaxReconnectRetries int
	Backoff             websocket.Backoff
	ListenKeyKeepAlive  time.Duration
	PingInterval        time.Duration
	ReadTimeout         time.Duration
}

// Client talks to the Binance spot REST API and websocket streams.
type Client struct {
	cfg      Config
	http     *http.Client
	validate *validator.Validate
	metrics  *obs.Metrics
	now      func() time.Time

	keyMu     sync.Mutex
	listenKey string
}

func New(cfg Config, httpClient *http.Client, metrics *obs.Metrics) *Client {
	if cfg.RestURL == "" {
		cfg.RestURL = _binanceBaseUrl
	}
	if cfg.StreamURL == "" {
		cfg.StreamURL = _binanceBaseWsUrl
	}
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.ListenKeyKeepAlive <= 0 {
		cfg.ListenKeyKeepAlive = 30 * time.Minute
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		cfg:      cfg,
		http:     httpClient,
		validate: validator.New(),
		metrics:  metrics,
		now:      time.Now,
	}
}
