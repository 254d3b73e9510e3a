package ops

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/yanun0323/errors"

	"spotbot/pkg/conn"
)

// Secrets are read from the environment, optionally seeded by a .env file.
type Secrets struct {
	BinanceAPIKey   string `envconfig:"BINANCE_API_KEY" required:"true"`
	BinanceSecret   string `envconfig:"BINANCE_SECRET" required:"true"`
	BinanceRestURL  string `envconfig:"BINANCE_REST_URL" default:"https://api.binance.com"`
	BinanceStreamWS string `envconfig:"BINANCE_STREAM_URL" default:"wss://stream.binance.com:9443"`
	DiscordWebhook  string `envconfig:"DISCORD_WEBHOOK_URL"`
	PostgresDSN     string `envconfig:"POSTGRES_DSN"`
	Postgres        PostgresSecrets
	PyroscopeServer string `envconfig:"PYROSCOPE_SERVER_ADDRESS"`
}

// PostgresSecrets are the discrete connection fields, used when POSTGRES_DSN
// is empty. Keys are POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER,
// POSTGRES_PASSWORD, POSTGRES_DATABASE, POSTGRES_SSLMODE and POSTGRES_PARAMS
// (k:v,k2:v2).
type PostgresSecrets struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Params   map[string]string
}

// CandleCacheEnabled reports whether any Postgres connection is configured.
func (s Secrets) CandleCacheEnabled() bool {
	return s.PostgresDSN != "" || s.Postgres.Host != ""
}

// PostgresOption builds the connection option for the candle cache.
func (s Secrets) PostgresOption() conn.Option {
	return conn.Option{
		Host:       s.Postgres.Host,
		Port:       s.Postgres.Port,
		User:       s.Postgres.User,
		Password:   s.Postgres.Password,
		Database:   s.Postgres.Database,
		SSLMode:    s.Postgres.SSLMode,
		Params:     s.Postgres.Params,
		ConnString: s.PostgresDSN,
	}
}

// LoadSecrets loads .env files when present, then the process environment.
func LoadSecrets(envFiles ...string) (Secrets, error) {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load(envFiles...)

	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return Secrets{}, errors.Wrap(err, "process env")
	}
	return s, nil
}
