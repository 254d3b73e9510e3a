package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	got, err := Option{}.dsn()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432?sslmode=disable", got)

	got, err = Option{
		Host:     "db",
		Port:     6543,
		User:     "bot",
		Password: "p@ss",
		Database: "candles",
		SSLMode:  "require",
		Params:   map[string]string{"application_name": "spotbot", "": "skip"},
	}.dsn()
	require.NoError(t, err)
	assert.Equal(t, "postgres://bot:p%40ss@db:6543/candles?application_name=spotbot&sslmode=require", got)
}

func TestDSNConnString(t *testing.T) {
	raw := "postgresql://bot@db:5432/candles?sslmode=disable"
	got, err := Option{ConnString: raw, Host: "ignored"}.dsn()
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = Option{ConnString: "mysql://bot@db/candles"}.dsn()
	assert.Error(t, err)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.Nil(t, c.DB())
	assert.NoError(t, c.Close())
}
