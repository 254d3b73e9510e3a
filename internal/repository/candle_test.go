package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"spotbot/internal/model"
)

func newMockRepository(t *testing.T) (*CandleRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewCandleRepository(gdb), mock
}

func TestCandleRepositoryLoad(t *testing.T) {
	repo, mock := newMockRepository(t)

	start := time.UnixMilli(60_000)
	end := time.UnixMilli(180_000)
	rows := sqlmock.NewRows([]string{"symbol", "candle_interval", "open_time", "open", "high", "low", "close", "volume"}).
		AddRow("BTCUSDT", "1m", int64(60_000), 1.0, 2.0, 0.5, 1.5, 10.0).
		AddRow("BTCUSDT", "1m", int64(120_000), 1.5, 2.5, 1.0, 2.0, 11.0)
	mock.ExpectQuery(`SELECT \* FROM "candle_records" WHERE`).
		WithArgs("BTCUSDT", "1m", int64(60_000), int64(180_000)).
		WillReturnRows(rows)

	candles, err := repo.Load(t.Context(), "BTCUSDT", "1m", start, end)
	require.NoError(t, err)
	require.Equal(t, []model.Candle{
		{OpenTime: 60_000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{OpenTime: 120_000, Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 11},
	}, candles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandleRepositorySaveUpserts(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`INSERT INTO "candle_records" .* ON CONFLICT .* DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.Save(t.Context(), "BTCUSDT", "1m", []model.Candle{
		{OpenTime: 60_000, Close: 1},
		{OpenTime: 120_000, Close: 2},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandleRepositorySaveEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)
	require.NoError(t, repo.Save(t.Context(), "BTCUSDT", "1m", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
