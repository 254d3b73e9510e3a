package repository

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spotbot/internal/model"
)

// CandleRecord is one cached kline row.
type CandleRecord struct {
	Symbol    string  `gorm:"column:symbol;type:varchar(32);primaryKey"`
	Interval  string  `gorm:"column:candle_interval;type:varchar(8);primaryKey"`
	OpenTime  int64   `gorm:"column:open_time;primaryKey;autoIncrement:false"`
	Open      float64 `gorm:"column:open;not null"`
	High      float64 `gorm:"column:high;not null"`
	Low       float64 `gorm:"column:low;not null"`
	Close     float64 `gorm:"column:close;not null"`
	Volume    float64 `gorm:"column:volume;not null"`
	UpdatedAt time.Time
}

func (CandleRecord) TableName() string {
	return "candle_records"
}

// CandleRepository caches historical candles in PostgreSQL.
type CandleRepository struct {
	db *gorm.DB
}

func NewCandleRepository(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// Migrate creates or updates the candle table.
func (r *CandleRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&CandleRecord{}); err != nil {
		return errors.Wrap(err, "auto migrate candle records")
	}
	return nil
}

// Load returns cached candles with OpenTime in [start, end], oldest first.
func (r *CandleRepository) Load(ctx context.Context, symbol, interval string, start, end time.Time) ([]model.Candle, error) {
	var records []CandleRecord
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND candle_interval = ? AND open_time >= ? AND open_time <= ?",
			symbol, interval, start.UnixMilli(), end.UnixMilli()).
		Order("open_time").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "query candle records").With("symbol", symbol)
	}

	candles := make([]model.Candle, 0, len(records))
	for _, rec := range records {
		candles = append(candles, model.Candle{
			OpenTime: rec.OpenTime,
			Open:     rec.Open,
			High:     rec.High,
			Low:      rec.Low,
			Close:    rec.Close,
			Volume:   rec.Volume,
		})
	}
	return candles, nil
}

// Save upserts candles, overwriting rows with the same key.
func (r *CandleRepository) Save(ctx context.Context, symbol, interval string, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	records := make([]CandleRecord, 0, len(candles))
	for _, c := range candles {
		records = append(records, CandleRecord{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: c.OpenTime,
			Open:     c.Open,
			High:     c.High,
			Low:      c.Low,
			Close:    c.Close,
			Volume:   c.Volume,
		})
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(records, 500).Error
	if err != nil {
		return errors.Wrap(err, "upsert candle records").With("symbol", symbol)
	}
	return nil
}
