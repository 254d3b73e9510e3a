package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"spotbot/internal/model/enum"
)

func TestOrderIsFilled(t *testing.T) {
	o := Order{
		Quantity:       decimal.RequireFromString("2"),
		FilledQuantity: decimal.RequireFromString("1.5"),
		Status:         enum.OrderStatusPartiallyFilled,
	}
	assert.False(t, o.IsFilled())

	o.FilledQuantity = decimal.RequireFromString("2")
	assert.True(t, o.IsFilled())

	o = Order{Status: enum.OrderStatusFilled}
	assert.True(t, o.IsFilled())
}

func TestCloses(t *testing.T) {
	got := Closes([]Candle{{Close: 1}, {Close: 2.5}})
	assert.Equal(t, []float64{1, 2.5}, got)
}
