package trader

import "github.com/shopspring/decimal"

// Fees are the fractional exchange fees of each leg.
type Fees struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
}

// GrossProfit is the quote gain of selling at sell what was bought for
// investment at entry, before fees.
func GrossProfit(investment, entry, sell decimal.Decimal) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	return investment.Mul(sell).Div(entry).Sub(investment)
}

// NetProfit applies both fees:
// (1-buyFee) * investment / entry * (1-sellFee) * sell - investment.
func NetProfit(investment, entry, sell decimal.Decimal, fees Fees) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	bought := one.Sub(fees.Buy).Mul(investment).Div(entry)
	return bought.Mul(one.Sub(fees.Sell)).Mul(sell).Sub(investment)
}
