package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultQuantityPrecision is the number of decimal places position quantity is rounded to.
const DefaultQuantityPrecision int32 = 6

// CapitalModel is the fixed capital/leverage/fee model applied to every trade.
type CapitalModel struct {
	InitialInvestment  decimal.Decimal
	InvestmentFraction decimal.Decimal // share of initial investment per trade
	Leverage           decimal.Decimal
	FeeRate            decimal.Decimal // percent of notional, charged once per trade
	QuantityPrecision  int32
}

// DefaultCapitalModel returns 1000 initial, 10% per trade, 20x leverage, 0.02% fee.
func DefaultCapitalModel() CapitalModel {
	return CapitalModel{
		InitialInvestment:  decimal.NewFromInt(1000),
		InvestmentFraction: decimal.RequireFromString("0.1"),
		Leverage:           decimal.NewFromInt(20),
		FeeRate:            decimal.RequireFromString("0.02"),
		QuantityPrecision:  DefaultQuantityPrecision,
	}
}

// Notional returns initial_investment * investment_fraction * leverage.
func (m CapitalModel) Notional() decimal.Decimal {
	return m.InitialInvestment.Mul(m.InvestmentFraction).Mul(m.Leverage)
}

// Fee returns notional * fee_rate / 100.
func (m CapitalModel) Fee() decimal.Decimal {
	return m.Notional().Mul(m.FeeRate).Div(decimal.NewFromInt(100))
}

// Validate checks the model parameters.
func (m CapitalModel) Validate() error {
	var errs []error
	if !m.InitialInvestment.IsPositive() {
		errs = append(errs, fmt.Errorf("initial investment must be positive, got %s", m.InitialInvestment))
	}
	if !m.InvestmentFraction.IsPositive() || m.InvestmentFraction.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("investment fraction must be in (0, 1], got %s", m.InvestmentFraction))
	}
	if m.Leverage.LessThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("leverage must be >= 1, got %s", m.Leverage))
	}
	if m.FeeRate.IsNegative() {
		errs = append(errs, fmt.Errorf("fee rate must be >= 0, got %s", m.FeeRate))
	}
	if m.QuantityPrecision < 0 {
		errs = append(errs, fmt.Errorf("quantity precision must be >= 0, got %d", m.QuantityPrecision))
	}
	return errors.Join(errs...)
}
