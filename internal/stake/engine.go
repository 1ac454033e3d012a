// Package stake computes wager sizes: base staking, one-step profit
// compounding after wins, and loss-recovery sizing from the accumulated
// deficit and the recovery instrument's payout rate.
package stake

import (
	"errors"

	"github.com/shopspring/decimal"

	"main/internal/model"
)

// ErrExhausted signals that the recovery ladder passed the profile's
// maximum depth; the caller must Exhaust the state and cool down.
var ErrExhausted = errors.New("stake: recovery ladder exhausted")

// DefaultMinStake is the broker-imposed minimum wager.
var DefaultMinStake = decimal.NewFromFloat(0.35)

// Engine sizes the next wager. Zero value uses the broker default minimum.
type Engine struct {
	MinStake decimal.Decimal
}

// NextStake computes the wager for the next order.
//
//   - depth 0, no compounding: the base stake
//   - depth 0, compounding armed: base plus the last win's profit
//   - depth > 0: accumulatedLoss * profitFactor / recoveryPayout, so one
//     win at the recovery payout clears the deficit (plus the profile's
//     margin)
//
// The result is clamped to the broker minimum and rounded to currency
// precision. Depth beyond the profile maximum returns ErrExhausted with
// the base stake for the eventual resumption.
func (e Engine) NextStake(st *State, prof model.RiskProfile, base, recoveryPayout decimal.Decimal) (decimal.Decimal, error) {
	if st.RecoveryLevel > prof.MaxRecoveryDepth {
		return e.clamp(base), ErrExhausted
	}

	if st.RecoveryLevel == 0 {
		amount := base
		if st.CompoundingLevel > 0 && st.LastProfit.IsPositive() {
			amount = base.Add(st.LastProfit)
		}
		return e.clamp(amount), nil
	}

	if !recoveryPayout.IsPositive() {
		return e.clamp(base), nil
	}
	amount := st.AccumulatedLoss.Mul(prof.ProfitFactor).Div(recoveryPayout)
	return e.clamp(amount), nil
}

func (e Engine) clamp(amount decimal.Decimal) decimal.Decimal {
	min := e.MinStake
	if !min.IsPositive() {
		min = DefaultMinStake
	}
	amount = amount.Round(2)
	if amount.LessThan(min) {
		return min
	}
	return amount
}
