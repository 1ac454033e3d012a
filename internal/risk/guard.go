// Package risk evaluates session P&L against take-profit, stop-loss and
// the trailing "shielded" stop, deciding whether a proposed wager may
// proceed, must shrink, or must halt the session.
package risk

import (
	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

// Action allow as proposed, allow with a smaller stake, halt the session
type Action uint8

const (
	_action_beg Action = iota
	ActionProceed
	ActionAdjust
	ActionHalt
	_action_end
)

func (a Action) IsAvailable() bool {
	return a > _action_beg && a < _action_end
}

// View is the session snapshot the guard evaluates against.
type View struct {
	// Profit is the running session P&L, signed.
	Profit          decimal.Decimal
	DailyTarget     decimal.Decimal
	DailyLossLimit  decimal.Decimal
	TrailingEnabled bool
}

// Decision is the guard's verdict for one proposed wager.
type Decision struct {
	Action Action
	// Stake is the allowed wager for Proceed/Adjust.
	Stake  decimal.Decimal
	Reason enum.HaltReason
}

// Guard carries the per-session trailing-stop state. The armed floor only
// ever ratchets upward over the life of a session.
type Guard struct {
	prof     model.RiskProfile
	minStake decimal.Decimal

	armed bool
	peak  decimal.Decimal
	floor decimal.Decimal
}

// NewGuard builds a guard for one session.
func NewGuard(prof model.RiskProfile, minStake decimal.Decimal) *Guard {
	return &Guard{prof: prof, minStake: minStake}
}

// Armed reports whether the trailing stop has armed.
func (g *Guard) Armed() bool {
	return g.armed
}

// Floor returns the current protected-profit floor.
func (g *Guard) Floor() decimal.Decimal {
	return g.floor
}

// Evaluate checks the session against its limits and sizes the proposed
// stake into the remaining loss headroom. Every halt is terminal for the
// session cycle; resumption requires external reactivation.
func (g *Guard) Evaluate(view View, proposedStake decimal.Decimal) Decision {
	if view.DailyTarget.IsPositive() && view.Profit.GreaterThanOrEqual(view.DailyTarget) {
		return Decision{Action: ActionHalt, Reason: enum.HaltReasonTakeProfit}
	}

	if view.TrailingEnabled && view.DailyTarget.IsPositive() {
		if d, halted := g.evaluateTrailing(view.Profit, view.DailyTarget); halted {
			return d
		}
	}

	drawdown := decimal.Zero
	if view.Profit.IsNegative() {
		drawdown = view.Profit.Neg()
	}
	if view.DailyLossLimit.IsPositive() {
		if drawdown.GreaterThanOrEqual(view.DailyLossLimit) {
			return Decision{Action: ActionHalt, Reason: enum.HaltReasonStopLoss}
		}
		if drawdown.Add(proposedStake).GreaterThan(view.DailyLossLimit) {
			headroom := view.DailyLossLimit.Sub(drawdown).Round(2)
			if headroom.LessThan(g.minStake) {
				return Decision{Action: ActionHalt, Reason: enum.HaltReasonStopLoss}
			}
			return Decision{Action: ActionAdjust, Stake: headroom}
		}
	}

	return Decision{Action: ActionProceed, Stake: proposedStake}
}

func (g *Guard) evaluateTrailing(profit, target decimal.Decimal) (Decision, bool) {
	if !g.armed {
		armAt := target.Mul(g.prof.TrailingArmFraction)
		if profit.LessThan(armAt) {
			return Decision{}, false
		}
		g.armed = true
		g.peak = profit
		g.floor = profit.Mul(g.prof.TrailingProtectedFraction)
		return Decision{}, false
	}

	if profit.GreaterThan(g.peak) {
		g.peak = profit
		next := profit.Mul(g.prof.TrailingProtectedFraction)
		if next.GreaterThan(g.floor) {
			g.floor = next
		}
	}
	if profit.LessThanOrEqual(g.floor) {
		return Decision{Action: ActionHalt, Reason: enum.HaltReasonTrailingStop}, true
	}
	return Decision{}, false
}
