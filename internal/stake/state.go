package stake

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

// State is the staking sub-state of one session. It is mutated only by
// Apply on settlement and by Exhaust when the recovery ladder runs out.
//
// Invariant: RecoveryLevel and CompoundingLevel are mutually exclusive;
// compounding only accrues while RecoveryLevel == 0.
type State struct {
	Mode              enum.StakeMode
	RecoveryLevel     int
	AccumulatedLoss   decimal.Decimal
	ConsecutiveLosses int
	CompoundingLevel  int
	LastProfit        decimal.Decimal
	PausedUntil       time.Time
}

// NewState returns the staking state for a freshly activated session.
func NewState(mode enum.StakeMode) State {
	return State{
		Mode:            mode,
		AccumulatedLoss: decimal.Zero,
		LastProfit:      decimal.Zero,
	}
}

// Paused reports whether the session is inside an exhaustion cool-down.
func (st *State) Paused(now time.Time) bool {
	return now.Before(st.PausedUntil)
}

// Apply folds one settlement outcome into the staking state.
//
// A win at recovery depth > 0 clears the ladder. A win at depth 0 advances
// the compounding cycle, resetting after the bounded number of steps
// completes. A loss accrues into AccumulatedLoss and activates or deepens
// the ladder once the profile's consecutive-loss threshold is reached. An
// error outcome leaves the state untouched: the true result is unknown and
// must not move the ladder.
func Apply(st *State, prof model.RiskProfile, outcome enum.Outcome, staked, profit decimal.Decimal) {
	switch outcome {
	case enum.OutcomeWon:
		st.LastProfit = profit
		st.ConsecutiveLosses = 0
		if st.RecoveryLevel > 0 {
			st.RecoveryLevel = 0
			st.AccumulatedLoss = decimal.Zero
			st.CompoundingLevel = 0
			return
		}
		st.AccumulatedLoss = decimal.Zero
		if st.CompoundingLevel >= prof.CompoundingSteps {
			// Cycle complete: the compounded win banked, back to base.
			st.CompoundingLevel = 0
		} else {
			st.CompoundingLevel++
		}
	case enum.OutcomeLost:
		st.LastProfit = profit
		st.ConsecutiveLosses++
		st.AccumulatedLoss = st.AccumulatedLoss.Add(staked)
		st.CompoundingLevel = 0
		if st.ConsecutiveLosses >= prof.LossesBeforeRecovery {
			st.RecoveryLevel++
		}
	case enum.OutcomeError:
		// Unknown outcome, no staking transition.
	}
}

// Exhaust resets the ladder after it exceeded the profile's maximum depth
// and enters the cool-down window.
func Exhaust(st *State, prof model.RiskProfile, now time.Time) {
	st.RecoveryLevel = 0
	st.AccumulatedLoss = decimal.Zero
	st.ConsecutiveLosses = 0
	st.CompoundingLevel = 0
	st.Mode = prof.ResumeMode
	st.PausedUntil = now.Add(prof.Cooldown)
}
