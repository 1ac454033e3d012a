// Package session holds the per-account aggregate: configuration, tick
// window, staking/risk state and the single-flight guards that keep one
// order in flight per account.
package session

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/risk"
	"main/internal/stake"
)

// TickWindow is the bound on buffered ticks per session.
const TickWindow = 200

// Config is the per-account activation record.
type Config struct {
	AccountID string
	Token     string
	Currency  string
	Symbol    string

	BaseStake      decimal.Decimal
	ProfileKind    enum.RiskProfileKind
	DailyTarget    decimal.Decimal
	DailyLossLimit decimal.Decimal
	TrailingStop   bool

	// Provider selects the signal provider variant for this account.
	Provider string

	// DurationTicks is the contract length for placed orders.
	DurationTicks int
	// PipDigits is the symbol's quote precision, used to derive digits.
	PipDigits int

	// Recovery orders switch to this instrument, whose payout generally
	// differs from the base one.
	RecoveryContract enum.ContractType
	RecoveryBarrier  string
	RecoveryPayout   decimal.Decimal
}

// Session is one active account. Tick recording may race with analysis;
// everything else is serialized by the controller, but all state is
// mutex-guarded so transitions appear atomic to concurrent readers.
type Session struct {
	mu sync.Mutex

	cfg   Config
	prof  model.RiskProfile
	ticks *TickRing
	st    stake.State
	guard *risk.Guard

	profit decimal.Decimal

	busy               bool
	awaitingSettlement bool
	active             bool
	haltReason         enum.HaltReason
}

// New activates a session from its configuration record.
func New(cfg Config) *Session {
	prof := model.Profile(cfg.ProfileKind)
	return &Session{
		cfg:    cfg,
		prof:   prof,
		ticks:  NewTickRing(TickWindow),
		st:     stake.NewState(enum.StakeModeNormal),
		guard:  risk.NewGuard(prof, stake.DefaultMinStake),
		profit: decimal.Zero,
		active: true,
	}
}

// Apply updates configuration on re-activation without resetting in-flight
// staking state. A halted session becomes active again.
func (s *Session) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.ProfileKind != s.cfg.ProfileKind {
		s.prof = model.Profile(cfg.ProfileKind)
		s.guard = risk.NewGuard(s.prof, stake.DefaultMinStake)
	}
	s.cfg = cfg
	s.active = true
	s.haltReason = 0
}

// Cfg returns the current configuration.
func (s *Session) Cfg() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Profile returns the resolved risk profile.
func (s *Session) Profile() model.RiskProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prof
}

// Active reports whether the session may trade.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// HaltReason returns the reason of the last halt, if any.
func (s *Session) HaltReason() enum.HaltReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.haltReason
}

// Profit returns the running session P&L.
func (s *Session) Profit() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profit
}

// RecordTick buffers a tick. Always permitted, even while an analysis or
// order is in flight.
func (s *Session) RecordTick(t model.Tick) {
	s.mu.Lock()
	s.ticks.Push(t)
	s.mu.Unlock()
}

// Window copies out the most recent n ticks, oldest first.
func (s *Session) Window(n int) []model.Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks.Last(n)
}

// TryAcquire takes the per-session analysis lock. It refuses while the
// session is inactive, paused, already analyzing, or awaiting settlement;
// ticks arriving meanwhile still buffer via RecordTick.
func (s *Session) TryAcquire(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.busy || s.awaitingSettlement || s.st.Paused(now) {
		return false
	}
	s.busy = true
	return true
}

// Release drops the analysis lock.
func (s *Session) Release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// BeginOrder marks an order in flight. It must be called synchronously
// before the first network call of an order lifecycle; it fails if one is
// already in flight.
func (s *Session) BeginOrder() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaitingSettlement {
		return false
	}
	s.awaitingSettlement = true
	return true
}

// FinishOrder clears the in-flight guard. Every terminal order path ends
// here exactly once.
func (s *Session) FinishOrder() {
	s.mu.Lock()
	s.awaitingSettlement = false
	s.mu.Unlock()
}

// AwaitingSettlement reports whether an order is in flight.
func (s *Session) AwaitingSettlement() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitingSettlement
}

// NextStake sizes the next wager from the staking state. The second
// return reports ladder exhaustion, which already entered cool-down.
func (s *Session) NextStake(eng stake.Engine, now time.Time) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, err := eng.NextStake(&s.st, s.prof, s.cfg.BaseStake, s.cfg.RecoveryPayout)
	if err == stake.ErrExhausted {
		stake.Exhaust(&s.st, s.prof, now)
		return amount, true
	}
	return amount, false
}

// InRecovery reports whether the recovery ladder is active, switching the
// order to the recovery instrument.
func (s *Session) InRecovery() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.RecoveryLevel > 0
}

// EvaluateRisk runs the guard against the current P&L.
func (s *Session) EvaluateRisk(proposedStake decimal.Decimal) risk.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard.Evaluate(s.riskView(), proposedStake)
}

// Settle folds a terminal order outcome into P&L and staking state, then
// re-evaluates the guard. The returned decision is ActionHalt when the new
// P&L breached a limit.
func (s *Session) Settle(outcome enum.Outcome, staked, profit decimal.Decimal) risk.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	if outcome != enum.OutcomeError {
		s.profit = s.profit.Add(profit)
	}
	stake.Apply(&s.st, s.prof, outcome, staked, profit)
	return s.guard.Evaluate(s.riskView(), decimal.Zero)
}

// Halt deactivates the session until external reactivation.
func (s *Session) Halt(reason enum.HaltReason) {
	s.mu.Lock()
	s.active = false
	s.haltReason = reason
	s.mu.Unlock()
}

func (s *Session) riskView() risk.View {
	return risk.View{
		Profit:          s.profit,
		DailyTarget:     s.cfg.DailyTarget,
		DailyLossLimit:  s.cfg.DailyLossLimit,
		TrailingEnabled: s.cfg.TrailingStop,
	}
}
