package stake

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestConservativeRecoveryScenario(t *testing.T) {
	// Base stake $1, conservative profile, recovery payout 85%: one loss
	// accumulates $1 and the next stake recovers it at the recovery
	// payout: round(1 * 1.0 / 0.85, 2) = 1.18.
	prof := model.Profile(enum.RiskProfileConservative)
	st := NewState(enum.StakeModeNormal)
	var eng Engine

	Apply(&st, prof, enum.OutcomeLost, d("1"), d("-1"))

	if !st.AccumulatedLoss.Equal(d("1")) {
		t.Fatalf("accumulated loss mismatch: got %s want 1", st.AccumulatedLoss)
	}
	if st.RecoveryLevel != 1 {
		t.Fatalf("recovery level mismatch: got %d want 1", st.RecoveryLevel)
	}

	next, err := eng.NextStake(&st, prof, d("1"), d("0.85"))
	if err != nil {
		t.Fatalf("next stake: %v", err)
	}
	if !next.Equal(d("1.18")) {
		t.Fatalf("recovery stake mismatch: got %s want 1.18", next)
	}
}

func TestRecoveryLadderMonotonicity(t *testing.T) {
	prof := model.Profile(enum.RiskProfileModerate)
	st := NewState(enum.StakeModeNormal)

	prev := 0
	for i := 0; i < 4; i++ {
		Apply(&st, prof, enum.OutcomeLost, d("1"), d("-1"))
		if st.RecoveryLevel <= prev {
			t.Fatalf("recovery level must strictly increase on loss: step %d level %d", i, st.RecoveryLevel)
		}
		prev = st.RecoveryLevel
	}
	if !st.AccumulatedLoss.Equal(d("4")) {
		t.Fatalf("accumulated loss mismatch: got %s want 4", st.AccumulatedLoss)
	}

	Apply(&st, prof, enum.OutcomeWon, d("5"), d("4.4"))
	if st.RecoveryLevel != 0 {
		t.Fatalf("first win must reset recovery level, got %d", st.RecoveryLevel)
	}
	if !st.AccumulatedLoss.IsZero() {
		t.Fatalf("accumulated loss must reset with the ladder, got %s", st.AccumulatedLoss)
	}
}

func TestSecondLossActivationVariant(t *testing.T) {
	// The apollo variant keeps the base stake after the first loss and
	// only starts recovering from the second consecutive one.
	prof := model.Profile(enum.RiskProfileConservative)
	prof.LossesBeforeRecovery = 2
	st := NewState(enum.StakeModeNormal)
	var eng Engine

	Apply(&st, prof, enum.OutcomeLost, d("1"), d("-1"))
	if st.RecoveryLevel != 0 {
		t.Fatalf("ladder must stay inactive after first loss, got level %d", st.RecoveryLevel)
	}
	next, err := eng.NextStake(&st, prof, d("1"), d("1.20"))
	if err != nil {
		t.Fatalf("next stake: %v", err)
	}
	if !next.Equal(d("1")) {
		t.Fatalf("stake after first loss must stay base, got %s", next)
	}

	Apply(&st, prof, enum.OutcomeLost, d("1"), d("-1"))
	if st.RecoveryLevel != 1 {
		t.Fatalf("ladder must activate on second loss, got level %d", st.RecoveryLevel)
	}
	next, err = eng.NextStake(&st, prof, d("1"), d("1.20"))
	if err != nil {
		t.Fatalf("next stake: %v", err)
	}
	// round(2 * 1.0 / 1.20, 2)
	if !next.Equal(d("1.67")) {
		t.Fatalf("recovery stake mismatch: got %s want 1.67", next)
	}
}

func TestStakeClampedToMinimumAndRounded(t *testing.T) {
	prof := model.Profile(enum.RiskProfileConservative)
	st := NewState(enum.StakeModeNormal)
	var eng Engine

	testCases := []struct {
		desc     string
		base     string
		expected string
	}{
		{"tiny base clamps to broker minimum", "0.10", "0.35"},
		{"exact minimum passes", "0.35", "0.35"},
		{"long fraction rounds to cents", "1.005", "1.01"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			next, err := eng.NextStake(&st, prof, d(tc.base), d("0.85"))
			if err != nil {
				t.Fatalf("next stake: %v", err)
			}
			if !next.Equal(d(tc.expected)) {
				t.Fatalf("stake mismatch: got %s want %s", next, tc.expected)
			}
			if next.Exponent() < -2 {
				t.Fatalf("stake must have at most 2 decimals, got %s", next)
			}
		})
	}
}

func TestCompoundingCycle(t *testing.T) {
	prof := model.Profile(enum.RiskProfileModerate)
	st := NewState(enum.StakeModeNormal)
	var eng Engine

	// First win arms one compounding step.
	Apply(&st, prof, enum.OutcomeWon, d("1"), d("0.85"))
	if st.CompoundingLevel != 1 {
		t.Fatalf("compounding level mismatch: got %d want 1", st.CompoundingLevel)
	}
	next, err := eng.NextStake(&st, prof, d("1"), d("0.85"))
	if err != nil {
		t.Fatalf("next stake: %v", err)
	}
	if !next.Equal(d("1.85")) {
		t.Fatalf("compounded stake mismatch: got %s want 1.85", next)
	}

	// Second consecutive win completes the cycle and resets to base.
	Apply(&st, prof, enum.OutcomeWon, d("1.85"), d("1.57"))
	if st.CompoundingLevel != 0 {
		t.Fatalf("cycle completion must reset compounding, got %d", st.CompoundingLevel)
	}

	// A loss always clears compounding.
	Apply(&st, prof, enum.OutcomeWon, d("1"), d("0.85"))
	Apply(&st, prof, enum.OutcomeLost, d("1.85"), d("-1.85"))
	if st.CompoundingLevel != 0 {
		t.Fatalf("loss must reset compounding, got %d", st.CompoundingLevel)
	}
}

func TestCompoundingNeverAccruesDuringRecovery(t *testing.T) {
	prof := model.Profile(enum.RiskProfileAggressive)
	st := NewState(enum.StakeModeNormal)

	Apply(&st, prof, enum.OutcomeLost, d("1"), d("-1"))
	Apply(&st, prof, enum.OutcomeLost, d("2"), d("-2"))
	if st.RecoveryLevel == 0 {
		t.Fatal("ladder should be active")
	}
	if st.CompoundingLevel != 0 {
		t.Fatalf("compounding must stay 0 during recovery, got %d", st.CompoundingLevel)
	}

	Apply(&st, prof, enum.OutcomeWon, d("4"), d("3.4"))
	if st.CompoundingLevel != 0 {
		t.Fatalf("recovery win banks the ladder, not a compounding step, got %d", st.CompoundingLevel)
	}
}

func TestExhaustionResetsAndPauses(t *testing.T) {
	prof := model.Profile(enum.RiskProfileConservative)
	st := NewState(enum.StakeModePrecise)
	var eng Engine

	for i := 0; i <= prof.MaxRecoveryDepth; i++ {
		Apply(&st, prof, enum.OutcomeLost, d("1"), d("-1"))
	}
	if st.RecoveryLevel != prof.MaxRecoveryDepth+1 {
		t.Fatalf("ladder depth mismatch: got %d", st.RecoveryLevel)
	}

	next, err := eng.NextStake(&st, prof, d("1"), d("0.85"))
	if err != ErrExhausted {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !next.Equal(d("1")) {
		t.Fatalf("exhausted ladder must fall back to base, got %s", next)
	}

	now := time.Now()
	Exhaust(&st, prof, now)
	if st.RecoveryLevel != 0 || !st.AccumulatedLoss.IsZero() || st.CompoundingLevel != 0 {
		t.Fatalf("exhaust must clear the ladder: %+v", st)
	}
	if st.Mode != prof.ResumeMode {
		t.Fatalf("exhaust must restore the configured mode, got %v", st.Mode)
	}
	if !st.Paused(now) {
		t.Fatal("exhaust must enter cool-down")
	}
	if st.Paused(now.Add(prof.Cooldown + time.Second)) {
		t.Fatal("cool-down must expire")
	}
}

func TestErrorOutcomeLeavesStateUntouched(t *testing.T) {
	prof := model.Profile(enum.RiskProfileModerate)
	st := NewState(enum.StakeModeNormal)
	Apply(&st, prof, enum.OutcomeLost, d("1"), d("-1"))
	before := st

	Apply(&st, prof, enum.OutcomeError, d("1.18"), decimal.Zero)
	if st.RecoveryLevel != before.RecoveryLevel || !st.AccumulatedLoss.Equal(before.AccumulatedLoss) {
		t.Fatalf("error outcome must not move the ladder: %+v vs %+v", st, before)
	}
}
