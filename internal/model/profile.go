package model

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// RiskProfile parameterizes the staking and risk engines. The same engine
// serves every strategy variant; only these knobs differ.
type RiskProfile struct {
	Kind enum.RiskProfileKind

	// ProfitFactor scales the recovery target: 1.0 recovers losses only,
	// above 1.0 targets losses plus a margin.
	ProfitFactor decimal.Decimal

	// MaxRecoveryDepth is the deepest recovery step before the ladder is
	// declared exhausted.
	MaxRecoveryDepth int

	// LossesBeforeRecovery is the consecutive-loss count at which the
	// recovery ladder activates. 1 recovers from the first loss, 2 keeps
	// the base stake for one more attempt first. Strategy variants differ
	// here, so it is configuration rather than a fixed rule.
	LossesBeforeRecovery int

	// CompoundingSteps bounds profit compounding after consecutive wins.
	CompoundingSteps int

	// Cooldown is the pause applied after the ladder is exhausted.
	Cooldown time.Duration

	// ResumeMode is the stake mode restored after exhaustion.
	ResumeMode enum.StakeMode

	// TrailingArmFraction of the daily target at which the trailing stop
	// arms, and TrailingProtectedFraction of the peak it locks in.
	TrailingArmFraction       decimal.Decimal
	TrailingProtectedFraction decimal.Decimal
}

// Profile returns the built-in profile for a kind.
func Profile(kind enum.RiskProfileKind) RiskProfile {
	p := RiskProfile{
		Kind:                      kind,
		MaxRecoveryDepth:          5,
		LossesBeforeRecovery:      1,
		CompoundingSteps:          1,
		Cooldown:                  5 * time.Minute,
		ResumeMode:                enum.StakeModeNormal,
		TrailingArmFraction:       decimal.NewFromFloat(0.40),
		TrailingProtectedFraction: decimal.NewFromFloat(0.50),
	}
	switch kind {
	case enum.RiskProfileConservative:
		// Recovers accumulated losses only, no extra margin.
		p.ProfitFactor = decimal.NewFromInt(1)
		p.MaxRecoveryDepth = 4
	case enum.RiskProfileModerate:
		p.ProfitFactor = decimal.NewFromFloat(1.08)
	case enum.RiskProfileAggressive:
		p.ProfitFactor = decimal.NewFromFloat(1.15)
		p.MaxRecoveryDepth = 6
	default:
		p.ProfitFactor = decimal.NewFromInt(1)
	}
	return p
}
