package enum

// RiskProfileKind conservative, moderate, aggressive
type RiskProfileKind uint8

const (
	_risk_profile_kind_beg RiskProfileKind = iota
	RiskProfileConservative
	RiskProfileModerate
	RiskProfileAggressive
	_risk_profile_kind_end
)

func (k RiskProfileKind) IsAvailable() bool {
	return k > _risk_profile_kind_beg && k < _risk_profile_kind_end
}

func (k RiskProfileKind) String() string {
	switch k {
	case RiskProfileConservative:
		return "conservative"
	case RiskProfileModerate:
		return "moderate"
	case RiskProfileAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// ParseRiskProfileKind resolves a configured profile name.
func ParseRiskProfileKind(name string) (RiskProfileKind, bool) {
	for k := _risk_profile_kind_beg + 1; k < _risk_profile_kind_end; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return _risk_profile_kind_beg, false
}

// HaltReason take profit, stop loss, trailing stop
type HaltReason uint8

const (
	_halt_reason_beg HaltReason = iota
	HaltReasonTakeProfit
	HaltReasonStopLoss
	HaltReasonTrailingStop
	_halt_reason_end
)

func (r HaltReason) IsAvailable() bool {
	return r > _halt_reason_beg && r < _halt_reason_end
}

func (r HaltReason) String() string {
	switch r {
	case HaltReasonTakeProfit:
		return "take_profit"
	case HaltReasonStopLoss:
		return "stop_loss"
	case HaltReasonTrailingStop:
		return "trailing_stop"
	default:
		return "unknown"
	}
}

// StakeMode fast, normal, precise
type StakeMode uint8

const (
	_stake_mode_beg StakeMode = iota
	StakeModeFast
	StakeModeNormal
	StakeModePrecise
	_stake_mode_end
)

func (m StakeMode) IsAvailable() bool {
	return m > _stake_mode_beg && m < _stake_mode_end
}

func (m StakeMode) String() string {
	switch m {
	case StakeModeFast:
		return "fast"
	case StakeModeNormal:
		return "normal"
	case StakeModePrecise:
		return "precise"
	default:
		return "unknown"
	}
}
