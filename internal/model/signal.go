package model

import "main/internal/model/enum"

// Signal is a trade trigger produced by a signal provider. The provider
// decides direction only; stake sizing and risk limits are applied later.
type Signal struct {
	Contract enum.ContractType
	// Barrier is the digit boundary for over/under contracts, empty otherwise.
	Barrier string
	// DurationTicks is the contract length in ticks.
	DurationTicks int
	Confidence    float64
	Reason        string
}
