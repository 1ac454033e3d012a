// Package signal hosts the pluggable trade-trigger providers. A provider
// is a stateless function of the tick window; direction comes from here,
// stake sizing and risk limits do not.
package signal

import (
	"errors"

	"main/internal/model"
)

var ErrUnknownProvider = errors.New("signal: unknown provider")

// Provider decides whether the current tick window triggers a trade.
type Provider interface {
	Name() string
	Evaluate(window []model.Tick) (model.Signal, bool)
}

// For resolves a provider variant by its configured name.
func For(name string) (Provider, error) {
	switch name {
	case "digit_parity", "":
		return DigitParity{Window: 24, Threshold: 0.70, Duration: 5}, nil
	case "streak":
		return Streak{Length: 5, Duration: 5}, nil
	case "delta":
		return DeltaThreshold{Delta: 0.8, Duration: 5}, nil
	case "digit_under":
		return DigitUnder{Barrier: 8, Window: 16, Threshold: 0.85, Duration: 5}, nil
	default:
		return nil, ErrUnknownProvider
	}
}
