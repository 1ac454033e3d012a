package signal

import (
	"fmt"
	"strconv"

	"main/internal/model"
	"main/internal/model/enum"
)

// DigitParity fires when one digit parity dominates the recent window,
// betting on the imbalance continuing.
type DigitParity struct {
	Window    int
	Threshold float64
	Duration  int
}

func (p DigitParity) Name() string { return "digit_parity" }

func (p DigitParity) Evaluate(window []model.Tick) (model.Signal, bool) {
	if len(window) < p.Window {
		return model.Signal{}, false
	}
	ticks := window[len(window)-p.Window:]
	even := 0
	for _, t := range ticks {
		if t.Digit%2 == 0 {
			even++
		}
	}
	ratio := float64(even) / float64(len(ticks))
	switch {
	case ratio >= p.Threshold:
		return model.Signal{
			Contract:      enum.ContractTypeDigitEven,
			DurationTicks: p.Duration,
			Confidence:    ratio,
			Reason:        fmt.Sprintf("even ratio %.2f over %d ticks", ratio, len(ticks)),
		}, true
	case 1-ratio >= p.Threshold:
		return model.Signal{
			Contract:      enum.ContractTypeDigitOdd,
			DurationTicks: p.Duration,
			Confidence:    1 - ratio,
			Reason:        fmt.Sprintf("odd ratio %.2f over %d ticks", 1-ratio, len(ticks)),
		}, true
	default:
		return model.Signal{}, false
	}
}

// Streak fires against a run of same-direction deltas, betting on a
// reversal once the run reaches Length.
type Streak struct {
	Length   int
	Duration int
}

func (p Streak) Name() string { return "streak" }

func (p Streak) Evaluate(window []model.Tick) (model.Signal, bool) {
	if len(window) < p.Length+1 {
		return model.Signal{}, false
	}
	ticks := window[len(window)-p.Length-1:]
	up, down := 0, 0
	for i := 1; i < len(ticks); i++ {
		switch {
		case ticks[i].Value > ticks[i-1].Value:
			up++
		case ticks[i].Value < ticks[i-1].Value:
			down++
		}
	}
	switch {
	case up == p.Length:
		return model.Signal{
			Contract:      enum.ContractTypePut,
			DurationTicks: p.Duration,
			Confidence:    1,
			Reason:        fmt.Sprintf("%d consecutive rises", up),
		}, true
	case down == p.Length:
		return model.Signal{
			Contract:      enum.ContractTypeCall,
			DurationTicks: p.Duration,
			Confidence:    1,
			Reason:        fmt.Sprintf("%d consecutive falls", down),
		}, true
	default:
		return model.Signal{}, false
	}
}

// DeltaThreshold follows a single price move at least Delta wide.
type DeltaThreshold struct {
	Delta    float64
	Duration int
}

func (p DeltaThreshold) Name() string { return "delta" }

func (p DeltaThreshold) Evaluate(window []model.Tick) (model.Signal, bool) {
	if len(window) < 2 {
		return model.Signal{}, false
	}
	prev, last := window[len(window)-2], window[len(window)-1]
	move := last.Value - prev.Value
	switch {
	case move >= p.Delta:
		return model.Signal{
			Contract:      enum.ContractTypeCall,
			DurationTicks: p.Duration,
			Confidence:    1,
			Reason:        fmt.Sprintf("delta +%.2f", move),
		}, true
	case move <= -p.Delta:
		return model.Signal{
			Contract:      enum.ContractTypePut,
			DurationTicks: p.Duration,
			Confidence:    1,
			Reason:        fmt.Sprintf("delta %.2f", move),
		}, true
	default:
		return model.Signal{}, false
	}
}

// DigitUnder fires when nearly every recent digit sits under Barrier,
// betting the next one does too.
type DigitUnder struct {
	Barrier   int
	Window    int
	Threshold float64
	Duration  int
}

func (p DigitUnder) Name() string { return "digit_under" }

func (p DigitUnder) Evaluate(window []model.Tick) (model.Signal, bool) {
	if len(window) < p.Window {
		return model.Signal{}, false
	}
	ticks := window[len(window)-p.Window:]
	under := 0
	for _, t := range ticks {
		if t.Digit < p.Barrier {
			under++
		}
	}
	ratio := float64(under) / float64(len(ticks))
	if ratio < p.Threshold {
		return model.Signal{}, false
	}
	return model.Signal{
		Contract:      enum.ContractTypeDigitUnder,
		Barrier:       strconv.Itoa(p.Barrier),
		DurationTicks: p.Duration,
		Confidence:    ratio,
		Reason:        fmt.Sprintf("under-%d ratio %.2f", p.Barrier, ratio),
	}, true
}
