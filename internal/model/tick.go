package model

import "time"

// Tick is one quote from the counterparty tick feed.
type Tick struct {
	Symbol string
	Value  float64
	// Digit is the last decimal digit of the quote, the unit digit
	// contracts settle on.
	Digit int
	At    time.Time
}

// LastDigit extracts the final decimal digit of a quote formatted with the
// given pip precision.
func LastDigit(value float64, pipDigits int) int {
	scaled := value
	for i := 0; i < pipDigits; i++ {
		scaled *= 10
	}
	d := int64(scaled+0.5) % 10
	if d < 0 {
		d += 10
	}
	return int(d)
}
