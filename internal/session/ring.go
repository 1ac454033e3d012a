package session

import "main/internal/model"

// TickRing is a bounded ring of the most recent ticks for one symbol.
type TickRing struct {
	buf  []model.Tick
	head int
	size int
}

// NewTickRing allocates a ring holding at most capacity ticks.
func NewTickRing(capacity int) *TickRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &TickRing{buf: make([]model.Tick, capacity)}
}

// Push appends a tick, evicting the oldest once full.
func (r *TickRing) Push(t model.Tick) {
	r.buf[r.head] = t
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// Len returns the number of buffered ticks.
func (r *TickRing) Len() int {
	return r.size
}

// Last copies out the most recent n ticks, oldest first. It returns fewer
// when the ring holds fewer.
func (r *TickRing) Last(n int) []model.Tick {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]model.Tick, n)
	start := r.head - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Digits copies out the derived last-digit window of the most recent n
// ticks, oldest first.
func (r *TickRing) Digits(n int) []int {
	ticks := r.Last(n)
	if len(ticks) == 0 {
		return nil
	}
	out := make([]int, len(ticks))
	for i, t := range ticks {
		out[i] = t.Digit
	}
	return out
}
