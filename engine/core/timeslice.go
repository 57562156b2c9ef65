package core

import "time"

// TimeSlice is the cooperative budget handed to every Process call. A
// processor checks Remaining before starting a unit of work and reports the
// unit with Spend once done. The same slice is shared by a whole dependency
// chain, so a material and its textures draw from one budget.
type TimeSlice interface {
	Remaining() bool
	Spend(units int)
}

type infiniteSlice struct{}

func (infiniteSlice) Remaining() bool { return true }
func (infiniteSlice) Spend(int)       {}

// Infinite runs to completion.
var Infinite TimeSlice = infiniteSlice{}

// WorkSlice counts units of work instead of wall time. Zero units means no
// new work may start.
type WorkSlice struct {
	left  int
	spent int
}

func NewWorkSlice(units int) *WorkSlice {
	return &WorkSlice{left: units}
}

func (w *WorkSlice) Remaining() bool {
	return w.left > 0
}

func (w *WorkSlice) Spend(units int) {
	w.left -= units
	w.spent += units
}

// Spent is the number of units consumed so far.
func (w *WorkSlice) Spent() int {
	return w.spent
}

// Refill adds units, letting the same slice drive the next tick.
func (w *WorkSlice) Refill(units int) {
	if w.left < 0 {
		w.left = 0
	}
	w.left += units
}

// WallSlice is a budget of wall-clock time measured from its creation.
type WallSlice struct {
	budget time.Duration
	clock  *Clock
}

func NewTimeSlice(budget time.Duration) *WallSlice {
	c := NewClock()
	c.Start()
	return &WallSlice{budget: budget, clock: c}
}

func (w *WallSlice) Remaining() bool {
	w.clock.Update()
	return w.clock.Elapsed() < w.budget
}

func (w *WallSlice) Spend(int) {}

func (w *WallSlice) Elapsed() time.Duration {
	w.clock.Update()
	return w.clock.Elapsed()
}
