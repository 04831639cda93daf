// Package raster holds the animation state of a spike raster: one scrolling
// train of spikes per channel whose density follows the latest spike count.
package raster

import (
	"fmt"
	"math"

	"spikeplot.dev/spikeplot/common"
)

// Train is the scrolling spike train of one channel. Spike positions are in
// ticks, with 0 at the left edge and Window just past the right edge.
type Train struct {
	Name  string
	Count int

	spikes []int
}

// Spikes returns the spike positions, oldest first.
func (t *Train) Spikes() []int {
	return t.spikes
}

// Raster animates a set of trains.
type Raster struct {
	Window int
	Rate   int
	Trains []*Train
	Tick   uint64

	frozen bool
}

// New returns a raster with one train per name. Non-positive window and rate
// fall back to the defaults.
func New(names []string, window, rate int) *Raster {
	if window < 1 {
		window = common.DefaultWindow
	}
	if rate < 1 {
		rate = common.DefaultTickRate
	}
	r := &Raster{Window: window, Rate: rate, Trains: make([]*Train, len(names))}
	for i, n := range names {
		r.Trains[i] = &Train{Name: n}
	}
	return r
}

// Period returns the number of ticks between spikes for a count. A count of
// zero or less never spikes and returns 0.
func (r *Raster) Period(count int) int {
	if count <= 0 {
		return 0
	}
	p := int(math.Round(float64(r.Rate) / float64(count)))
	if p < 1 {
		p = 1
	}
	return p
}

// Step advances the animation by one tick. A frozen raster keeps counting
// ticks but does not move, so spikes resume in phase.
func (r *Raster) Step() {
	if r.frozen {
		r.Tick++
		return
	}
	for _, t := range r.Trains {
		if p := r.Period(t.Count); p > 0 && r.Tick%uint64(p) == 0 {
			t.spikes = append(t.spikes, r.Window)
		}
		kept := t.spikes[:0]
		for _, x := range t.spikes {
			if x-1 >= 0 {
				kept = append(kept, x-1)
			}
		}
		t.spikes = kept
	}
	r.Tick++
}

// Update sets the counts of the trains from a frame. Extra counts are ignored
// and missing ones leave the train unchanged.
func (r *Raster) Update(counts []byte) {
	for i, c := range counts {
		if i >= len(r.Trains) {
			break
		}
		r.Trains[i].Count = int(c)
	}
}

// Freeze stops or resumes the animation.
func (r *Raster) Freeze(frozen bool) {
	r.frozen = frozen
}

// Frozen reports whether the animation is stopped.
func (r *Raster) Frozen() bool {
	return r.frozen
}

// Reset clears all spikes and counts.
func (r *Raster) Reset() {
	for _, t := range r.Trains {
		t.Count = 0
		t.spikes = nil
	}
	r.Tick = 0
}

// Columns maps the spikes of t onto width columns and reports which columns
// hold at least one spike.
func (r *Raster) Columns(t *Train, width int) []bool {
	if width < 1 {
		return nil
	}
	cols := make([]bool, width)
	for _, x := range t.spikes {
		c := x * width / r.Window
		if c >= 0 && c < width {
			cols[c] = true
		}
	}
	return cols
}

// WindowLabel describes the visible time span, e.g. "1 sec".
func (r *Raster) WindowLabel() string {
	secs := float64(r.Window) / float64(r.Rate)
	if secs == math.Trunc(secs) {
		return fmt.Sprintf("%d sec", int(secs))
	}
	return fmt.Sprintf("%.1f sec", secs)
}
