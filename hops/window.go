package hops

import "fmt"

// Window picks the cheapest plan inside an equivalence class of trace
// positions, i.e. a range where injecting at any position has the same
// effect. Ranges must be requested with non-decreasing bounds.
type Window struct {
	p       *Planner
	first   uint64
	results []Target
}

func NewWindow(p *Planner) *Window {
	return &Window{p: p, first: 1}
}

// Select returns the lowest cost plan among positions first..last. On equal
// costs the earliest position wins.
func (w *Window) Select(first, last uint64) (Target, error) {
	if first == 0 || last < first {
		return Target{}, fmt.Errorf("%w: [%d, %d]", ErrWindowInvalid, first, last)
	}
	if first < w.first {
		return Target{}, fmt.Errorf("%w: window starts at %d after %d", ErrPositionRegressed, first, w.first)
	}

	end := w.first + uint64(len(w.results))
	if first >= end {
		w.results = w.results[:0]
		w.first = first
		end = first
	} else {
		w.results = w.results[first-w.first:]
		w.first = first
	}
	for pos := end; pos <= last; pos++ {
		t, err := w.p.AdvanceTo(pos)
		if err != nil {
			return Target{}, err
		}
		w.results = append(w.results, t)
	}

	candidates := w.results[:last-first+1]
	best := candidates[0]
	for _, t := range candidates[1:] {
		if t.Costs < best.Costs {
			best = t
		}
	}
	return best, nil
}
