package smoother

import (
	iface "SegTrackServer/interface"

	"gonum.org/v1/gonum/stat"
)

const DefaultWindow = 5

// Smoother keeps the last Window raw angles per match key. It is not safe
// for concurrent use; callers serialize cycles.
type Smoother struct {
	Window  int
	history map[iface.MatchKey][]float64
}

func New(window int) *Smoother {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Smoother{Window: window, history: make(map[iface.MatchKey][]float64)}
}

// Smooth folds this cycle's raw angles into history and replaces each angle
// with the circular mean of its window. Matches without orientation pass
// through; keys absent this cycle keep their history.
func (s *Smoother) Smooth(matches []iface.Match) []iface.Match {
	return s.apply(matches, true)
}

// Preview returns what Smooth would output without touching history.
func (s *Smoother) Preview(matches []iface.Match) []iface.Match {
	return s.apply(matches, false)
}

func (s *Smoother) apply(matches []iface.Match, commit bool) []iface.Match {
	out := make([]iface.Match, len(matches))
	for i, m := range matches {
		out[i] = m
		if m.Orientation == nil {
			continue
		}
		key := m.Key()
		window := append(append([]float64(nil), s.history[key]...), m.Orientation.RawAngle)
		if len(window) > s.Window {
			window = window[len(window)-s.Window:]
		}
		if commit {
			s.history[key] = window
		}
		o := *m.Orientation
		o.Angle = stat.CircularMean(window, nil)
		out[i].Orientation = &o
	}
	return out
}

// Reset drops every history.
func (s *Smoother) Reset() {
	s.history = make(map[iface.MatchKey][]float64)
}

// Len is the number of tracked keys.
func (s *Smoother) Len() int {
	return len(s.history)
}

// History returns a copy of the window for key.
func (s *Smoother) History(key iface.MatchKey) []float64 {
	return append([]float64(nil), s.history[key]...)
}
