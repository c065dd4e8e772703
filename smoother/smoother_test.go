package smoother

import (
	"math"
	"testing"

	iface "SegTrackServer/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchWithAngle(id string, lm int, angle float64) iface.Match {
	return iface.Match{
		Identity:    id,
		Landmark:    lm,
		Orientation: &iface.Orientation{Angle: angle, RawAngle: angle},
	}
}

func feed(s *Smoother, id string, lm int, angles ...float64) float64 {
	var last float64
	for _, a := range angles {
		out := s.Smooth([]iface.Match{matchWithAngle(id, lm, a)})
		last = out[0].Orientation.Angle
	}
	return last
}

func TestSmoother_Constant(t *testing.T) {
	s := New(5)
	for i := 0; i < 8; i++ {
		assert.InDelta(t, 1.2, feed(s, "h", 8, 1.2), 1e-12)
	}
}

func TestSmoother_WrapAround(t *testing.T) {
	s := New(5)
	got := feed(s, "h", 8, 3.10, -3.10, 3.10, -3.10, 3.10)
	assert.Greater(t, math.Abs(got), 3.0)
	assert.InDelta(t, math.Pi, math.Abs(got), 0.05)
}

func TestSmoother_Window(t *testing.T) {
	s := New(3)
	got := feed(s, "h", 8, 0.1, 0.2, 0.3, 0.4, 0.5)
	key := iface.MatchKey{Identity: "h", Landmark: 8}
	assert.Equal(t, []float64{0.3, 0.4, 0.5}, s.History(key))
	assert.InDelta(t, 0.4, got, 1e-12)
}

func TestSmoother_Keys(t *testing.T) {
	s := New(5)
	feed(s, "h", 8, 1.0)
	feed(s, "h", 12, -1.0)
	require.Equal(t, 2, s.Len())

	t.Run("absent key keeps history", func(t *testing.T) {
		s.Smooth([]iface.Match{matchWithAngle("h", 12, -1.0)})
		assert.Equal(t, []float64{1.0}, s.History(iface.MatchKey{Identity: "h", Landmark: 8}))
		assert.InDelta(t, 1.0, feed(s, "h", 8, 1.0), 1e-12)
	})

	t.Run("no orientation passes through", func(t *testing.T) {
		in := []iface.Match{{Identity: "x", Landmark: 4, Score: 0.5}}
		out := s.Smooth(in)
		assert.Nil(t, out[0].Orientation)
		assert.Equal(t, 2, s.Len())
	})

	t.Run("preview does not commit", func(t *testing.T) {
		key := iface.MatchKey{Identity: "h", Landmark: 8}
		before := s.History(key)
		out := s.Preview([]iface.Match{matchWithAngle("h", 8, 2.0)})
		assert.NotEqual(t, 2.0, out[0].Orientation.Angle)
		assert.Equal(t, before, s.History(key))
	})

	t.Run("input untouched", func(t *testing.T) {
		in := []iface.Match{matchWithAngle("h", 8, 0.5)}
		s.Smooth(in)
		assert.Equal(t, 0.5, in[0].Orientation.Angle)
	})

	t.Run("reset", func(t *testing.T) {
		s.Reset()
		assert.Equal(t, 0, s.Len())
		assert.InDelta(t, -0.7, feed(s, "h", 8, -0.7), 1e-12)
	})
}
