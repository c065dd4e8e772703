package orient

import (
	"math"
	"math/rand"
	"testing"

	iface "SegTrackServer/interface"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// flatHand is a palm lying in the image plane with the index finger pointing
// up on screen.
func flatHand(handedness string) iface.LandmarkSet {
	pts := make([]r3.Vec, iface.NumLandmarks)
	for i := range pts {
		pts[i] = r3.Vec{X: 0.5, Y: 0.5}
	}
	pts[iface.Wrist] = r3.Vec{X: 0.5, Y: 0.8}
	pts[iface.IndexMCP] = r3.Vec{X: 0.45, Y: 0.6}
	pts[iface.PinkyMCP] = r3.Vec{X: 0.58, Y: 0.62}
	pts[iface.IndexDIP] = r3.Vec{X: 0.45, Y: 0.35}
	pts[iface.IndexTip] = r3.Vec{X: 0.45, Y: 0.3}
	pts[iface.MiddleDIP] = r3.Vec{X: 0.52, Y: 0.34}
	pts[iface.MiddleTip] = r3.Vec{X: 0.47, Y: 0.34}
	return iface.LandmarkSet{Identity: "h", Handedness: handedness, Points: pts}
}

func assertVec(t *testing.T, want, got r3.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
	assert.InDelta(t, want.Z, got.Z, 1e-9)
}

func assertOrthonormal(t *testing.T, b iface.Basis) {
	t.Helper()
	for _, v := range []r3.Vec{b.X, b.Y, b.Z} {
		assert.InDelta(t, 1, r3.Norm(v), 1e-5)
	}
	assert.InDelta(t, 0, r3.Dot(b.X, b.Y), 1e-5)
	assert.InDelta(t, 0, r3.Dot(b.Y, b.Z), 1e-5)
	assert.InDelta(t, 0, r3.Dot(b.X, b.Z), 1e-5)
	assert.InDelta(t, 1, r3.Dot(b.X, r3.Cross(b.Y, b.Z)), 1e-5)
}

func TestEstimator_Basis(t *testing.T) {
	e := New(iface.HandTopology())

	t.Run("right hand", func(t *testing.T) {
		b, ok := e.Basis(flatHand("Right"), iface.IndexTip, 1000, 1000)
		require.True(t, ok)
		assertVec(t, r3.Vec{X: 1}, b.X)
		assertVec(t, r3.Vec{Z: 1}, b.Y)
		assertVec(t, r3.Vec{Y: -1}, b.Z)
		assertOrthonormal(t, b)
	})

	t.Run("mirrored hand flips the normal", func(t *testing.T) {
		b, ok := e.Basis(flatHand("Left"), iface.IndexTip, 1000, 1000)
		require.True(t, ok)
		assertVec(t, r3.Vec{X: -1}, b.X)
		assertVec(t, r3.Vec{Z: -1}, b.Y)
		assertVec(t, r3.Vec{Y: -1}, b.Z)
		assertOrthonormal(t, b)
	})

	t.Run("gram-schmidt corrects a tilted length axis", func(t *testing.T) {
		set := flatHand("Right")
		set.Points[iface.IndexTip].Z = -0.02
		b, ok := e.Basis(set, iface.IndexTip, 1000, 1000)
		require.True(t, ok)
		assertOrthonormal(t, b)
		assert.InDelta(t, 0, b.Z.Z, 1e-9)
	})

	t.Run("random hands stay orthonormal", func(t *testing.T) {
		rng := rand.New(rand.NewSource(5))
		for i := 0; i < 50; i++ {
			pts := make([]r3.Vec, iface.NumLandmarks)
			for j := range pts {
				pts[j] = r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()*0.2 - 0.1}
			}
			set := iface.LandmarkSet{Handedness: []string{"Left", "Right"}[i%2], Points: pts}
			for _, lm := range e.Topology.PointsOfInterest {
				if b, ok := e.Basis(set, lm, 640, 480); ok {
					assertOrthonormal(t, b)
				}
			}
		}
	})

	t.Run("degenerate", func(t *testing.T) {
		set := flatHand("Right")
		for i := range set.Points {
			set.Points[i] = r3.Vec{X: 0.3, Y: 0.3}
		}
		_, ok := e.Basis(set, iface.IndexTip, 1000, 1000)
		assert.False(t, ok)

		collinear := flatHand("Right")
		collinear.Points[iface.PinkyMCP] = r3.Vec{X: 0.4, Y: 0.4}
		_, ok = e.Basis(collinear, iface.IndexTip, 1000, 1000)
		assert.False(t, ok)

		_, ok = e.Basis(flatHand("Right"), iface.Wrist, 1000, 1000)
		assert.False(t, ok)

		_, ok = e.Basis(iface.LandmarkSet{Points: make([]r3.Vec, 3)}, iface.IndexTip, 1000, 1000)
		assert.False(t, ok)
	})
}

func TestEstimator_Estimate(t *testing.T) {
	e := New(iface.HandTopology())
	centroid := orb.Point{450, 300}
	rect := orb.Ring{{440, 280}, {460, 280}, {460, 320}, {440, 320}}
	m := iface.Match{Landmark: iface.IndexTip, Centroid: centroid}

	o := e.Estimate(m, flatHand("Right"), rect, 1000, 1000)
	require.NotNil(t, o)
	assert.InDelta(t, 20, o.Width, 1e-9)
	assert.InDelta(t, 40, o.Height, 1e-9)
	assert.InDelta(t, 0, o.Angle, 1e-9)
	assert.Equal(t, o.Angle, o.RawAngle)
	assertVec(t, r3.Vec{Y: 1}, o.Renderer.Z)

	m.Landmark = iface.MiddleTip
	o = e.Estimate(m, flatHand("Right"), rect, 1000, 1000)
	require.NotNil(t, o)
	assert.InDelta(t, math.Pi/2, o.Angle, 1e-9)
	assert.InDelta(t, 40, o.Width, 1e-9)
	assert.InDelta(t, 20, o.Height, 1e-9)

	set := flatHand("Right")
	set.Points[iface.IndexTip] = set.Points[iface.IndexDIP]
	assert.Nil(t, e.Estimate(iface.Match{Landmark: iface.IndexTip}, set, rect, 1000, 1000))
}
