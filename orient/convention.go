package orient

import (
	"math"

	iface "SegTrackServer/interface"

	"gonum.org/v1/gonum/spatial/r3"
)

// Image space is x right, y down, z into the screen. The renderer is x right,
// y up, z toward the viewer. Every sign flip between the two lives here.

// DisplayAngle is the in-plane rotation of a length axis as the renderer
// expects it: 0 when the axis points up on screen, counter-clockwise
// positive, in (-pi, pi].
func DisplayAngle(z r3.Vec) float64 {
	return math.Atan2(-z.X, -z.Y)
}

// ToRenderer rotates an image-space basis by pi about the x axis, which
// flips y and z and keeps the basis right-handed.
func ToRenderer(b iface.Basis) iface.Basis {
	flip := func(v r3.Vec) r3.Vec {
		return r3.Vec{X: v.X, Y: -v.Y, Z: -v.Z}
	}
	return iface.Basis{X: flip(b.X), Y: flip(b.Y), Z: flip(b.Z)}
}
