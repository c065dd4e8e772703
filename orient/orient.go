package orient

import (
	"math"

	iface "SegTrackServer/interface"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r3"
)

// Estimator builds a per-match orthonormal basis from the full landmark set
// of the matched structure.
type Estimator struct {
	Topology iface.Topology
}

func New(topo iface.Topology) *Estimator {
	return &Estimator{Topology: topo}
}

// Basis returns the width (X), normal (Y) and length (Z) axes for a point of
// interest, in pixel-scaled image space. ok is false when the source points
// coincide or are collinear.
func (e *Estimator) Basis(set iface.LandmarkSet, landmark, frameW, frameH int) (iface.Basis, bool) {
	t := e.Topology
	proximal, found := t.ProximalOf(landmark)
	if !found {
		return iface.Basis{}, false
	}
	for _, i := range []int{landmark, proximal, t.Base, t.SpreadA, t.SpreadB} {
		if i < 0 || i >= len(set.Points) {
			return iface.Basis{}, false
		}
	}
	lift := func(i int) r3.Vec {
		p := set.Points[i]
		return r3.Vec{X: p.X * float64(frameW), Y: p.Y * float64(frameH), Z: p.Z * float64(frameW)}
	}

	length := r3.Unit(r3.Sub(lift(landmark), lift(proximal)))

	// The normal comes from the base and the two spread points, never from
	// joints near the tip: those go collinear when the finger is straight.
	base := lift(t.Base)
	normal := r3.Unit(r3.Cross(r3.Sub(lift(t.SpreadA), base), r3.Sub(lift(t.SpreadB), base)))
	if t.MirroredLabel != "" && set.Handedness == t.MirroredLabel {
		normal = r3.Scale(-1, normal)
	}

	width := r3.Unit(r3.Cross(normal, length))
	length = r3.Unit(r3.Cross(width, normal))

	b := iface.Basis{X: width, Y: normal, Z: length}
	if !finiteVec(b.X) || !finiteVec(b.Y) || !finiteVec(b.Z) {
		return iface.Basis{}, false
	}
	return b, true
}

// Estimate fills in orientation and dimensions for a match. It returns nil
// for degenerate geometry; the match itself stays valid.
func (e *Estimator) Estimate(m iface.Match, set iface.LandmarkSet, polygon orb.Ring, frameW, frameH int) *iface.Orientation {
	b, ok := e.Basis(set, m.Landmark, frameW, frameH)
	if !ok {
		return nil
	}
	w, h := Dimensions(polygon, m.Centroid, b)
	angle := DisplayAngle(b.Z)
	return &iface.Orientation{
		Basis:    b,
		Renderer: ToRenderer(b),
		Width:    w,
		Height:   h,
		Angle:    angle,
		RawAngle: angle,
	}
}

// Dimensions projects polygon vertices, relative to the centroid, onto the
// width and length axes and returns the extents.
func Dimensions(polygon orb.Ring, centroid orb.Point, b iface.Basis) (width, height float64) {
	if len(polygon) == 0 {
		return 0, 0
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, p := range polygon {
		v := r3.Vec{X: p[0] - centroid[0], Y: p[1] - centroid[1]}
		px, pz := r3.Dot(v, b.X), r3.Dot(v, b.Z)
		minX, maxX = math.Min(minX, px), math.Max(maxX, px)
		minZ, maxZ = math.Min(minZ, pz), math.Max(maxZ, pz)
	}
	return maxX - minX, maxZ - minZ
}

func finiteVec(v r3.Vec) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return r3.Norm(v) > 0
}
