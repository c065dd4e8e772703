package engine

import (
	"math"
	"sort"

	iface "SegTrackServer/interface"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	cornerRadiusRatio = 0.2
	cornerSegments    = 4
)

// OrderByAngle sorts points by angle around their vertex centroid. The
// resulting ring is open: the first vertex is not repeated at the end.
func OrderByAngle(pts []orb.Point) orb.Ring {
	if len(pts) == 0 {
		return orb.Ring{}
	}
	var cx, cy float64
	for _, p := range pts {
		cx += p[0]
		cy += p[1]
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	type polar struct {
		p orb.Point
		a float64
	}
	ps := make([]polar, len(pts))
	for i, p := range pts {
		ps[i] = polar{p: p, a: math.Atan2(p[1]-cy, p[0]-cx)}
	}
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].a < ps[j].a
	})
	ring := make(orb.Ring, len(ps))
	for i := range ps {
		ring[i] = ps[i].p
	}
	return ring
}

// SimplifyRadial walks the ring in order and drops every point closer than
// tolerance to the last kept one.
func SimplifyRadial(ring orb.Ring, tolerance float64) orb.Ring {
	if len(ring) == 0 {
		return orb.Ring{}
	}
	out := make(orb.Ring, 0, len(ring))
	out = append(out, ring[0])
	for _, p := range ring[1:] {
		if planar.Distance(out[len(out)-1], p) < tolerance {
			continue
		}
		out = append(out, p)
	}
	return out
}

// RoundedRect is the parametric fallback polygon for a box.
func RoundedRect(box iface.BBox) orb.Ring {
	w, h := math.Max(box.W, 0), math.Max(box.H, 0)
	r := math.Min(w, h) * cornerRadiusRatio
	corners := [4]struct {
		cx, cy, start float64
	}{
		{box.X + w - r, box.Y + r, -math.Pi / 2},
		{box.X + w - r, box.Y + h - r, 0},
		{box.X + r, box.Y + h - r, math.Pi / 2},
		{box.X + r, box.Y + r, math.Pi},
	}
	ring := make(orb.Ring, 0, 4*(cornerSegments+1))
	for _, c := range corners {
		for s := 0; s <= cornerSegments; s++ {
			a := c.start + float64(s)/cornerSegments*math.Pi/2
			ring = append(ring, orb.Point{c.cx + r*math.Cos(a), c.cy + r*math.Sin(a)})
		}
	}
	return ring
}
