package engine

import "github.com/paulmach/orb"

// cell edges: 0 top, 1 right, 2 bottom, 3 left
var segmentTable = [16][][2]int{
	0:  nil,
	1:  {{3, 2}},
	2:  {{2, 1}},
	3:  {{3, 1}},
	4:  {{0, 1}},
	5:  {{3, 0}, {2, 1}},
	6:  {{0, 2}},
	7:  {{3, 0}},
	8:  {{3, 0}},
	9:  {{0, 2}},
	10: {{3, 2}, {0, 1}},
	11: {{0, 1}},
	12: {{3, 1}},
	13: {{2, 1}},
	14: {{3, 2}},
	15: nil,
}

// MarchingSquares scans every 2x2 block of a row-major h*w field and returns
// the interpolated iso-line crossing points in grid coordinates.
func MarchingSquares(field []float64, h, w int, threshold float64) []orb.Point {
	if h < 2 || w < 2 || len(field) < h*w {
		return nil
	}
	pts := make([]orb.Point, 0, 4*(h+w))
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			tl := field[y*w+x]
			tr := field[y*w+x+1]
			br := field[(y+1)*w+x+1]
			bl := field[(y+1)*w+x]
			c := 0
			if tl > threshold {
				c |= 8
			}
			if tr > threshold {
				c |= 4
			}
			if br > threshold {
				c |= 2
			}
			if bl > threshold {
				c |= 1
			}
			for _, seg := range segmentTable[c] {
				for _, e := range seg {
					pts = append(pts, edgePoint(e, float64(x), float64(y), tl, tr, br, bl, threshold))
				}
			}
		}
	}
	return pts
}

func edgePoint(edge int, x, y, tl, tr, br, bl, threshold float64) orb.Point {
	switch edge {
	case 0:
		return orb.Point{x + lerp(tl, tr, threshold), y}
	case 1:
		return orb.Point{x + 1, y + lerp(tr, br, threshold)}
	case 2:
		return orb.Point{x + lerp(bl, br, threshold), y + 1}
	default:
		return orb.Point{x, y + lerp(tl, bl, threshold)}
	}
}

// lerp is the fraction along a->b where the field crosses threshold.
func lerp(a, b, threshold float64) float64 {
	d := b - a
	if d == 0 {
		return 0.5
	}
	t := (threshold - a) / d
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
