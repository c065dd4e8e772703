package engine

import (
	"math"
	"sort"

	iface "SegTrackServer/interface"
)

// IoU of two top-left boxes. Zero when either box has no area.
func IoU(a, b iface.BBox) float64 {
	areaA, areaB := a.Area(), b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}
	iw := math.Min(a.X+a.W, b.X+b.W) - math.Max(a.X, b.X)
	ih := math.Min(a.Y+a.H, b.Y+b.H) - math.Max(a.Y, b.Y)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	return inter / (areaA + areaB - inter)
}

// NMS sorts candidates by descending score and greedily suppresses overlaps
// above iouThreshold.
func NMS(cands []iface.RawDetection, iouThreshold float64) []iface.RawDetection {
	sorted := make([]iface.RawDetection, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	keep := nmsIndices(sorted, iouThreshold)
	out := make([]iface.RawDetection, 0, len(keep))
	for _, k := range keep {
		out = append(out, sorted[k])
	}
	return out
}

// nmsIndices expects score-sorted input.
func nmsIndices(sorted []iface.RawDetection, iouThreshold float64) []int {
	suppressed := make([]bool, len(sorted))
	keep := make([]int, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		keep = append(keep, i)
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if IoU(sorted[i].Box, sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return keep
}
