package engine

import (
	"sort"

	iface "SegTrackServer/interface"
)

// Decoder turns a raw [4+1+M, D] segmentation head output into scored,
// deduplicated candidates.
type Decoder struct {
	Conf        float32
	Iou         float32
	InputWidth  int
	InputHeight int
}

func NewDecoder(conf, iou float32, inputWidth, inputHeight int) *Decoder {
	if inputWidth <= 0 {
		inputWidth = DefaultInputSize
	}
	if inputHeight <= 0 {
		inputHeight = DefaultInputSize
	}
	return &Decoder{Conf: conf, Iou: iou, InputWidth: inputWidth, InputHeight: inputHeight}
}

// Decode returns kept candidates, highest score first. Malformed tensors
// yield an empty slice.
func (d *Decoder) Decode(t iface.Tensor, frameW, frameH int) []iface.RawDetection {
	f, n := t.Features, t.Candidates
	if n <= 0 || f <= boxFeatures || len(t.Data) < f*n {
		return []iface.RawDetection{}
	}
	at := func(feature, i int) float32 {
		return t.Data[feature*n+i]
	}
	sx := float64(frameW) / float64(d.InputWidth)
	sy := float64(frameH) / float64(d.InputHeight)
	numCoeff := f - boxFeatures - 1

	cands := make([]iface.RawDetection, 0, 64)
	idx := make([]int, 0, 64)
	for i := 0; i < n; i++ {
		score := at(boxFeatures, i)
		if !(score > d.Conf) {
			continue
		}
		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		box := iface.BBox{
			X: (float64(cx) - float64(w)/2) * sx,
			Y: (float64(cy) - float64(h)/2) * sy,
			W: float64(w) * sx,
			H: float64(h) * sy,
		}
		if box.X < 0 {
			box.X = 0
		}
		if box.Y < 0 {
			box.Y = 0
		}
		cands = append(cands, iface.RawDetection{
			Score:    score,
			ModelBox: [4]float32{cx, cy, w, h},
			Box:      box,
		})
		idx = append(idx, i)
	}

	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return cands[order[a]].Score > cands[order[b]].Score
	})
	sorted := make([]iface.RawDetection, len(cands))
	sortedIdx := make([]int, len(cands))
	for i, o := range order {
		sorted[i] = cands[o]
		sortedIdx[i] = idx[o]
	}

	keep := nmsIndices(sorted, float64(d.Iou))
	out := make([]iface.RawDetection, 0, len(keep))
	for _, k := range keep {
		det := sorted[k]
		if numCoeff > 0 {
			det.Coefficients = make([]float32, numCoeff)
			for m := 0; m < numCoeff; m++ {
				det.Coefficients[m] = at(boxFeatures+1+m, sortedIdx[k])
			}
		}
		out = append(out, det)
	}
	return out
}
