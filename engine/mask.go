package engine

import (
	iface "SegTrackServer/interface"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// Prototypes holds the shared mask prototypes of one frame as an
// [M, H*W] matrix.
type Prototypes struct {
	Channels int
	Height   int
	Width    int
	m        *mat.Dense
}

// NewPrototypes returns nil when the tensor is empty or malformed.
func NewPrototypes(t iface.ProtoTensor) *Prototypes {
	n := t.Height * t.Width
	if t.Channels <= 0 || t.Height <= 0 || t.Width <= 0 || len(t.Data) < t.Channels*n {
		return nil
	}
	data := make([]float64, t.Channels*n)
	for i := range data {
		data[i] = float64(t.Data[i])
	}
	return &Prototypes{
		Channels: t.Channels,
		Height:   t.Height,
		Width:    t.Width,
		m:        mat.NewDense(t.Channels, n, data),
	}
}

// Reconstructor builds detection silhouettes from mask coefficients.
type Reconstructor struct {
	Tolerance   float64
	CropToBox   bool
	InputWidth  int
	InputHeight int
}

func NewReconstructor(tolerance float64, cropToBox bool, inputWidth, inputHeight int) *Reconstructor {
	if tolerance <= 0 {
		tolerance = DefaultSimplifyTolerance
	}
	if inputWidth <= 0 {
		inputWidth = DefaultInputSize
	}
	if inputHeight <= 0 {
		inputHeight = DefaultInputSize
	}
	return &Reconstructor{
		Tolerance:   tolerance,
		CropToBox:   cropToBox,
		InputWidth:  inputWidth,
		InputHeight: inputHeight,
	}
}

// Mask returns sigmoid(sum_m coeff_m * proto[m]) as a row-major H*W field,
// or nil when coefficients and prototypes do not line up.
func (r *Reconstructor) Mask(raw iface.RawDetection, protos *Prototypes) []float64 {
	if protos == nil || len(raw.Coefficients) != protos.Channels {
		return nil
	}
	coeff := make([]float64, len(raw.Coefficients))
	for i, c := range raw.Coefficients {
		coeff[i] = float64(c)
	}
	var out mat.VecDense
	out.MulVec(protos.m.T(), mat.NewVecDense(len(coeff), coeff))
	field := make([]float64, protos.Height*protos.Width)
	for i := range field {
		field[i] = sigmoid(out.AtVec(i))
	}
	return field
}

// Reconstruct never fails: whenever a mask polygon cannot be produced the
// detection carries the rounded-rectangle fallback.
func (r *Reconstructor) Reconstruct(raw iface.RawDetection, protos *Prototypes, frameW, frameH int) iface.Detection {
	det := iface.Detection{Score: raw.Score, Box: raw.Box}
	field := r.Mask(raw, protos)
	if field == nil {
		return withFallback(det)
	}
	h, w := protos.Height, protos.Width
	if r.CropToBox {
		r.crop(field, raw, h, w)
	}
	pts := MarchingSquares(field, h, w, MaskThreshold)
	if len(pts) == 0 {
		return withFallback(det)
	}
	for i, p := range pts {
		pts[i] = r.toSource(p, raw.Box, h, w, frameW, frameH)
	}
	ring := SimplifyRadial(OrderByAngle(pts), r.Tolerance)
	if len(ring) < 3 {
		return withFallback(det)
	}
	det.Polygon = ring
	return det
}

func (r *Reconstructor) toSource(p orb.Point, box iface.BBox, h, w, frameW, frameH int) orb.Point {
	if r.CropToBox {
		return orb.Point{p[0] * float64(frameW) / float64(w), p[1] * float64(frameH) / float64(h)}
	}
	return orb.Point{box.X + p[0]*box.W/float64(w), box.Y + p[1]*box.H/float64(h)}
}

// crop zeroes every cell outside the detection's model-space box.
func (r *Reconstructor) crop(field []float64, raw iface.RawDetection, h, w int) {
	cx, cy, bw, bh := raw.ModelBox[0], raw.ModelBox[1], raw.ModelBox[2], raw.ModelBox[3]
	sx := float64(w) / float64(r.InputWidth)
	sy := float64(h) / float64(r.InputHeight)
	x0, x1 := float64(cx-bw/2)*sx, float64(cx+bw/2)*sx
	y0, y1 := float64(cy-bh/2)*sy, float64(cy+bh/2)*sy
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx, fy := float64(x), float64(y)
			if fx < x0 || fx > x1 || fy < y0 || fy > y1 {
				field[y*w+x] = 0
			}
		}
	}
}

func withFallback(det iface.Detection) iface.Detection {
	det.Polygon = RoundedRect(det.Box)
	det.Fallback = true
	return det
}
