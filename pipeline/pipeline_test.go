package pipeline

import (
	"testing"

	"SegTrackServer/config"
	iface "SegTrackServer/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func testConfig() config.Pipeline {
	cfg := config.DefaultPipeline()
	cfg.InputWidth, cfg.InputHeight = 100, 100
	cfg.SearchRadius = 1
	return cfg
}

// twoBoxes holds (0,0,20,30) at 0.9 and (5,5,20,30) at 0.8 in center form,
// one mask coefficient each.
func twoBoxes() iface.Tensor {
	rows := [][]float32{
		{10, 15, 20, 30, 0.9, 1},
		{15, 20, 20, 30, 0.8, 1},
	}
	f, n := len(rows[0]), len(rows)
	data := make([]float32, f*n)
	for i, r := range rows {
		for j, v := range r {
			data[j*n+i] = v
		}
	}
	return iface.Tensor{Data: data, Features: f, Candidates: n}
}

// pointingUp is a right hand whose index tip sits at pixel (10, 15) of a
// 100x100 frame. The other tips are out of reach.
func pointingUp() iface.LandmarkSet {
	pts := make([]r3.Vec, iface.NumLandmarks)
	for i := range pts {
		pts[i] = r3.Vec{X: 0.95, Y: 0.95}
	}
	pts[iface.Wrist] = r3.Vec{X: 0.1, Y: 0.45}
	pts[iface.IndexMCP] = r3.Vec{X: 0.05, Y: 0.3}
	pts[iface.PinkyMCP] = r3.Vec{X: 0.18, Y: 0.3}
	pts[iface.IndexDIP] = r3.Vec{X: 0.1, Y: 0.2}
	pts[iface.IndexTip] = r3.Vec{X: 0.1, Y: 0.15}
	return iface.LandmarkSet{Identity: "hand-0", Handedness: "Right", Confidence: 0.95, Points: pts}
}

func frame() iface.Frame {
	return iface.Frame{
		Width:     100,
		Height:    100,
		Output:    twoBoxes(),
		Landmarks: []iface.LandmarkSet{pointingUp()},
	}
}

func TestPipeline_Process(t *testing.T) {
	p, err := New(testConfig(), nil)
	require.NoError(t, err)

	res := p.Process(frame())
	require.Len(t, res.Detections, 1)
	det := res.Detections[0]
	assert.Equal(t, iface.BBox{X: 0, Y: 0, W: 20, H: 30}, det.Box)
	assert.True(t, det.Fallback)

	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, iface.IndexTip, m.Landmark)
	assert.Equal(t, "hand-0", m.Identity)
	assert.Equal(t, "Right", m.Handedness)
	assert.InDelta(t, 10, m.Centroid[0], 1e-9)
	assert.InDelta(t, 15, m.Centroid[1], 1e-9)
	assert.InDelta(t, 0.7+0.3*0.9, m.Score, 1e-6)

	require.NotNil(t, m.Orientation)
	assert.InDelta(t, 0, m.Orientation.Angle, 1e-9)
	assert.InDelta(t, 0, m.Orientation.RawAngle, 1e-9)
	assert.InDelta(t, 20, m.Orientation.Width, 1e-6)
	assert.InDelta(t, 30, m.Orientation.Height, 1e-6)
	assert.Equal(t, 1, p.TrackedKeys())
}

func TestPipeline_PreviewAndReset(t *testing.T) {
	p, err := New(testConfig(), nil)
	require.NoError(t, err)

	res := p.Preview(frame())
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 0, p.TrackedKeys())

	p.Process(frame())
	p.Process(frame())
	assert.Equal(t, 1, p.TrackedKeys())

	p.Reset()
	assert.Equal(t, 0, p.TrackedKeys())
}

func TestPipeline_EmptyInputs(t *testing.T) {
	p, err := New(testConfig(), nil)
	require.NoError(t, err)

	t.Run("no landmarks", func(t *testing.T) {
		f := frame()
		f.Landmarks = nil
		res := p.Process(f)
		assert.Len(t, res.Detections, 1)
		assert.NotNil(t, res.Matches)
		assert.Empty(t, res.Matches)
	})

	t.Run("no candidates", func(t *testing.T) {
		f := frame()
		f.Output = iface.Tensor{Features: 6}
		res := p.Process(f)
		assert.Empty(t, res.Detections)
		assert.Empty(t, res.Matches)
	})
}

func TestPipeline_MaskPolygon(t *testing.T) {
	p, err := New(testConfig(), nil)
	require.NoError(t, err)

	const g = 20
	data := make([]float32, g*g)
	for y := 0; y < g; y++ {
		for x := 0; x < g; x++ {
			data[y*g+x] = -10
			if x >= 5 && x < 15 && y >= 5 && y < 15 {
				data[y*g+x] = 10
			}
		}
	}
	f := frame()
	f.Prototypes = iface.ProtoTensor{Data: data, Channels: 1, Height: g, Width: g}

	res := p.Process(f)
	require.Len(t, res.Detections, 1)
	det := res.Detections[0]
	assert.False(t, det.Fallback)
	assert.GreaterOrEqual(t, len(det.Polygon), 3)
	for _, pt := range det.Polygon {
		assert.True(t, det.Box.Bound().Contains(pt))
	}
}

func TestNew_UnknownAssignment(t *testing.T) {
	cfg := testConfig()
	cfg.Assignment = "auction"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}
