package engine

import (
	"math/rand"
	"testing"

	iface "SegTrackServer/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoU(t *testing.T) {
	a := iface.BBox{X: 0, Y: 0, W: 20, H: 30}
	assert.InDelta(t, 1.0, IoU(a, a), 1e-12)
	assert.InDelta(t, 504.0/696.0, IoU(a, iface.BBox{X: 2, Y: 2, W: 20, H: 30}), 1e-12)
	assert.Equal(t, 0.0, IoU(a, iface.BBox{X: 50, Y: 50, W: 10, H: 10}))
	assert.Equal(t, 0.0, IoU(a, iface.BBox{X: 0, Y: 0, W: 0, H: 30}))
}

func TestNMS(t *testing.T) {
	t.Run("overlapping pair", func(t *testing.T) {
		out := NMS([]iface.RawDetection{
			{Score: 0.8, Box: iface.BBox{X: 2, Y: 2, W: 20, H: 30}},
			{Score: 0.9, Box: iface.BBox{X: 0, Y: 0, W: 20, H: 30}},
		}, 0.45)
		require.Len(t, out, 1)
		assert.Equal(t, float32(0.9), out[0].Score)
		assert.Equal(t, iface.BBox{X: 0, Y: 0, W: 20, H: 30}, out[0].Box)
	})

	t.Run("zero area never suppresses", func(t *testing.T) {
		out := NMS([]iface.RawDetection{
			{Score: 0.9, Box: iface.BBox{X: 0, Y: 0, W: 0, H: 0}},
			{Score: 0.8, Box: iface.BBox{X: 0, Y: 0, W: 0, H: 0}},
		}, 0.1)
		assert.Len(t, out, 2)
	})

	t.Run("pairwise iou bound", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		cands := make([]iface.RawDetection, 200)
		for i := range cands {
			cands[i] = iface.RawDetection{
				Score: rng.Float32(),
				Box: iface.BBox{
					X: rng.Float64() * 200,
					Y: rng.Float64() * 200,
					W: 10 + rng.Float64()*60,
					H: 10 + rng.Float64()*60,
				},
			}
		}
		const thr = 0.3
		out := NMS(cands, thr)
		require.NotEmpty(t, out)
		for i := range out {
			if i > 0 {
				assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
			}
			for j := i + 1; j < len(out); j++ {
				assert.LessOrEqual(t, IoU(out[i].Box, out[j].Box), thr)
			}
		}
	})
}
