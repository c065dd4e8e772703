package engine

import "math"

const (
	DefaultInputSize         = 640
	DefaultConf              = 0.25
	DefaultIou               = 0.45
	DefaultSimplifyTolerance = 2.0
	MaskThreshold            = 0.5
	boxFeatures              = 4
)

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
