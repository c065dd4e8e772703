package iface

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r3"
)

// BBox is an axis-aligned box in source-frame pixels, top-left form.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (b BBox) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

func (b BBox) Center() orb.Point {
	return orb.Point{b.X + b.W/2, b.Y + b.H/2}
}

func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.X, b.Y}, Max: orb.Point{b.X + b.W, b.Y + b.H}}
}

// RawDetection is one decoded candidate that survived thresholding and NMS.
// ModelBox keeps the center-form box in model-input pixels (cx, cy, w, h).
type RawDetection struct {
	Score        float32
	ModelBox     [4]float32
	Box          BBox
	Coefficients []float32
}

// Detection is a reconstructed object silhouette.
type Detection struct {
	Score    float32  `json:"score"`
	Box      BBox     `json:"box"`
	Polygon  orb.Ring `json:"polygon"`
	Fallback bool     `json:"fallback"`
}

// Centroid is the polygon vertex mean, or the box center without a polygon.
func (d Detection) Centroid() orb.Point {
	if len(d.Polygon) == 0 {
		return d.Box.Center()
	}
	var sx, sy float64
	for _, p := range d.Polygon {
		sx += p[0]
		sy += p[1]
	}
	n := float64(len(d.Polygon))
	return orb.Point{sx / n, sy / n}
}

// LandmarkSet is one tracked structure instance for a single cycle.
// Points are unit-square normalized on x/y with relative depth on z.
type LandmarkSet struct {
	Identity   string   `json:"identity"`
	Handedness string   `json:"handedness"`
	Confidence float64  `json:"confidence"`
	Points     []r3.Vec `json:"points"`
}

// Key returns the identity used for matching and smoothing.
func (l LandmarkSet) Key() string {
	if l.Identity != "" {
		return l.Identity
	}
	return l.Handedness
}

type MatchKey struct {
	Identity string `json:"identity"`
	Landmark int    `json:"landmark"`
}

type Basis struct {
	X r3.Vec `json:"x"`
	Y r3.Vec `json:"y"`
	Z r3.Vec `json:"z"`
}

// Orientation keeps the basis in image space (y down, z into the screen)
// and its renderer-space counterpart.
type Orientation struct {
	Basis    Basis   `json:"basis"`
	Renderer Basis   `json:"renderer"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Angle    float64 `json:"angle"`
	RawAngle float64 `json:"rawAngle"`
}

// Match pairs one detection with one point of interest. Orientation is nil
// when the basis could not be built.
type Match struct {
	DetectionIndex int          `json:"detectionIndex"`
	SetIndex       int          `json:"setIndex"`
	Landmark       int          `json:"landmark"`
	Identity       string       `json:"identity"`
	Handedness     string       `json:"handedness"`
	Centroid       orb.Point    `json:"centroid"`
	Distance       float64      `json:"distance"`
	Score          float64      `json:"score"`
	Orientation    *Orientation `json:"orientation,omitempty"`
}

func (m Match) Key() MatchKey {
	return MatchKey{Identity: m.Identity, Landmark: m.Landmark}
}

// Tensor is a flat [Features, Candidates] buffer, feature-major.
type Tensor struct {
	Data       []float32 `json:"data"`
	Features   int       `json:"features"`
	Candidates int       `json:"candidates"`
}

// ProtoTensor is a flat [Channels, Height, Width] prototype buffer.
type ProtoTensor struct {
	Data     []float32 `json:"data"`
	Channels int       `json:"channels"`
	Height   int       `json:"height"`
	Width    int       `json:"width"`
}

// Frame bundles the inputs of one pipeline cycle.
type Frame struct {
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Output     Tensor        `json:"output"`
	Prototypes ProtoTensor   `json:"prototypes"`
	Landmarks  []LandmarkSet `json:"landmarks"`
}

var ErrInvalidFrame = errors.New("invalid frame")

// Validate rejects frames whose size cannot map model space to pixels.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	return nil
}

type FrameResult struct {
	Detections []Detection `json:"detections"`
	Matches    []Match     `json:"matches"`
}
