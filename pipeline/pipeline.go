package pipeline

import (
	"time"

	"SegTrackServer/config"
	"SegTrackServer/engine"
	iface "SegTrackServer/interface"
	"SegTrackServer/matcher"
	"SegTrackServer/orient"
	"SegTrackServer/smoother"

	"go.uber.org/zap"
)

// Pipeline runs one frame through decode, reconstruct, match, orient and
// smooth. It holds the smoothing state of a single stream and must not be
// shared between concurrent callers.
type Pipeline struct {
	decoder       *engine.Decoder
	reconstructor *engine.Reconstructor
	matcher       *matcher.Matcher
	estimator     *orient.Estimator
	smoother      *smoother.Smoother
	log           *zap.Logger
}

var _ iface.Backend = (*Pipeline)(nil)

func New(cfg config.Pipeline, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	assigner, err := matcher.NewAssigner(cfg.Assignment)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		decoder:       engine.NewDecoder(cfg.Conf, cfg.Iou, cfg.InputWidth, cfg.InputHeight),
		reconstructor: engine.NewReconstructor(cfg.SimplifyTolerance, cfg.CropToBox, cfg.InputWidth, cfg.InputHeight),
		matcher:       matcher.New(cfg.SearchRadius, cfg.DistWeight, cfg.ConfWeight, cfg.Topology, assigner),
		estimator:     orient.New(cfg.Topology),
		smoother:      smoother.New(cfg.SmoothingWindow),
		log:           log,
	}, nil
}

// Process runs a full cycle and folds its angles into the smoothing history.
func (p *Pipeline) Process(frame iface.Frame) iface.FrameResult {
	return p.run(frame, true)
}

// Preview runs a full cycle without updating the smoothing history.
func (p *Pipeline) Preview(frame iface.Frame) iface.FrameResult {
	return p.run(frame, false)
}

// Reset drops all smoothing history.
func (p *Pipeline) Reset() {
	p.smoother.Reset()
	p.log.Debug("smoothing state reset")
}

// Detect runs the decode and reconstruct stages only.
func (p *Pipeline) Detect(frame iface.Frame) []iface.Detection {
	raws := p.decoder.Decode(frame.Output, frame.Width, frame.Height)
	protos := engine.NewPrototypes(frame.Prototypes)
	dets := make([]iface.Detection, 0, len(raws))
	for _, raw := range raws {
		dets = append(dets, p.reconstructor.Reconstruct(raw, protos, frame.Width, frame.Height))
	}
	return dets
}

func (p *Pipeline) run(frame iface.Frame, commit bool) iface.FrameResult {
	start := time.Now()
	dets := p.Detect(frame)
	matches := p.matcher.Match(dets, frame.Landmarks, frame.Width, frame.Height)
	for i := range matches {
		m := &matches[i]
		m.Orientation = p.estimator.Estimate(*m, frame.Landmarks[m.SetIndex],
			dets[m.DetectionIndex].Polygon, frame.Width, frame.Height)
	}
	if commit {
		matches = p.smoother.Smooth(matches)
	} else {
		matches = p.smoother.Preview(matches)
	}
	p.log.Debug("frame processed",
		zap.Int("detections", len(dets)),
		zap.Int("landmarkSets", len(frame.Landmarks)),
		zap.Int("matches", len(matches)),
		zap.Bool("committed", commit),
		zap.Duration("elapsed", time.Since(start)))
	return iface.FrameResult{Detections: dets, Matches: matches}
}

// TrackedKeys is the number of keys with smoothing history.
func (p *Pipeline) TrackedKeys() int {
	return p.smoother.Len()
}
