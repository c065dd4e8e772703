package config

import (
	"fmt"
	"os"
	"time"

	"SegTrackServer/engine"
	iface "SegTrackServer/interface"
	"SegTrackServer/matcher"
	"SegTrackServer/smoother"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Pipeline holds every tunable of the detection-to-match pipeline.
type Pipeline struct {
	Conf              float32        `yaml:"conf" json:"conf"`
	Iou               float32        `yaml:"iou" json:"iou"`
	InputWidth        int            `yaml:"inputWidth" json:"inputWidth"`
	InputHeight       int            `yaml:"inputHeight" json:"inputHeight"`
	SimplifyTolerance float64        `yaml:"simplifyTolerance" json:"simplifyTolerance"`
	CropToBox         bool           `yaml:"cropToBox" json:"cropToBox"`
	SearchRadius      float64        `yaml:"searchRadius" json:"searchRadius"`
	DistWeight        float64        `yaml:"distWeight" json:"distWeight"`
	ConfWeight        float64        `yaml:"confWeight" json:"confWeight"`
	SmoothingWindow   int            `yaml:"smoothingWindow" json:"smoothingWindow"`
	Assignment        string         `yaml:"assignment" json:"assignment"`
	Topology          iface.Topology `yaml:"topology" json:"topology"`
}

type Config struct {
	RPCPort       int      `yaml:"RPCPort"`
	HTTPPort      int      `yaml:"HTTPPort"`
	MetricsPort   int      `yaml:"MetricsPort"`
	WorkersNum    int      `yaml:"workersNum"`
	IdleTimeoutMs int      `yaml:"idleTimeoutMs"`
	LogMode       string   `yaml:"logMode"`
	InstanceClass string   `yaml:"instanceClass"`
	UseRegServer  bool     `yaml:"UseRegServer"`
	RegServerPort int      `yaml:"RegServerPort"`
	RegServerHost string   `yaml:"RegServerHost"`
	Pipeline      Pipeline `yaml:"pipeline"`
}

func DefaultPipeline() Pipeline {
	return Pipeline{
		Conf:              engine.DefaultConf,
		Iou:               engine.DefaultIou,
		InputWidth:        engine.DefaultInputSize,
		InputHeight:       engine.DefaultInputSize,
		SimplifyTolerance: engine.DefaultSimplifyTolerance,
		SearchRadius:      matcher.DefaultSearchRadius,
		DistWeight:        matcher.DefaultDistWeight,
		ConfWeight:        matcher.DefaultConfWeight,
		SmoothingWindow:   smoother.DefaultWindow,
		Assignment:        "greedy",
		Topology:          iface.HandTopology(),
	}
}

func Default() Config {
	return Config{
		RPCPort:       50051,
		HTTPPort:      8080,
		MetricsPort:   50053,
		WorkersNum:    1,
		IdleTimeoutMs: 3000,
		LogMode:       "production",
		InstanceClass: "Cpu",
		Pipeline:      DefaultPipeline(),
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	for name, port := range map[string]int{"RPCPort": c.RPCPort, "HTTPPort": c.HTTPPort, "MetricsPort": c.MetricsPort} {
		if port <= 0 || port > 65535 {
			err = multierr.Append(err, fmt.Errorf("%s out of range: %d", name, port))
		}
	}
	if c.IdleTimeoutMs <= 0 {
		err = multierr.Append(err, fmt.Errorf("idleTimeoutMs must be positive, got %d", c.IdleTimeoutMs))
	}
	switch c.LogMode {
	case "production", "development":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown logMode: %s", c.LogMode))
	}
	if c.UseRegServer && c.RegServerHost == "" {
		err = multierr.Append(err, fmt.Errorf("RegServerHost is required when UseRegServer is set"))
	}
	return multierr.Append(err, c.Pipeline.Validate())
}

func (p Pipeline) Validate() error {
	var err error
	if p.Conf < 0 || p.Conf > 1 {
		err = multierr.Append(err, fmt.Errorf("confidence must be between 0.0 and 1.0, got %f", p.Conf))
	}
	if p.Iou < 0 || p.Iou > 1 {
		err = multierr.Append(err, fmt.Errorf("IoU must be between 0.0 and 1.0, got %f", p.Iou))
	}
	if p.InputWidth <= 0 || p.InputHeight <= 0 {
		err = multierr.Append(err, fmt.Errorf("model input size must be positive, got %dx%d", p.InputWidth, p.InputHeight))
	}
	if p.SimplifyTolerance < 0 {
		err = multierr.Append(err, fmt.Errorf("simplifyTolerance must not be negative, got %f", p.SimplifyTolerance))
	}
	if p.SearchRadius <= 0 || p.SearchRadius > 1 {
		err = multierr.Append(err, fmt.Errorf("searchRadius must be in (0, 1], got %f", p.SearchRadius))
	}
	if p.DistWeight < 0 || p.ConfWeight < 0 {
		err = multierr.Append(err, fmt.Errorf("score weights must not be negative"))
	}
	if p.SmoothingWindow < 1 {
		err = multierr.Append(err, fmt.Errorf("smoothingWindow must be at least 1, got %d", p.SmoothingWindow))
	}
	switch p.Assignment {
	case "greedy", "hungarian":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown assignment strategy: %s", p.Assignment))
	}
	return multierr.Append(err, validateTopology(p.Topology))
}

func validateTopology(t iface.Topology) error {
	var err error
	if len(t.PointsOfInterest) == 0 {
		err = multierr.Append(err, fmt.Errorf("topology has no points of interest"))
	}
	if len(t.Proximal) != len(t.PointsOfInterest) {
		err = multierr.Append(err, fmt.Errorf("topology needs one proximal joint per point of interest, got %d for %d",
			len(t.Proximal), len(t.PointsOfInterest)))
	}
	idx := append([]int{t.Base, t.SpreadA, t.SpreadB}, t.PointsOfInterest...)
	idx = append(idx, t.Proximal...)
	for _, i := range idx {
		if i < 0 || i >= t.NumPoints {
			err = multierr.Append(err, fmt.Errorf("topology index %d outside [0, %d)", i, t.NumPoints))
		}
	}
	return err
}
