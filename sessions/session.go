package sessions

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"SegTrackServer/config"
	iface "SegTrackServer/interface"
	"SegTrackServer/monitor"
	"SegTrackServer/pipeline"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrBusy     = errors.New("session busy, frame dropped")
	ErrClosed   = errors.New("worker pool closed")
)

// Info is a point-in-time view of a session.
type Info struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
	LastActive  time.Time `json:"lastActive"`
	Frames      uint64    `json:"frames"`
	Dropped     uint64    `json:"dropped"`
	TrackedKeys int       `json:"trackedKeys"`
}

// Session owns one pipeline. At most one frame is in flight per session;
// a frame that arrives while another is running is dropped.
type Session struct {
	ID          string
	Description string
	Created     time.Time

	seq        uint64
	mu         sync.Mutex
	pipeline   *pipeline.Pipeline
	lastActive atomic.Int64
	frames     atomic.Uint64
	dropped    atomic.Uint64
	log        *zap.Logger
}

func newSession(description string, cfg config.Pipeline, log *zap.Logger) (*Session, error) {
	id := uuid.NewString()
	log = log.With(zap.String("session", id))
	p, err := pipeline.New(cfg, log)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:          id,
		Description: description,
		Created:     time.Now(),
		pipeline:    p,
		log:         log,
	}
	s.touch()
	return s, nil
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// acquire claims the session for one frame, or reports ErrBusy.
func (s *Session) acquire() error {
	if !s.mu.TryLock() {
		s.dropped.Add(1)
		monitor.FramesDropped.Inc()
		s.log.Debug("frame dropped, session busy")
		return ErrBusy
	}
	return nil
}

// run executes one cycle on an acquired session and releases it.
func (s *Session) run(frame iface.Frame, preview bool) iface.FrameResult {
	defer s.mu.Unlock()
	start := time.Now()
	var res iface.FrameResult
	if preview {
		res = s.pipeline.Preview(frame)
	} else {
		res = s.pipeline.Process(frame)
	}
	s.frames.Add(1)
	s.touch()
	monitor.ObserveCycle(time.Since(start), len(res.Matches))
	return res
}

// Process runs a frame on the calling goroutine.
func (s *Session) Process(frame iface.Frame, preview bool) (iface.FrameResult, error) {
	if err := s.acquire(); err != nil {
		return iface.FrameResult{}, err
	}
	return s.run(frame, preview), nil
}

// Reset waits for any in-flight frame and clears smoothing history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.Reset()
	s.touch()
}

func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) Info() Info {
	s.mu.Lock()
	keys := s.pipeline.TrackedKeys()
	s.mu.Unlock()
	return Info{
		ID:          s.ID,
		Description: s.Description,
		Created:     s.Created,
		LastActive:  s.LastActive(),
		Frames:      s.frames.Load(),
		Dropped:     s.dropped.Load(),
		TrackedKeys: keys,
	}
}
