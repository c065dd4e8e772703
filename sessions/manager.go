package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SegTrackServer/config"
	iface "SegTrackServer/interface"
	"SegTrackServer/monitor"

	"go.uber.org/zap"
)

// Manager is the registry of open sessions.
type Manager struct {
	cfg         config.Pipeline
	idleTimeout time.Duration
	pool        *Pool
	log         *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	next     uint64
}

// NewManager runs frames on pool, or on the caller when pool is nil.
// Sessions idle longer than idleTimeout are released by MonitorIdle.
func NewManager(cfg config.Pipeline, idleTimeout time.Duration, pool *Pool, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:         cfg,
		idleTimeout: idleTimeout,
		pool:        pool,
		log:         log,
		sessions:    make(map[string]*Session),
	}
}

func (m *Manager) Open(description string) (*Session, error) {
	s, err := newSession(description, m.cfg, m.log)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	m.mu.Lock()
	m.next++
	s.seq = m.next
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	monitor.ActiveSessions.Set(float64(n))
	m.log.Info("session opened", zap.String("id", s.ID), zap.String("description", description))
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

func (m *Manager) Release(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	monitor.ActiveSessions.Set(float64(n))
	m.log.Info("session released", zap.String("id", id))
	return nil
}

// All lists sessions, oldest first.
func (m *Manager) All() []Info {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].seq < list[j].seq
	})
	infos := make([]Info, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.Info())
	}
	return infos
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Process runs one frame on session id. A busy session drops the frame
// with ErrBusy instead of queueing it.
func (m *Manager) Process(ctx context.Context, id string, frame iface.Frame, preview bool) (iface.FrameResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return iface.FrameResult{}, err
	}
	if err := s.acquire(); err != nil {
		return iface.FrameResult{}, err
	}
	if m.pool == nil {
		return s.run(frame, preview), nil
	}
	return m.pool.Do(ctx, s, frame, preview)
}

func (m *Manager) Reset(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Reset()
	m.log.Info("session reset", zap.String("id", id))
	return nil
}

// ReleaseIdle drops sessions whose last activity is older than the idle
// timeout and returns their ids.
func (m *Manager) ReleaseIdle(now time.Time) []string {
	if m.idleTimeout <= 0 {
		return nil
	}
	var idle []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.idleTimeout {
			delete(m.sessions, id)
			idle = append(idle, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if len(idle) > 0 {
		monitor.ActiveSessions.Set(float64(n))
		m.log.Info("released idle sessions", zap.Strings("ids", idle))
	}
	return idle
}

// MonitorIdle checks for idle sessions every interval until ctx ends.
func (m *Manager) MonitorIdle(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.ReleaseIdle(now)
		}
	}
}

// CloseAll releases every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	monitor.ActiveSessions.Set(0)
}
