package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	iface "SegTrackServer/interface"

	"go.uber.org/zap"
)

type jobResult struct {
	Data iface.FrameResult
	Err  error
}

// JobPackage is one frame bound to an already acquired session.
type JobPackage struct {
	session *Session
	frame   iface.Frame
	preview bool
	Result  chan jobResult
}

// Pool is a fixed set of workers draining a bounded job queue. A worker
// that panics is restarted after a second.
type Pool struct {
	JobQueue chan JobPackage
	workers  int
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewPool(workerNum int, log *zap.Logger) *Pool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		JobQueue: make(chan JobPackage, workerNum),
		workers:  workerNum,
		log:      log,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		go p.runWorker(i)
	}
}

func (p *Pool) runWorker(workerID int) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker panic, restarting in 1s", zap.Int("worker", workerID), zap.Any("panic", r))
			time.Sleep(1 * time.Second)
			go p.runWorker(workerID)
		}
	}()
	p.log.Debug("worker created", zap.Int("worker", workerID))
	for job := range p.JobQueue {
		job.Result <- p.exec(job)
	}
}

func (p *Pool) exec(job JobPackage) (res jobResult) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline panic", zap.String("session", job.session.ID), zap.Any("panic", r))
			res = jobResult{Err: fmt.Errorf("pipeline panic: %v", r)}
		}
	}()
	return jobResult{Data: job.session.run(job.frame, job.preview)}
}

// Do queues a frame for an acquired session and waits for its result. The
// session is released on every path.
func (p *Pool) Do(ctx context.Context, s *Session, frame iface.Frame, preview bool) (iface.FrameResult, error) {
	job := JobPackage{
		session: s,
		frame:   frame,
		preview: preview,
		Result:  make(chan jobResult, 1),
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		s.mu.Unlock()
		return iface.FrameResult{}, ErrClosed
	}
	select {
	case p.JobQueue <- job:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		s.mu.Unlock()
		return iface.FrameResult{}, ctx.Err()
	}
	select {
	case res := <-job.Result:
		return res.Data, res.Err
	case <-ctx.Done():
		return iface.FrameResult{}, ctx.Err()
	}
}

// Close stops accepting jobs and lets workers drain the queue.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.JobQueue)
}
