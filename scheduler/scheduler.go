package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"myhttpd/logging"
	"myhttpd/manager"
	"myhttpd/queue"
)

var log *logrus.Logger

func init() {
	log = logging.GetLogger()
}

// State is the scheduler lifecycle phase.
type State int32

const (
	Quiescing State = iota
	Dispatching
	Draining
)

func (s State) String() string {
	switch s {
	case Quiescing:
		return "quiescing"
	case Dispatching:
		return "dispatching"
	case Draining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Servicer runs the response pipeline for one request and owns its
// connection from then on.
type Servicer interface {
	Serve(ctx context.Context, req *queue.Request)
}

// Options configures a Scheduler.
type Options struct {
	// Quiescence is how long requests accumulate before the first dispatch.
	Quiescence time.Duration
	// Countdown logs the remaining quiescence once per second.
	Countdown bool
}

// Scheduler moves requests from the admission queue onto worker slots.
type Scheduler struct {
	queue      *queue.RequestQueue
	pool       *manager.WorkerPool
	servicer   Servicer
	quiescence time.Duration
	countdown  bool

	state      atomic.Int32
	dispatched atomic.Uint64
}

// New creates a scheduler. It does nothing until Run.
func New(q *queue.RequestQueue, pool *manager.WorkerPool, servicer Servicer, opts Options) *Scheduler {
	return &Scheduler{
		queue:      q,
		pool:       pool,
		servicer:   servicer,
		quiescence: opts.Quiescence,
		countdown:  opts.Countdown,
	}
}

// State returns the current lifecycle phase.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Dispatched returns how many requests have been handed to workers.
func (s *Scheduler) Dispatched() uint64 {
	return s.dispatched.Load()
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	log.Debugf("Scheduler %s", st)
}

// Run waits out the quiescence period, then dispatches until ctx is
// cancelled. On return the queue is closed, connections still queued have
// been closed, and every in-flight worker has finished.
func (s *Scheduler) Run(ctx context.Context) {
	s.setState(Quiescing)
	if s.quiesce(ctx) {
		s.setState(Dispatching)
		log.Infof("Dispatching with %s policy on %d workers", s.queue.Policy(), s.pool.Size())
		s.dispatchLoop(ctx)
	}
	s.drain()
}

// quiesce reports false if ctx ended first.
func (s *Scheduler) quiesce(ctx context.Context) bool {
	if s.quiescence <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.quiescence)
	defer timer.Stop()

	var tick <-chan time.Time
	if s.countdown {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			log.Debugf("Queuing time: %d s", int(s.quiescence/time.Second))
			return true
		case <-tick:
			log.Debugf("Queuing time: %d s", int(time.Since(start)/time.Second))
		}
	}
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	workerCtx := context.WithoutCancel(ctx)
	for {
		slot, err := s.pool.Acquire(ctx)
		if err != nil {
			return
		}
		req, err := s.queue.Pop(ctx)
		if err != nil {
			slot.Release()
			return
		}
		s.dispatched.Inc()
		slot.Run(func() {
			s.servicer.Serve(workerCtx, req)
		})
	}
}

func (s *Scheduler) drain() {
	s.setState(Draining)
	remaining := s.queue.Close()
	for _, req := range remaining {
		if req.Conn != nil {
			_ = req.Conn.Close()
		}
	}
	if len(remaining) > 0 {
		log.Infof("Dropped %d queued requests on shutdown", len(remaining))
	}
	s.pool.Wait()
}
