package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/atomic"

	"myhttpd/logging"
)

var log *logrus.Logger

func init() {
	log = logging.GetLogger()
}

// ErrInvalidPoolSize is returned by NewWorkerPool for a non-positive size.
var ErrInvalidPoolSize = errors.New("worker pool size must be positive")

// PoolMetrics tracks slot occupancy for the periodic monitor.
type PoolMetrics struct {
	Processing       int
	LastLogTime      time.Time
	processingChange bool
	mu               sync.Mutex
}

// WorkerPool is a fixed set of execution slots. A slot is held from Acquire
// until the function handed to Slot.Run returns, or until Release.
type WorkerPool struct {
	sem      chan struct{}
	busy     atomic.Int64
	panicked atomic.Int64
	wg       conc.WaitGroup
	metrics  *PoolMetrics
}

// Slot is one unit of pool capacity.
type Slot struct {
	pool *WorkerPool
	once sync.Once
}

// NewWorkerPool creates a pool with size slots.
func NewWorkerPool(size int) (*WorkerPool, error) {
	if size <= 0 {
		return nil, ErrInvalidPoolSize
	}
	return &WorkerPool{
		sem:     make(chan struct{}, size),
		metrics: &PoolMetrics{},
	}, nil
}

// Size returns the number of slots.
func (p *WorkerPool) Size() int {
	return cap(p.sem)
}

// Busy returns the number of slots currently held.
func (p *WorkerPool) Busy() int {
	return int(p.busy.Load())
}

// Acquire blocks until a slot is free or ctx is done.
func (p *WorkerPool) Acquire(ctx context.Context) (*Slot, error) {
	select {
	case p.sem <- struct{}{}:
		p.busy.Inc()
		p.metrics.incrementProcessing()
		return &Slot{pool: p}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run executes fn on its own goroutine and releases the slot when fn returns,
// whether it returns normally or panics. A panic is logged as soon as it is
// recovered and never reaches Wait.
func (s *Slot) Run(fn func()) {
	s.pool.wg.Go(func() {
		defer s.Release()
		if r := panics.Try(fn); r != nil {
			s.pool.panicked.Inc()
			log.Errorf("Worker panicked: %v\n%s", r.Value, r.Stack)
		}
	})
}

// Release returns the slot to the pool. Extra calls are no-ops.
func (s *Slot) Release() {
	s.once.Do(func() {
		s.pool.busy.Dec()
		s.pool.metrics.decrementProcessing()
		<-s.pool.sem
	})
}

// Wait blocks until every function started with Slot.Run has returned.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Panics returns how many jobs have panicked since the pool was created.
func (p *WorkerPool) Panics() int {
	return int(p.panicked.Load())
}

// Monitor logs the processing count when it changes, at most once per second,
// until ctx is done.
func (p *WorkerPool) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m := p.metrics
		m.mu.Lock()
		currentTime := time.Now()
		if m.processingChange && currentTime.Sub(m.LastLogTime) >= time.Second {
			log.Debugf("Workers | Processing: %d/%d", m.Processing, p.Size())
			m.LastLogTime = currentTime
			m.processingChange = false
		}
		m.mu.Unlock()
	}
}

func (m *PoolMetrics) incrementProcessing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Processing++
	m.processingChange = true
}

func (m *PoolMetrics) decrementProcessing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Processing > 0 {
		m.Processing--
		m.processingChange = true
	}
}
