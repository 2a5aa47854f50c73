package scheduler

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"myhttpd/manager"
	"myhttpd/queue"
)

// recordingServicer notes the order requests are served in.
type recordingServicer struct {
	mu     sync.Mutex
	served []string
	hold   time.Duration
}

func (r *recordingServicer) Serve(_ context.Context, req *queue.Request) {
	if r.hold > 0 {
		time.Sleep(r.hold)
	}
	r.mu.Lock()
	r.served = append(r.served, req.URI)
	r.mu.Unlock()
	if req.Conn != nil {
		req.Conn.Close()
	}
}

func (r *recordingServicer) Served() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.served...)
}

func waitServed(t *testing.T, r *recordingServicer, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		got := r.Served()
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("served %d requests, want %d: %v", len(got), n, got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func push(t *testing.T, q *queue.RequestQueue, uri string, size int64) {
	t.Helper()
	if err := q.Push(context.Background(), &queue.Request{Method: "GET", URI: uri, Version: "HTTP/1.0", ArrivedAt: time.Now(), Size: size}); err != nil {
		t.Fatalf("push %s: %v", uri, err)
	}
}

func runScheduler(t *testing.T, policy queue.Policy, workers int, quiescence time.Duration, svc Servicer) (*Scheduler, *queue.RequestQueue, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	q := queue.NewRequestQueue(queue.Options{Policy: policy})
	pool, err := manager.NewWorkerPool(workers)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	s := New(q, pool, svc, Options{Quiescence: quiescence})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, q, cancel, done
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSchedulerSJFOrderAfterQuiescence(t *testing.T) {
	svc := &recordingServicer{}
	_, q, _, _ := runScheduler(t, queue.SJF, 1, 100*time.Millisecond, svc)

	push(t, q, "/fifty", 50)
	push(t, q, "/ten", 10)
	push(t, q, "/thirty", 30)

	got := waitServed(t, svc, 3)
	if want := []string{"/ten", "/thirty", "/fifty"}; !equal(got, want) {
		t.Fatalf("served %v, want %v", got, want)
	}
}

func TestSchedulerFCFSOrder(t *testing.T) {
	svc := &recordingServicer{}
	_, q, _, _ := runScheduler(t, queue.FCFS, 1, 100*time.Millisecond, svc)

	push(t, q, "/fifty", 50)
	push(t, q, "/ten", 10)
	push(t, q, "/thirty", 30)

	got := waitServed(t, svc, 3)
	if want := []string{"/fifty", "/ten", "/thirty"}; !equal(got, want) {
		t.Fatalf("served %v, want %v", got, want)
	}
}

func TestSchedulerHoldsDuringQuiescence(t *testing.T) {
	svc := &recordingServicer{}
	s, q, _, _ := runScheduler(t, queue.FCFS, 2, 300*time.Millisecond, svc)

	push(t, q, "/early", 1)
	time.Sleep(100 * time.Millisecond)
	if got := svc.Served(); len(got) != 0 {
		t.Fatalf("dispatched during quiescence: %v", got)
	}
	if s.State() != Quiescing {
		t.Fatalf("state = %v, want quiescing", s.State())
	}

	waitServed(t, svc, 1)
	if s.State() != Dispatching {
		t.Fatalf("state = %v, want dispatching", s.State())
	}
}

func TestSchedulerServesLateArrivals(t *testing.T) {
	svc := &recordingServicer{}
	s, q, _, _ := runScheduler(t, queue.SJF, 2, 0, svc)

	time.Sleep(20 * time.Millisecond)
	push(t, q, "/late", 5)
	waitServed(t, svc, 1)
	push(t, q, "/later", 5)
	waitServed(t, svc, 2)
	if s.Dispatched() != 2 {
		t.Fatalf("dispatched = %d, want 2", s.Dispatched())
	}
}

func TestSchedulerRanksOnlyWhatIsQueued(t *testing.T) {
	svc := &recordingServicer{hold: 100 * time.Millisecond}
	_, q, _, _ := runScheduler(t, queue.SJF, 1, 20*time.Millisecond, svc)

	push(t, q, "/big", 900)
	time.Sleep(80 * time.Millisecond)
	// /big is already on the only worker; the next decision ranks these two.
	push(t, q, "/medium", 500)
	push(t, q, "/small", 5)

	got := waitServed(t, svc, 3)
	if want := []string{"/big", "/small", "/medium"}; !equal(got, want) {
		t.Fatalf("served %v, want %v", got, want)
	}
}

func TestSchedulerDrainClosesQueuedConnections(t *testing.T) {
	svc := &recordingServicer{}
	s, q, cancel, done := runScheduler(t, queue.FCFS, 1, time.Hour, svc)

	client, server := net.Pipe()
	defer client.Close()
	if err := q.Push(context.Background(), &queue.Request{Conn: server, URI: "/queued"}); err != nil {
		t.Fatalf("push: %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if s.State() != Draining {
		t.Fatalf("state = %v, want draining", s.State())
	}
	if len(svc.Served()) != 0 {
		t.Fatalf("served during drain: %v", svc.Served())
	}

	_ = client.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := client.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("expected queued connection to be closed, got %v", err)
	}
	if err := q.Push(context.Background(), &queue.Request{URI: "/after"}); err == nil {
		t.Fatal("queue still accepting after drain")
	}
}

func TestSchedulerDrainWaitsForWorkers(t *testing.T) {
	release := make(chan struct{})
	svc := &blockingServicer{release: release, started: make(chan struct{}), ctxErr: make(chan error, 1)}
	_, q, cancel, done := runScheduler(t, queue.FCFS, 1, 0, svc)

	push(t, q, "/inflight", 1)
	<-svc.started
	cancel()

	select {
	case <-done:
		t.Fatal("scheduler returned while a worker was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not finish after the worker did")
	}
	if err := <-svc.ctxErr; err != nil {
		t.Fatalf("worker context was cancelled with the scheduler: %v", err)
	}
}

type blockingServicer struct {
	release chan struct{}
	started chan struct{}
	ctxErr  chan error
}

func (b *blockingServicer) Serve(ctx context.Context, _ *queue.Request) {
	close(b.started)
	<-b.release
	b.ctxErr <- ctx.Err()
}
