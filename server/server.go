package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"myhttpd/handler"
	"myhttpd/logging"
	"myhttpd/observability"
	"myhttpd/queue"
)

var log *logrus.Logger

func init() {
	log = logging.GetLogger()
}

// Options configures the accept loop.
type Options struct {
	// ReadTimeout bounds reading the request line and headers of one
	// connection. Zero disables the deadline.
	ReadTimeout time.Duration
}

// Server accepts connections and admits their requests to the queue. It
// never waits on the queue consumer: each connection is read and admitted on
// its own goroutine.
type Server struct {
	listener    net.Listener
	queue       *queue.RequestQueue
	resolver    *handler.Resolver
	readTimeout time.Duration

	// conns holds connections still being admitted, keyed by accept order.
	conns      *xsync.MapOf[uint64, net.Conn]
	nextID     atomic.Uint64
	admissions sync.WaitGroup
}

// New creates a server over an already bound listener.
func New(ln net.Listener, q *queue.RequestQueue, r *handler.Resolver, opts Options) *Server {
	return &Server{
		listener:    ln,
		queue:       q,
		resolver:    r,
		readTimeout: opts.ReadTimeout,
		conns:       xsync.NewMapOf[uint64, net.Conn](),
	}
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled or the listener fails.
// Cancellation closes the listener and is not an error.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = s.listener.Close()
	})
	defer stop()

	var tempDelay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if maxDelay := time.Second; tempDelay > maxDelay {
				tempDelay = maxDelay
			}
			log.Warnf("Accept failure: %v; retrying in %v", err, tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		arrived := time.Now()
		id := s.nextID.Inc()
		s.conns.Store(id, conn)
		s.admissions.Add(1)
		go s.admit(ctx, id, conn, arrived)
	}
}

func (s *Server) admit(ctx context.Context, id uint64, conn net.Conn, arrived time.Time) {
	defer s.admissions.Done()
	ctx, span := observability.StartSpan(ctx, "request.admit")
	defer span.End()

	req := s.readRequest(conn, arrived)
	req.Seq = id
	s.conns.Delete(id)
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.target", req.URI),
		attribute.Int64("myhttpd.job_size", req.Size),
	)

	err := s.queue.Push(ctx, req)
	switch {
	case err == nil:
		log.Debugf("%s -- admitted %s %s (%d bytes)", req.RemoteIP, req.Method, req.URI, req.Size)
	case errors.Is(err, queue.ErrQueueFull):
		log.Warnf("%s -- queue full, rejecting %s %s", req.RemoteIP, req.Method, req.URI)
		s.reject(conn)
	default:
		log.Debugf("%s -- not admitted: %v", req.RemoteIP, err)
		_ = conn.Close()
	}
}

// readRequest builds the queue record for conn. A request line that cannot be
// read or parsed yields a record marked Malformed; it is still queued so the
// client gets its Bad Request in turn.
func (s *Server) readRequest(conn net.Conn, arrived time.Time) *queue.Request {
	if s.readTimeout > 0 {
		_ = conn.SetReadDeadline(arrived.Add(s.readTimeout))
	}
	defer func() {
		_ = conn.SetReadDeadline(time.Time{})
	}()

	req := &queue.Request{
		Conn:      conn,
		RemoteIP:  remoteIP(conn.RemoteAddr()),
		ArrivedAt: arrived,
	}

	br := bufio.NewReader(conn)
	rl, err := ReadRequestLine(br)
	if err != nil {
		log.Debugf("%s -- unreadable request line: %v", req.RemoteIP, err)
		req.Malformed = true
		return req
	}
	req.Method, req.URI, req.Version = rl.Method, rl.URI, rl.Version
	if n := DiscardBuffered(br); n > 0 {
		log.Tracef("%s -- dropped %d bytes of headers", req.RemoteIP, n)
	}

	res, err := s.resolver.Resolve(rl.URI)
	if err != nil {
		return req
	}
	req.ResolvedPath = res.Path
	if res.Found {
		req.Size = res.Size
	}
	return req
}

func (s *Server) reject(conn net.Conn) {
	resp := handler.Response{Status: handler.StatusBadRequest}
	if _, err := conn.Write(resp.Header(time.Now())); err != nil {
		log.Debugf("reject: %v", err)
	}
	_ = conn.Close()
}

// Close stops accepting, drops connections that are still being admitted and
// waits for their admission goroutines to finish.
func (s *Server) Close() error {
	var err error
	if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = multierr.Append(err, cerr)
	}
	s.conns.Range(func(_ uint64, c net.Conn) bool {
		if cerr := c.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
		return true
	})
	s.admissions.Wait()
	return err
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
