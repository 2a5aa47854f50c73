package handler

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"myhttpd/observability"
	"myhttpd/queue"
)

// Options configures an HTTPHandler.
type Options struct {
	Resolver  *Resolver
	Builder   *ResponseBuilder
	AccessLog AccessLogger

	// ConnDeadline bounds the whole pipeline for one connection. Zero
	// disables the deadline.
	ConnDeadline time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// HTTPHandler runs the response pipeline for one dequeued request: resolve,
// build, write header and body, log, close.
type HTTPHandler struct {
	resolver     *Resolver
	builder      *ResponseBuilder
	access       AccessLogger
	connDeadline time.Duration
	now          func() time.Time
}

type discardAccessLog struct{}

func (discardAccessLog) Log(string) {}

// NewHTTPHandler creates a new instance of HTTPHandler.
func NewHTTPHandler(opts Options) *HTTPHandler {
	h := &HTTPHandler{
		resolver:     opts.Resolver,
		builder:      opts.Builder,
		access:       opts.AccessLog,
		connDeadline: opts.ConnDeadline,
		now:          opts.Now,
	}
	if h.access == nil {
		h.access = discardAccessLog{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Respond computes the response for req without any connection I/O.
func (h *HTTPHandler) Respond(req *queue.Request) (*Response, error) {
	if req.Malformed {
		return nil, fmt.Errorf("%w: malformed request line", ErrInvalidPath)
	}
	method := ParseMethod(req.Method)
	if method == MethodInvalid {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	res, err := h.resolver.Resolve(req.URI)
	if err != nil {
		return nil, err
	}
	return h.builder.Build(method, res, req.URI)
}

// Serve handles req and closes its connection. Every failure is turned into
// one of the three wire statuses; none escapes to the caller.
func (h *HTTPHandler) Serve(ctx context.Context, req *queue.Request) {
	_, span := observability.StartSpan(ctx, "request.serve",
		attribute.String("http.method", req.Method),
		attribute.String("http.target", req.URI),
		attribute.String("net.peer.ip", req.RemoteIP),
		attribute.Int64("myhttpd.job_size", req.Size),
	)
	defer span.End()
	defer func() {
		if err := req.Conn.Close(); err != nil {
			log.Debugf("%s -- close: %v", req.RemoteIP, err)
		}
	}()

	if h.connDeadline > 0 {
		_ = req.Conn.SetDeadline(h.now().Add(h.connDeadline))
	}

	resp, err := h.Respond(req)
	if err != nil {
		logPipelineError(req, err)
		span.RecordError(err)
		resp = &Response{Status: StatusFor(err)}
	}
	span.SetAttributes(attribute.Int("http.status_code", int(resp.Status)))

	if err := h.transmit(req.Conn, resp); err != nil {
		log.Warnf("%s -- %s %s -- %v", req.RemoteIP, req.Method, req.URI, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transmission failed")
	}

	h.access.Log(FormatAccessLine(req, resp.Status, len(resp.Body), h.now()))
}

// transmit writes the header block, then the body. A failed write aborts the
// rest.
func (h *HTTPHandler) transmit(w io.Writer, resp *Response) error {
	if _, err := w.Write(resp.Header(h.now())); err != nil {
		return fmt.Errorf("%w: header: %v", ErrWriteFailure, err)
	}
	if len(resp.Body) == 0 {
		return nil
	}
	if _, err := w.Write(resp.Body); err != nil {
		return fmt.Errorf("%w: body: %v", ErrWriteFailure, err)
	}
	return nil
}
