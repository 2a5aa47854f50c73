package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"time"
)

const (
	// ProtocolVersion is the version token of every status line.
	ProtocolVersion = "HTTP/1.0"
	// ServerName is sent in the Server header.
	ServerName = "myhttpd/1.0"
)

// Method is the closed set of request methods the server distinguishes.
type Method int

const (
	MethodInvalid Method = iota
	MethodGet
	MethodHead
)

// ParseMethod maps a request-line token onto a Method. Matching is exact.
func ParseMethod(s string) Method {
	switch s {
	case "GET":
		return MethodGet
	case "HEAD":
		return MethodHead
	default:
		return MethodInvalid
	}
}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	default:
		return "INVALID"
	}
}

// Status is one of the three statuses the server ever sends.
type Status int

const (
	StatusOK         Status = 200
	StatusBadRequest Status = 400
	StatusNotFound   Status = 404
)

// Text returns the status line text, e.g. "200 OK".
func (s Status) Text() string {
	switch s {
	case StatusOK:
		return "200 OK"
	case StatusNotFound:
		return "404 Not Found"
	default:
		return "400 Bad Request"
	}
}

// Response is the outcome of one request. Body is empty for HEAD even when
// ContentLength is not.
type Response struct {
	Status        Status
	LastModified  time.Time
	ContentType   string
	ContentLength int64
	Body          []byte
}

// Header renders the header block. now is the value of the Date field.
func (r *Response) Header(now time.Time) []byte {
	var b bytes.Buffer
	b.WriteString(ProtocolVersion)
	b.WriteByte(' ')
	b.WriteString(r.Status.Text())
	b.WriteString("\r\n")
	b.WriteString("Date: ")
	b.WriteString(formatGMT(now))
	b.WriteString("\r\n")
	b.WriteString("Server: ")
	b.WriteString(ServerName)
	b.WriteString("\r\n")
	if !r.LastModified.IsZero() {
		b.WriteString("Last-Modified: ")
		b.WriteString(formatGMT(r.LastModified))
		b.WriteString("\r\n")
	}
	if r.ContentType != "" {
		b.WriteString("Content-Type: ")
		b.WriteString(r.ContentType)
		b.WriteString("\r\n")
	}
	if r.ContentLength > 0 {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.FormatInt(r.ContentLength, 10))
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

func formatGMT(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
