package server

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

const (
	maxMethodLength  = 5
	maxPathLength    = 1024
	maxVersionLength = 8

	// A request line can be no longer than its three fields, two spaces and
	// CRLF. Anything longer is rejected.
	maxRequestLine = maxMethodLength + maxPathLength + maxVersionLength + 4
)

// ErrMalformedRequest is returned for a request line that does not have
// exactly three non-empty, length-bounded fields.
var ErrMalformedRequest = errors.New("malformed request line")

// RequestLine is the parsed first line of a request.
type RequestLine struct {
	Method  string
	URI     string
	Version string
}

// ReadRequestLine reads and parses "METHOD SP PATH SP VERSION" from br.
func ReadRequestLine(br *bufio.Reader) (RequestLine, error) {
	line, err := readLine(br, maxRequestLine)
	if err != nil && (err != io.EOF || len(line) == 0) {
		return RequestLine{}, err
	}
	return ParseRequestLine(line)
}

// ParseRequestLine splits a request line into its fields.
func ParseRequestLine(line string) (RequestLine, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return RequestLine{}, ErrMalformedRequest
	}
	rl := RequestLine{Method: fields[0], URI: fields[1], Version: fields[2]}
	if len(rl.Method) > maxMethodLength || len(rl.URI) > maxPathLength || len(rl.Version) > maxVersionLength {
		return RequestLine{}, ErrMalformedRequest
	}
	return rl, nil
}

// DiscardBuffered drops whatever the client sent after the request line in
// the reads already made, headers included. It never waits for more input,
// so a client that leaves its headers unfinished is admitted anyway. It
// returns the number of bytes dropped.
func DiscardBuffered(br *bufio.Reader) int {
	n, _ := br.Discard(br.Buffered())
	return n
}

// readLine returns one line without its line ending. Lines longer than limit
// are rejected.
func readLine(br *bufio.Reader, limit int) (string, error) {
	var buf bytes.Buffer
	for {
		chunk, err := br.ReadSlice('\n')
		buf.Write(chunk)
		if buf.Len() > limit {
			return "", ErrMalformedRequest
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		line := strings.TrimRight(buf.String(), "\r\n")
		return line, err
	}
}
