package handler

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
)

const (
	listingOpen  = "<html>\n<head><title>Directory Listing</title></head>\n<body>\n"
	listingClose = "</body>\n</html>\n"
)

// ResponseBuilder produces responses from resolved targets.
type ResponseBuilder struct {
	fs afero.Fs
}

// NewResponseBuilder reads targets from fs.
func NewResponseBuilder(fs afero.Fs) *ResponseBuilder {
	return &ResponseBuilder{fs: fs}
}

// Build produces the response for method on res. uri is the request URI as
// the client sent it and only appears in directory listings. On error the
// response is nil and StatusFor(err) gives the wire status.
func (b *ResponseBuilder) Build(method Method, res Resolution, uri string) (*Response, error) {
	switch method {
	case MethodGet, MethodHead:
	default:
		return nil, ErrUnsupportedMethod
	}
	if !res.Found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, res.Path)
	}

	info, err := b.fs.Stat(res.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, res.Path)
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}

	switch {
	case info.IsDir():
		listing, err := b.listing(res.Path, uri)
		if err != nil {
			return nil, err
		}
		resp := &Response{
			Status:        StatusOK,
			LastModified:  info.ModTime(),
			ContentType:   KindHTML.MIMEType(),
			ContentLength: int64(len(listing)),
		}
		if method == MethodGet {
			resp.Body = listing
		}
		return resp, nil

	case info.Mode().IsRegular():
		kind := ContentKindFor(res.Path)
		if kind == KindUnknown {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentKind, res.Path)
		}
		resp := &Response{
			Status:        StatusOK,
			LastModified:  info.ModTime(),
			ContentType:   kind.MIMEType(),
			ContentLength: info.Size(),
		}
		if method == MethodGet {
			data, err := afero.ReadFile(b.fs, res.Path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, fmt.Errorf("%w: %s", ErrNotFound, res.Path)
				}
				return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
			}
			resp.Body = data
			resp.ContentLength = int64(len(data))
		}
		return resp, nil

	default:
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, res.Path)
	}
}

// listing renders the HTML index of dir: entries in lexical order, hidden
// names left out.
func (b *ResponseBuilder) listing(dir, uri string) ([]byte, error) {
	entries, err := afero.ReadDir(b.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}

	var buf bytes.Buffer
	buf.WriteString(listingOpen)
	buf.WriteString("<h2>Listing of ")
	buf.WriteString(html.EscapeString(uri))
	buf.WriteString(":</h2><br>\n")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		buf.WriteString(html.EscapeString(e.Name()))
		buf.WriteString("<br>\n")
	}
	buf.WriteString(listingClose)
	return buf.Bytes(), nil
}
