package handler

import (
	"path/filepath"
	"strings"
)

// ContentKind is the closed set of servable file kinds.
type ContentKind int

const (
	KindUnknown ContentKind = iota
	KindHTML
	KindJPEG
)

// ContentKindFor classifies a file by its suffix, ignoring case.
func ContentKindFor(name string) ContentKind {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "html", "htm":
		return KindHTML
	case "jpg", "jpeg":
		return KindJPEG
	default:
		return KindUnknown
	}
}

// MIMEType returns the Content-Type value, or "" for KindUnknown.
func (k ContentKind) MIMEType() string {
	switch k {
	case KindHTML:
		return "text/html"
	case KindJPEG:
		return "image/jpeg"
	default:
		return ""
	}
}
