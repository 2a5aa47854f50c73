package handler

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// failingFs refuses to open one path, as if its permissions forbade it.
type failingFs struct {
	afero.Fs
	path string
}

func (f failingFs) Open(name string) (afero.File, error) {
	if name == f.path {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return f.Fs.Open(name)
}

func buildFor(t *testing.T, afs afero.Fs, method Method, uri string) (*Response, error) {
	t.Helper()
	r := NewResolver(afs, "/srv", "/home/alice")
	res, err := r.Resolve(uri)
	if err != nil {
		t.Fatalf("resolve %s: %v", uri, err)
	}
	return NewResponseBuilder(afs).Build(method, res, uri)
}

func TestBuildFileGetAndHead(t *testing.T) {
	afs := afero.NewMemMapFs()
	content := strings.Repeat("a", 120)
	_ = afero.WriteFile(afs, "/srv/index.html", []byte(content), 0o644)
	mtime := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	_ = afs.Chtimes("/srv/index.html", mtime, mtime)

	get, err := buildFor(t, afs, MethodGet, "/index.html")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if get.Status != StatusOK || get.ContentType != "text/html" {
		t.Fatalf("unexpected GET response %+v", get)
	}
	if get.ContentLength != 120 || string(get.Body) != content {
		t.Fatalf("GET body length %d / %d, want 120", get.ContentLength, len(get.Body))
	}
	if !get.LastModified.Equal(mtime) {
		t.Fatalf("Last-Modified = %v, want %v", get.LastModified, mtime)
	}

	head, err := buildFor(t, afs, MethodHead, "/index.html")
	if err != nil {
		t.Fatalf("HEAD: %v", err)
	}
	if len(head.Body) != 0 {
		t.Fatalf("HEAD carried %d body bytes", len(head.Body))
	}
	if head.ContentLength != 120 {
		t.Fatalf("HEAD Content-Length = %d, want 120", head.ContentLength)
	}
	if !strings.Contains(string(head.Header(time.Now())), "Content-Length: 120\r\n") {
		t.Fatal("HEAD header lacks Content-Length")
	}
}

func TestBuildContentKindGating(t *testing.T) {
	afs := afero.NewMemMapFs()
	_ = afero.WriteFile(afs, "/srv/photo.JPG", []byte{0xff, 0xd8, 0xff}, 0o644)
	_ = afero.WriteFile(afs, "/srv/data.txt", []byte("text"), 0o644)

	resp, err := buildFor(t, afs, MethodGet, "/photo.JPG")
	if err != nil {
		t.Fatalf("photo: %v", err)
	}
	if resp.ContentType != "image/jpeg" {
		t.Fatalf("photo content type %q", resp.ContentType)
	}

	_, err = buildFor(t, afs, MethodGet, "/data.txt")
	if !errors.Is(err, ErrUnsupportedContentKind) {
		t.Fatalf("expected ErrUnsupportedContentKind, got %v", err)
	}
	if StatusFor(err) != StatusBadRequest {
		t.Fatalf("expected Bad Request, got %v", StatusFor(err))
	}
}

func TestBuildDirectoryListing(t *testing.T) {
	afs := afero.NewMemMapFs()
	for _, name := range []string{"/srv/list/zeta.html", "/srv/list/alpha.jpg", "/srv/list/.hidden", "/srv/list/mid/x.html"} {
		_ = afero.WriteFile(afs, name, []byte("x"), 0o644)
	}

	get, err := buildFor(t, afs, MethodGet, "/list")
	if err != nil {
		t.Fatalf("GET listing: %v", err)
	}
	want := "<html>\n<head><title>Directory Listing</title></head>\n<body>\n" +
		"<h2>Listing of /list:</h2><br>\n" +
		"alpha.jpg<br>\nmid<br>\nzeta.html<br>\n" +
		"</body>\n</html>\n"
	if string(get.Body) != want {
		t.Fatalf("listing =\n%s\nwant\n%s", get.Body, want)
	}
	if get.ContentType != "text/html" || get.ContentLength != int64(len(want)) {
		t.Fatalf("unexpected listing response %+v", get)
	}
}

func TestBuildDirectoryHeadReportsLength(t *testing.T) {
	afs := afero.NewMemMapFs()
	_ = afero.WriteFile(afs, "/srv/list/a.html", []byte("x"), 0o644)

	get, err := buildFor(t, afs, MethodGet, "/list")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	head, err := buildFor(t, afs, MethodHead, "/list")
	if err != nil {
		t.Fatalf("HEAD: %v", err)
	}
	if len(head.Body) != 0 {
		t.Fatalf("HEAD listing carried a body")
	}
	if head.ContentLength != get.ContentLength || head.ContentType != "text/html" {
		t.Fatalf("HEAD = %+v, want length %d and text/html", head, get.ContentLength)
	}
}

func TestBuildUnsupportedMethod(t *testing.T) {
	afs := afero.NewMemMapFs()
	_ = afero.WriteFile(afs, "/srv/index.html", []byte("x"), 0o644)

	for _, res := range []Resolution{
		{Path: "/srv/index.html", Size: 1, Found: true},
		{Path: "/srv/missing.html"},
	} {
		resp, err := NewResponseBuilder(afs).Build(MethodInvalid, res, "/x")
		if !errors.Is(err, ErrUnsupportedMethod) || resp != nil {
			t.Fatalf("expected ErrUnsupportedMethod for %s, got %v", res.Path, err)
		}
	}
}

func TestBuildNotFound(t *testing.T) {
	afs := afero.NewMemMapFs()
	_ = afero.WriteFile(afs, "/srv/gone.html", []byte("x"), 0o644)

	r := NewResolver(afs, "/srv", "/home/alice")
	res, err := r.Resolve("/gone.html")
	if err != nil || !res.Found {
		t.Fatalf("resolve: %+v %v", res, err)
	}
	// The file vanishes between resolution and build.
	_ = afs.Remove("/srv/gone.html")

	_, err = NewResponseBuilder(afs).Build(MethodGet, res, "/gone.html")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	missing, _ := r.Resolve("/never.html")
	if _, err := NewResponseBuilder(afs).Build(MethodGet, missing, "/never.html"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unresolved target, got %v", err)
	}
}

func TestBuildReadFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	_ = afero.WriteFile(base, "/srv/secret.html", []byte("x"), 0o644)
	afs := failingFs{Fs: base, path: "/srv/secret.html"}

	_, err := buildFor(t, afs, MethodGet, "/secret.html")
	if !errors.Is(err, ErrReadFailure) {
		t.Fatalf("expected ErrReadFailure, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("read failure must stay distinguishable from not found")
	}
	if StatusFor(err) != StatusNotFound {
		t.Fatalf("expected Not Found on the wire, got %v", StatusFor(err))
	}

	// HEAD never opens the file.
	if _, err := buildFor(t, afs, MethodHead, "/secret.html"); err != nil {
		t.Fatalf("HEAD: %v", err)
	}
}

func TestResponseHeaderFormat(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mtime := time.Date(2023, 5, 6, 7, 8, 9, 0, time.FixedZone("CEST", 2*3600))

	testCases := []struct {
		name string
		resp Response
		want string
	}{
		{
			name: "full",
			resp: Response{Status: StatusOK, LastModified: mtime, ContentType: "text/html", ContentLength: 42},
			want: "HTTP/1.0 200 OK\r\n" +
				"Date: Tue, 02 Jan 2024 03:04:05 GMT\r\n" +
				"Server: myhttpd/1.0\r\n" +
				"Last-Modified: Sat, 06 May 2023 05:08:09 GMT\r\n" +
				"Content-Type: text/html\r\n" +
				"Content-Length: 42\r\n" +
				"\r\n",
		},
		{
			name: "bad request",
			resp: Response{Status: StatusBadRequest},
			want: "HTTP/1.0 400 Bad Request\r\n" +
				"Date: Tue, 02 Jan 2024 03:04:05 GMT\r\n" +
				"Server: myhttpd/1.0\r\n" +
				"\r\n",
		},
		{
			name: "not found",
			resp: Response{Status: StatusNotFound},
			want: "HTTP/1.0 404 Not Found\r\n" +
				"Date: Tue, 02 Jan 2024 03:04:05 GMT\r\n" +
				"Server: myhttpd/1.0\r\n" +
				"\r\n",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := string(tc.resp.Header(now)); got != tc.want {
				t.Fatalf("header =\n%q\nwant\n%q", got, tc.want)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	testCases := map[string]Method{
		"GET":  MethodGet,
		"HEAD": MethodHead,
		"get":  MethodInvalid,
		"POST": MethodInvalid,
		"":     MethodInvalid,
	}
	for in, want := range testCases {
		if got := ParseMethod(in); got != want {
			t.Errorf("ParseMethod(%q) = %v, want %v", in, got, want)
		}
	}
}
