package image

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type captureUploader struct {
	key         string
	contentType string
	data        []byte
	err         error
}

func (u *captureUploader) Upload(_ context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if u.err != nil {
		return u.err
	}
	u.key = key
	u.contentType = contentType
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return io.ErrShortWrite
	}
	u.data = data
	return nil
}

func testPNG(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return &buf
}

func TestProcessResizesToSquareJPEG(t *testing.T) {
	up := &captureUploader{}
	p := NewProcessor(up)

	key, err := p.Process(context.Background(), "usr-1", "Pikachu", testPNG(t, 800, 600))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if key != "image/user-usr-1/pikachu.jpg" {
		t.Errorf("key = %q", key)
	}
	if up.contentType != "image/jpeg" {
		t.Errorf("contentType = %q", up.contentType)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(up.data))
	if err != nil {
		t.Fatalf("uploaded data is not a JPEG: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 500 || bounds.Dy() != 500 {
		t.Errorf("uploaded image is %dx%d, want 500x500", bounds.Dx(), bounds.Dy())
	}
}

func TestProcessRejectsGarbage(t *testing.T) {
	p := NewProcessor(&captureUploader{})
	if _, err := p.Process(context.Background(), "usr-1", "x", strings.NewReader("not an image")); err == nil {
		t.Error("garbage input must fail to decode")
	}
}

type fakeDownloader struct {
	objects map[string]string
}

func (d *fakeDownloader) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := d.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func TestServeHandler(t *testing.T) {
	store := &fakeDownloader{objects: map[string]string{
		"image/user-usr-1/pikachu.jpg": "jpeg-bytes",
	}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /img/{key...}", ServeHandler(store))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/img/image/user-usr-1/pikachu.jpg", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "jpeg-bytes" {
		t.Errorf("body = %q", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/img/image/missing.jpg", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing object status = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/img/../etc/passwd", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("traversal status = %d, want 404", w.Code)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Pikachu", "pikachu"},
		{"Mr. Mime", "mr-mime"},
		{"Farfetch'd", "farfetchd"},
		{"NIDORAN_F", "nidoran-f"},
		{"???", "image"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
