package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"realty-feed-sync/internal/models"
)

type memoryStore struct {
	nextID uint
	rows   map[uint]models.ListingMedia
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[uint]models.ListingMedia)}
}

func (s *memoryStore) ListMedia(_ context.Context, listingID uint) ([]models.ListingMedia, error) {
	var out []models.ListingMedia
	for _, m := range s.rows {
		if m.ListingID == listingID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memoryStore) CreateMedia(_ context.Context, m *models.ListingMedia) error {
	s.nextID++
	m.ID = s.nextID
	s.rows[m.ID] = *m
	return nil
}

func (s *memoryStore) DeleteMedia(_ context.Context, ids []uint) error {
	for _, id := range ids {
		delete(s.rows, id)
	}
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newImageServer(t *testing.T) *httptest.Server {
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.png", "/other.png":
			w.Write(body)
		case "/page.html":
			w.Write([]byte("<html><body>not an image</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReplaceConvertsToWebP(t *testing.T) {
	srv := newImageServer(t)
	store := newMemoryStore()
	dir := t.TempDir()
	s := NewSyncer(store, Config{UploadDir: dir, MaxPhotos: 6, ConvertWebP: true}, nil)

	listing := &models.Listing{ID: 7, Source: "aspo", ExternalID: "A1"}
	res, err := s.Replace(context.Background(), listing, []string{
		srv.URL + "/photo.png",
		srv.URL + "/page.html",
		srv.URL + "/missing.png",
		srv.URL + "/photo.png",
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if len(res.Media) != 1 {
		t.Fatalf("attached %d media; want 1", len(res.Media))
	}
	if res.Failed != 2 {
		t.Errorf("failed = %d; want 2", res.Failed)
	}
	m := res.Media[0]
	if res.ThumbnailID != m.ID {
		t.Errorf("thumbnail = %d; want %d", res.ThumbnailID, m.ID)
	}
	if m.MimeType != "image/webp" || filepath.Ext(m.Path) != ".webp" {
		t.Errorf("stored %s as %s", m.Path, m.MimeType)
	}
	data, err := os.ReadFile(m.Path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Errorf("stored file is not a RIFF container")
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "aspo", "7"))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries; want 1 (temp files left behind?)", len(entries))
	}
}

func TestReplaceRemovesPreviousMedia(t *testing.T) {
	srv := newImageServer(t)
	store := newMemoryStore()
	s := NewSyncer(store, Config{UploadDir: t.TempDir(), MaxPhotos: 1}, nil)
	listing := &models.Listing{ID: 3, Source: "aspo"}

	first, err := s.Replace(context.Background(), listing, []string{srv.URL + "/photo.png"})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	oldPath := first.Media[0].Path
	listing.ThumbnailID = first.ThumbnailID

	second, err := s.Replace(context.Background(), listing, []string{srv.URL + "/other.png", srv.URL + "/photo.png"})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if len(second.Media) != 1 {
		t.Fatalf("attached %d media; want 1 (max photos)", len(second.Media))
	}
	if second.Media[0].MimeType != "image/png" {
		t.Errorf("mime = %s; want image/png without conversion", second.Media[0].MimeType)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Errorf("old media file still exists")
	}
	if len(store.rows) != 1 {
		t.Errorf("store has %d rows; want 1", len(store.rows))
	}
}

func TestDeleteAll(t *testing.T) {
	srv := newImageServer(t)
	store := newMemoryStore()
	s := NewSyncer(store, Config{UploadDir: t.TempDir()}, nil)
	listing := &models.Listing{ID: 9, Source: "flatprime"}

	res, err := s.Replace(context.Background(), listing, []string{srv.URL + "/photo.png", srv.URL + "/other.png"})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	listing.ThumbnailID = res.ThumbnailID

	n, err := s.DeleteAll(context.Background(), listing)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d; want 2", n)
	}
	for _, m := range res.Media {
		if _, err := os.Stat(m.Path); !os.IsNotExist(err) {
			t.Errorf("%s still exists", m.Path)
		}
	}
}

func TestUnwrapURL(t *testing.T) {
	tests := map[string]string{
		"https://images.weserv.nl/?url=//cdn.example.com/a.jpg&w=800": "https://cdn.example.com/a.jpg",
		"https://images.weserv.nl/?url=cdn.example.com/b.jpg":         "https://cdn.example.com/b.jpg",
		"https://images.weserv.nl/?url=http://cdn.example.com/c.jpg":  "http://cdn.example.com/c.jpg",
		"https://cdn.example.com/d.jpg":                               "https://cdn.example.com/d.jpg",
		" https://images.weserv.nl/?w=1 ":                             "https://images.weserv.nl/?w=1",
	}
	for in, want := range tests {
		if got := UnwrapURL(in); got != want {
			t.Errorf("UnwrapURL(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestPacerDisabled(t *testing.T) {
	p := NewPacer(0, 0)
	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background(), "example.com"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPacerHonoursContext(t *testing.T) {
	p := NewPacer(time.Hour, 0)
	if err := p.Wait(context.Background(), "example.com"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx, "example.com"); err == nil {
		t.Error("expected context error")
	}
	if err := p.Wait(context.Background(), "other.example.com"); err != nil {
		t.Errorf("other host should not wait: %v", err)
	}
}
