// Package media downloads listing images, stores them on disk and keeps
// the listing_media rows in step.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"realty-feed-sync/internal/models"
)

// maxImageBytes caps a single download
const maxImageBytes = 20 << 20

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ErrUnsupportedType is returned for downloads that are not an accepted image
var ErrUnsupportedType = errors.New("unsupported media type")

// Store persists media rows
type Store interface {
	ListMedia(ctx context.Context, listingID uint) ([]models.ListingMedia, error)
	CreateMedia(ctx context.Context, m *models.ListingMedia) error
	DeleteMedia(ctx context.Context, ids []uint) error
}

// Logger is the subset of the run logger the syncer writes to
type Logger interface {
	Printf(format string, args ...any)
}

// Config holds syncer settings
type Config struct {
	UploadDir       string
	MaxPhotos       int
	ConvertWebP     bool
	DownloadTimeout time.Duration
	RequestDelay    time.Duration
	UserAgent       string
}

// Result describes the media attached to a listing
type Result struct {
	Media       []models.ListingMedia
	Failed      int
	ThumbnailID uint
}

// Syncer replaces and removes listing media
type Syncer struct {
	store  Store
	cfg    Config
	client *http.Client
	pacer  *Pacer
	logger Logger
}

// NewSyncer creates a media syncer
func NewSyncer(store Store, cfg Config, logger Logger) *Syncer {
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = 6
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 15 * time.Second
	}
	return &Syncer{
		store:  store,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.DownloadTimeout},
		pacer:  NewPacer(cfg.RequestDelay, cfg.RequestDelay/2),
		logger: logger,
	}
}

// Replace deletes every stored media of the listing and attaches the images
// behind urls, in order, up to the configured maximum. Failed downloads are
// logged and skipped.
func (s *Syncer) Replace(ctx context.Context, listing *models.Listing, urls []string) (*Result, error) {
	existing, err := s.store.ListMedia(ctx, listing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	if _, err := s.remove(ctx, existing, listing.ThumbnailID); err != nil {
		return nil, err
	}

	urls = lo.Uniq(lo.Map(urls, func(u string, _ int) string { return UnwrapURL(u) }))
	if len(urls) > s.cfg.MaxPhotos {
		urls = urls[:s.cfg.MaxPhotos]
	}

	dir := filepath.Join(s.cfg.UploadDir, listing.Source, strconv.FormatUint(uint64(listing.ID), 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	result := &Result{}
	for i, src := range urls {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		path, mime, err := s.fetch(ctx, src, dir)
		if err != nil {
			result.Failed++
			s.logf("[%s] Image %s of ID %s skipped: %v", listing.Source, src, listing.ExternalID, err)
			continue
		}
		m := models.ListingMedia{
			ListingID: listing.ID,
			SourceURL: src,
			Path:      path,
			MimeType:  mime,
			SortOrder: i,
		}
		if err := s.store.CreateMedia(ctx, &m); err != nil {
			os.Remove(path)
			return result, fmt.Errorf("failed to save media: %w", err)
		}
		if result.ThumbnailID == 0 {
			result.ThumbnailID = m.ID
		}
		result.Media = append(result.Media, m)
	}
	return result, nil
}

// DeleteAll removes every media file and row of a listing, including the
// thumbnail, and returns how many were removed.
func (s *Syncer) DeleteAll(ctx context.Context, listing *models.Listing) (int, error) {
	existing, err := s.store.ListMedia(ctx, listing.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list media: %w", err)
	}
	return s.remove(ctx, existing, listing.ThumbnailID)
}

func (s *Syncer) remove(ctx context.Context, media []models.ListingMedia, thumbnailID uint) (int, error) {
	ids := lo.Map(media, func(m models.ListingMedia, _ int) uint { return m.ID })
	if thumbnailID != 0 {
		ids = append(ids, thumbnailID)
	}
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	for _, m := range media {
		if err := os.Remove(m.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logf("Failed to remove media file %s: %v", m.Path, err)
		}
	}
	if err := s.store.DeleteMedia(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to delete media: %w", err)
	}
	return len(ids), nil
}

// fetch downloads src into dir and returns the stored path and mime type.
// The temporary download is removed on every path.
func (s *Syncer) fetch(ctx context.Context, src, dir string) (string, string, error) {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", fmt.Errorf("invalid image url %q", src)
	}
	if err := s.pacer.Wait(ctx, u.Host); err != nil {
		return "", "", err
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", "", err
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		return "", "", fmt.Errorf("failed to read body: %w", err)
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return "", "", err
	}
	mime := http.DetectContentType(data)
	ext, ok := allowedTypes[mime]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}

	name := uuid.NewString()
	if s.cfg.ConvertWebP && mime != "image/webp" {
		if encoded, err := encodeWebP(data); err == nil {
			data, mime, ext = encoded, "image/webp", ".webp"
		} else {
			s.logf("WebP conversion of %s failed, keeping original: %v", src, err)
		}
	}

	path := filepath.Join(dir, name+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write media file: %w", err)
	}
	return path, mime, nil
}

func encodeWebP(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Syncer) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
