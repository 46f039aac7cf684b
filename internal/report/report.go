// Package report writes the per-source XML report of published listings
// with their view counts.
package report

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"realty-feed-sync/internal/models"
)

const dateLayout = "2006-01-02 15:04:05"

// Row is one published listing in the report
type Row struct {
	ID       uint   `db:"id"`
	ImportID string `db:"import_id"`
	Views    int64  `db:"views"`
}

// Config selects what a report covers and where it goes
type Config struct {
	Source   string
	Path     string
	AuthorID uint
}

// Result describes a written report
type Result struct {
	Path        string    `json:"path"`
	Objects     int       `json:"objects"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Generator builds reports from the listing tables
type Generator struct {
	db      *sqlx.DB
	siteURL string
	now     func() time.Time
}

// NewGenerator creates a report generator
func NewGenerator(db *sqlx.DB, siteURL string) *Generator {
	return &Generator{db: db, siteURL: strings.TrimRight(siteURL, "/"), now: time.Now}
}

const rowsQuery = `
SELECT l.id, l.external_id AS import_id, COALESCE(v.count, 0) AS views
FROM listings l
LEFT JOIN listing_views v ON v.listing_id = l.id
WHERE l.author_id = ? AND l.status = ?
ORDER BY l.id`

// Rows returns the published listings of authorID
func (g *Generator) Rows(ctx context.Context, authorID uint) ([]Row, error) {
	var rows []Row
	if err := g.db.SelectContext(ctx, &rows, g.db.Rebind(rowsQuery), authorID, models.ListingStatusPublish); err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", err)
	}
	return rows, nil
}

// Generate queries the rows and replaces the report file
func (g *Generator) Generate(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("report path for %s is not configured", cfg.Source)
	}
	rows, err := g.Rows(ctx, cfg.AuthorID)
	if err != nil {
		return nil, err
	}
	now := g.now()
	if err := WriteFile(cfg.Path, now, rows, g.siteURL); err != nil {
		return nil, err
	}
	return &Result{Path: cfg.Path, Objects: len(rows), GeneratedAt: now}, nil
}

type objectsXML struct {
	XMLName xml.Name    `xml:"objects"`
	Date    string      `xml:"date,attr"`
	Objects []objectXML `xml:"object"`
}

type objectXML struct {
	ImportID string `xml:"import_id"`
	Link     string `xml:"link"`
	LocalID  uint   `xml:"local_id"`
	Views    int64  `xml:"views"`
}

// Link is the public address of a listing
func Link(siteURL string, id uint) string {
	return siteURL + "/?post_type=listing&p=" + strconv.FormatUint(uint64(id), 10)
}

// Write renders the report document to w
func Write(w io.Writer, date time.Time, rows []Row, siteURL string) error {
	doc := objectsXML{Date: date.Format(dateLayout), Objects: make([]objectXML, 0, len(rows))}
	for _, r := range rows {
		doc.Objects = append(doc.Objects, objectXML{
			ImportID: r.ImportID,
			Link:     Link(siteURL, r.ID),
			LocalID:  r.ID,
			Views:    r.Views,
		})
	}
	if _, err := io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Flush()
}

// WriteFile writes the report next to path and renames it into place
func WriteFile(path string, date time.Time, rows []Row, siteURL string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, date, rows, siteURL); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace report: %w", err)
	}
	return nil
}
