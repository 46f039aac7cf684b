// Package feed fetches external XML listing feeds and decodes them into records.
package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/samber/lo"
	"golang.org/x/net/html/charset"
)

// autoClose is the HTML void-element set minus names that are real
// elements in a feed schema, like the offer <area><value/></area>.
var autoClose = lo.Without(xml.HTMLAutoClose, "area")

var (
	// ErrEmptyBody is returned when the feed responds with no content.
	ErrEmptyBody = errors.New("feed: empty body")
	// ErrNoRecords is returned when the document holds no records of the schema.
	ErrNoRecords = errors.New("feed: no records")
)

// NetworkError wraps a transport failure or a non-2xx response.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed: GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed: GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError is returned when no record could be recovered from the body.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "feed: parse: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// Document is a decoded feed. Partial is set when decoding stopped at a
// syntax error after some records were recovered.
type Document struct {
	Schema    Schema
	Records   []Record
	Partial   bool
	ParseErr  error
	FetchedAt time.Time
}

// IDs returns the external ids of all records, skipping empty ones.
func (d *Document) IDs() []string {
	ids := make([]string, 0, len(d.Records))
	for _, r := range d.Records {
		if r.ExternalID != "" {
			ids = append(ids, r.ExternalID)
		}
	}
	return ids
}

// Client downloads feeds. It never retries.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a feed client with a per-request timeout.
func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// Fetch downloads url and decodes it according to schema.
func (c *Client) Fetch(ctx context.Context, url string, schema Schema) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	doc, err := Parse(body, schema)
	if err != nil {
		return nil, err
	}
	doc.FetchedAt = time.Now()
	return doc, nil
}

// Parse decodes body in recover mode: bare ampersands are escaped, unknown
// entities and unclosed HTML-ish tags inside text are tolerated, and a syntax
// error after at least one record keeps what was read so far.
func Parse(body []byte, schema Schema) (*Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	d := xml.NewDecoder(bytes.NewReader(escapeAmpersands(body)))
	d.Strict = false
	d.AutoClose = autoClose
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel

	doc := &Document{Schema: schema}
	tag := schema.recordTag()
	sawElement := false

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if len(doc.Records) == 0 {
				return nil, &ParseError{Err: err}
			}
			doc.Partial = true
			doc.ParseErr = err
			break
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true
		if start.Name.Local != tag {
			continue
		}

		rec, err := decodeRecord(d, &start, schema)
		if err != nil {
			if len(doc.Records) == 0 {
				return nil, &ParseError{Err: err}
			}
			doc.Partial = true
			doc.ParseErr = err
			break
		}
		doc.Records = append(doc.Records, rec)
	}

	if !sawElement {
		return nil, &ParseError{Err: errors.New("no xml elements")}
	}
	if len(doc.Records) == 0 {
		return nil, ErrNoRecords
	}
	return doc, nil
}

var (
	cdataOpen  = []byte("<![CDATA[")
	cdataClose = []byte("]]>")
)

// escapeAmpersands rewrites every "&" that does not start an entity or
// character reference as "&amp;". CDATA sections are copied as is.
func escapeAmpersands(body []byte) []byte {
	if bytes.IndexByte(body, '&') < 0 {
		return body
	}
	out := make([]byte, 0, len(body)+64)
	for i := 0; i < len(body); {
		if bytes.HasPrefix(body[i:], cdataOpen) {
			end := bytes.Index(body[i+len(cdataOpen):], cdataClose)
			if end < 0 {
				return append(out, body[i:]...)
			}
			n := len(cdataOpen) + end + len(cdataClose)
			out = append(out, body[i:i+n]...)
			i += n
			continue
		}
		c := body[i]
		if c == '&' && !isReference(body[i+1:]) {
			out = append(out, "&amp;"...)
		} else {
			out = append(out, c)
		}
		i++
	}
	return out
}

// isReference reports whether b starts with a name or "#digits" followed by ';'.
func isReference(b []byte) bool {
	const maxRef = 32
	for i := 0; i < len(b) && i <= maxRef; i++ {
		c := b[i]
		switch {
		case c == ';':
			return i > 0
		case c == '#' && i == 0,
			c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return false
}
