package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"realty-feed-sync/internal/mapper"
)

// Trigger names what started a run
type Trigger string

const (
	TriggerCron   Trigger = "cron"
	TriggerManual Trigger = "manual"
	TriggerCLI    Trigger = "cli"
)

// Label is the log line prefix of the trigger
func (t Trigger) Label() string {
	if t == "" {
		return "CRON"
	}
	return strings.ToUpper(string(t))
}

// ErrAlreadyRunning is returned when another run holds the source lock
var ErrAlreadyRunning = errors.New("import already running")

// ErrMissingExternalID rejects records without an id
var ErrMissingExternalID = errors.New("missing external id")

// PersistenceError wraps a store failure for one record
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// OutcomeKind is the result of processing one record
type OutcomeKind string

const (
	Imported         OutcomeKind = "imported"
	Updated          OutcomeKind = "updated"
	SkippedUnchanged OutcomeKind = "skipped_unchanged"
	Rejected         OutcomeKind = "rejected"
	Backfilled       OutcomeKind = "backfilled"
	Failed           OutcomeKind = "failed"
)

// Outcome is what happened to one record
type Outcome struct {
	Kind      OutcomeKind
	Reason    error
	ListingID uint
}

// Succeeded reports whether the record counts towards the success limit
func (o Outcome) Succeeded() bool {
	return o.Kind == Imported || o.Kind == Updated
}

// Summary aggregates the outcomes of one run
type Summary struct {
	Source     string         `json:"source"`
	Trigger    Trigger        `json:"trigger"`
	Total      int            `json:"total"`
	Start      int            `json:"start"`
	Inspected  int            `json:"inspected"`
	Imported   int            `json:"imported"`
	Updated    int            `json:"updated"`
	Skipped    int            `json:"skipped"`
	Backfilled int            `json:"backfilled"`
	Rejected   int            `json:"rejected"`
	Failed     int            `json:"failed"`
	Rejections map[string]int `json:"rejections,omitempty"`
	NextOffset int            `json:"next_offset"`
	Partial    bool           `json:"partial"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Succeeded is the number of imported and updated records
func (s *Summary) Succeeded() int {
	return s.Imported + s.Updated
}

func (s *Summary) add(o Outcome) {
	s.Inspected++
	switch o.Kind {
	case Imported:
		s.Imported++
	case Updated:
		s.Updated++
	case SkippedUnchanged:
		s.Skipped++
	case Backfilled:
		s.Backfilled++
	case Rejected:
		s.Rejected++
		if s.Rejections == nil {
			s.Rejections = make(map[string]int)
		}
		s.Rejections[reasonKey(o.Reason)]++
	case Failed:
		s.Failed++
	}
}

func reasonKey(err error) string {
	var re *mapper.RejectError
	if errors.As(err, &re) {
		return re.Reason.Error()
	}
	if err == nil {
		return "unknown"
	}
	return err.Error()
}

// rejectMessage renders a rejection as a run log sentence
func rejectMessage(err error) string {
	var re *mapper.RejectError
	if !errors.As(err, &re) {
		return err.Error() + "."
	}
	switch {
	case errors.Is(re, mapper.ErrMissingPhone):
		return "No phone provided."
	case errors.Is(re, mapper.ErrMissingPhotos):
		return "No photos found."
	case errors.Is(re, mapper.ErrUnknownCategory):
		return fmt.Sprintf("Category not found (%s).", re.Detail)
	case errors.Is(re, mapper.ErrUnknownLocation):
		return fmt.Sprintf("City not found (%s).", re.Detail)
	}
	return re.Error() + "."
}
