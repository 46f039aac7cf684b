package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"realty-feed-sync/internal/config"
	"realty-feed-sync/internal/feed"
	"realty-feed-sync/internal/importer"
	"realty-feed-sync/internal/models"
	"realty-feed-sync/internal/report"
	"realty-feed-sync/internal/state"
	"realty-feed-sync/internal/sweeper"
)

// ErrUnknownSource is returned for a source that is not configured
var ErrUnknownSource = errors.New("unknown feed source")

// RunStore records run history
type RunStore interface {
	CreateRun(ctx context.Context, run *models.SyncRun) error
	UpdateRun(ctx context.Context, run *models.SyncRun) error
}

// Syncer runs one import session of a source
type Syncer interface {
	Run(ctx context.Context, trigger importer.Trigger) (*importer.Summary, error)
}

// Sweeper reconciles a source against its feed
type Sweeper interface {
	Sweep(ctx context.Context, cfg sweeper.SweepConfig) (*sweeper.SweepResult, error)
}

// Reporter writes the XML report of a source
type Reporter interface {
	Generate(ctx context.Context, cfg report.Config) (*report.Result, error)
}

type feedJob struct {
	cfg    config.FeedConfig
	engine Syncer
}

// Runner is the single entry point for sync, sweep and report jobs. Cron,
// the admin API and the CLI all go through it.
type Runner struct {
	runs     RunStore
	sweeper  Sweeper
	reporter Reporter
	feeds    map[string]*feedJob
}

// NewRunner creates a runner. reporter may be nil when no report is configured.
func NewRunner(runs RunStore, sw Sweeper, reporter Reporter) *Runner {
	return &Runner{
		runs:     runs,
		sweeper:  sw,
		reporter: reporter,
		feeds:    make(map[string]*feedJob),
	}
}

// AddFeed registers a source with its import engine
func (r *Runner) AddFeed(cfg config.FeedConfig, engine Syncer) {
	r.feeds[cfg.Name] = &feedJob{cfg: cfg, engine: engine}
}

// Feeds returns the configured sources ordered by name
func (r *Runner) Feeds() []config.FeedConfig {
	feeds := make([]config.FeedConfig, 0, len(r.feeds))
	for _, j := range r.feeds {
		feeds = append(feeds, j.cfg)
	}
	sort.Slice(feeds, func(i, k int) bool { return feeds[i].Name < feeds[k].Name })
	return feeds
}

// Feed returns the configuration of one source
func (r *Runner) Feed(source string) (config.FeedConfig, bool) {
	j, ok := r.feeds[source]
	if !ok {
		return config.FeedConfig{}, false
	}
	return j.cfg, true
}

func (r *Runner) job(source string) (*feedJob, error) {
	j, ok := r.feeds[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return j, nil
}

// Sync runs one import session of source
func (r *Runner) Sync(ctx context.Context, source string, trigger importer.Trigger) (*importer.Summary, error) {
	j, err := r.job(source)
	if err != nil {
		return nil, err
	}

	run := r.start(ctx, source, models.RunKindSync, trigger)
	summary, err := j.engine.Run(ctx, trigger)
	if summary != nil {
		run.Inspected = summary.Inspected
		run.Imported = summary.Imported
		run.Updated = summary.Updated
		run.Skipped = summary.Skipped
		run.Backfilled = summary.Backfilled
		run.Rejected = summary.Rejected
		run.NextOffset = summary.NextOffset
	}
	r.finish(ctx, run, err)
	return summary, err
}

// Sweep deletes the listings of source that its feed no longer carries
func (r *Runner) Sweep(ctx context.Context, source string, trigger importer.Trigger, dryRun bool) (*sweeper.SweepResult, error) {
	j, err := r.job(source)
	if err != nil {
		return nil, err
	}

	run := r.start(ctx, source, models.RunKindSweep, trigger)
	result, err := r.sweeper.Sweep(ctx, sweeper.SweepConfig{
		Source:           source,
		URL:              j.cfg.URL,
		Schema:           feed.Schema(j.cfg.Schema),
		AuthorID:         j.cfg.AuthorID,
		MaxDeletionCount: j.cfg.MaxDeletionCount,
		DryRun:           dryRun,
		LockTTL:          j.cfg.GetLockTTL(),
	})
	if result != nil {
		run.Inspected = result.StoredCount
		run.Deleted = result.DeletedCount
	}
	r.finish(ctx, run, err)
	return result, err
}

// Report writes the XML report of source
func (r *Runner) Report(ctx context.Context, source string, trigger importer.Trigger) (*report.Result, error) {
	j, err := r.job(source)
	if err != nil {
		return nil, err
	}
	if r.reporter == nil || j.cfg.Report.Path == "" {
		return nil, fmt.Errorf("no report configured for %s", source)
	}

	run := r.start(ctx, source, models.RunKindReport, trigger)
	result, err := r.reporter.Generate(ctx, report.Config{
		Source:   source,
		Path:     j.cfg.Report.Path,
		AuthorID: j.cfg.Report.AuthorID,
	})
	if result != nil {
		run.Inspected = result.Objects
		log.Printf("Scheduler: Report %s updated. Processed objects: %d", result.Path, result.Objects)
	}
	r.finish(ctx, run, err)
	return result, err
}

func (r *Runner) start(ctx context.Context, source string, kind models.RunKind, trigger importer.Trigger) *models.SyncRun {
	run := &models.SyncRun{
		ID:        uuid.NewString(),
		Source:    source,
		Kind:      kind,
		Trigger:   string(trigger),
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := r.runs.CreateRun(ctx, run); err != nil {
		log.Printf("Scheduler: Failed to record %s run of %s: %v", kind, source, err)
	}
	return run
}

func (r *Runner) finish(ctx context.Context, run *models.SyncRun, err error) {
	switch {
	case err == nil:
		run.Finish(models.RunStatusCompleted, nil)
	case errors.Is(err, importer.ErrAlreadyRunning), errors.Is(err, state.ErrLocked):
		run.Finish(models.RunStatusSkipped, err)
	default:
		run.Finish(models.RunStatusFailed, err)
		log.Printf("Scheduler: %s of %s failed: %v", run.Kind, run.Source, err)
	}
	// The run row is written even when the job context is already done.
	if uerr := r.runs.UpdateRun(context.WithoutCancel(ctx), run); uerr != nil {
		log.Printf("Scheduler: Failed to update %s run of %s: %v", run.Kind, run.Source, uerr)
	}
}
