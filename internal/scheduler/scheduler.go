package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"realty-feed-sync/internal/importer"
)

// Scheduler handles the scheduled jobs of every configured source
type Scheduler struct {
	cron      *cron.Cron
	runner    *Runner
	isRunning bool
}

// NewScheduler creates a new scheduler. A nil location means local time.
func NewScheduler(runner *Runner, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		runner: runner,
	}
}

// Register adds the sync, sweep and report jobs of every source
func (s *Scheduler) Register() error {
	for _, f := range s.runner.Feeds() {
		source := f.Name

		if f.Schedule != "" {
			if _, err := s.cron.AddFunc(f.Schedule, func() { s.runSync(source) }); err != nil {
				return fmt.Errorf("invalid schedule %q for %s: %w", f.Schedule, source, err)
			}
			log.Printf("Scheduler: %s sync scheduled (cron: %s)", source, f.Schedule)
		}

		if f.SweepSchedule != "" {
			if _, err := s.cron.AddFunc(f.SweepSchedule, func() { s.runSweep(source) }); err != nil {
				return fmt.Errorf("invalid sweep schedule %q for %s: %w", f.SweepSchedule, source, err)
			}
			log.Printf("Scheduler: %s sweep scheduled (cron: %s)", source, f.SweepSchedule)
		}

		if f.Report.Schedule != "" && f.Report.Path != "" {
			if _, err := s.cron.AddFunc(f.Report.Schedule, func() { s.runReport(source) }); err != nil {
				return fmt.Errorf("invalid report schedule %q for %s: %w", f.Report.Schedule, source, err)
			}
			log.Printf("Scheduler: %s report scheduled (cron: %s)", source, f.Report.Schedule)
		}
	}
	return nil
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if err := s.Register(); err != nil {
		return err
	}
	s.cron.Start()
	s.isRunning = true
	log.Printf("Scheduler: Started with %d jobs", len(s.cron.Entries()))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	if s.isRunning {
		<-s.cron.Stop().Done()
		s.isRunning = false
		log.Println("Scheduler: Stopped")
	}
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runSync(source string) {
	summary, err := s.runner.Sync(context.Background(), source, importer.TriggerCron)
	if err != nil {
		log.Printf("Scheduler: %s sync did not complete: %v", source, err)
		return
	}
	log.Printf("Scheduler: %s sync completed. Added/Updated: %d, checked: %d, next offset: %d",
		source, summary.Succeeded(), summary.Inspected, summary.NextOffset)
}

func (s *Scheduler) runSweep(source string) {
	result, err := s.runner.Sweep(context.Background(), source, importer.TriggerCron, false)
	if err != nil {
		log.Printf("Scheduler: %s sweep did not complete: %v", source, err)
		return
	}
	log.Printf("Scheduler: %s sweep completed. Deleted: %d, media: %d, errors: %d",
		source, result.DeletedCount, result.MediaDeleted, result.ErrorCount)
}

func (s *Scheduler) runReport(source string) {
	if _, err := s.runner.Report(context.Background(), source, importer.TriggerCron); err != nil {
		log.Printf("Scheduler: %s report did not complete: %v", source, err)
	}
}
