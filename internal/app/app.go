// Package app builds the shared object graph of the API server and the CLI.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"realty-feed-sync/internal/config"
	"realty-feed-sync/internal/database"
	"realty-feed-sync/internal/feed"
	"realty-feed-sync/internal/handlers"
	"realty-feed-sync/internal/importer"
	"realty-feed-sync/internal/logging"
	"realty-feed-sync/internal/mapper"
	"realty-feed-sync/internal/media"
	"realty-feed-sync/internal/models"
	"realty-feed-sync/internal/ratelimit"
	"realty-feed-sync/internal/rates"
	"realty-feed-sync/internal/report"
	"realty-feed-sync/internal/scheduler"
	"realty-feed-sync/internal/search"
	"realty-feed-sync/internal/state"
	"realty-feed-sync/internal/sweeper"
)

// sweepFetchTimeout bounds the full-feed download of a sweep
const sweepFetchTimeout = 2 * time.Minute

type indexer interface {
	IndexListing(ctx context.Context, l *models.Listing) error
	DeleteListing(ctx context.Context, id uint) error
}

// App holds the long-lived services
type App struct {
	Config *config.Config
	DB     *database.GormDB
	State  state.Store
	Search *search.SearchClient
	Runner *scheduler.Runner

	closers []func() error
}

// New connects to the database, state backend and search index, then
// builds one import engine per configured feed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	if err := db.InitSchema(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := a.openState(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var idx indexer = search.Noop{}
	if ms := cfg.Search.Meilisearch; ms.Host != "" {
		a.Search = search.NewSearchClient(ms.Host, ms.APIKey, ms.Index)
		if err := a.Search.InitIndex(); err != nil {
			log.Printf("Warning: Failed to initialize search index: %v", err)
		}
		idx = a.Search
	} else {
		log.Println("Search disabled (no Meilisearch host configured)")
	}

	rateCache := rates.NewCache(a.State, rates.Options{
		ProviderURL: cfg.Rates.ProviderURL,
		TTL:         cfg.Rates.GetTTL(),
		Timeout:     cfg.Rates.GetTimeout(),
		Fallback:    cfg.Rates.Fallback,
	}, logging.New(os.Stdout))

	sweeps := sweeper.NewService(db, media.NewSyncer(db, a.mediaConfig(), log.Default()), idx,
		feed.NewClient(sweepFetchTimeout, cfg.Media.UserAgent), a.State)

	var reporter scheduler.Reporter
	if sqlxDB, err := db.SQLX(); err != nil {
		log.Printf("Warning: Reports disabled: %v", err)
	} else {
		reporter = report.NewGenerator(sqlxDB, cfg.SiteURL)
	}

	a.Runner = scheduler.NewRunner(db, sweeps, reporter)

	var seeds []models.Term
	for _, f := range cfg.Feeds {
		tables, ok := mapper.TablesFor(f.Tables)
		if !ok {
			a.Close()
			return nil, fmt.Errorf("feed %q: unknown tables %q", f.Name, f.Tables)
		}
		tables = tables.WithOverrides(f.CategoryOverrides, f.CityOverrides, f.RegionOverrides)
		seeds = append(seeds, tables.Terms(cfg.TermNames)...)

		runLog, err := logging.Open(f.LogFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("feed %q: %w", f.Name, err)
		}
		a.closers = append(a.closers, runLog.Close)

		engine := importer.NewEngine(sourceFor(f, tables), importer.Deps{
			State:    a.State,
			Listings: db,
			Media:    media.NewSyncer(db, a.mediaConfig(), runLog),
			Index:    idx,
			Rates:    rateCache,
			Feed:     feed.NewClient(f.GetFetchTimeout(), cfg.Media.UserAgent),
		}, runLog)
		a.Runner.AddFeed(f, engine)
		log.Printf("Feed %s registered (%s, %s)", f.Name, f.Schema, f.Mode)
	}

	if err := db.EnsureTerms(ctx, seeds); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to seed terms: %w", err)
	}

	return a, nil
}

func (a *App) openState(ctx context.Context) error {
	sc := a.Config.State
	switch sc.Backend {
	case "redis":
		client, err := state.NewRedisClient(ctx, sc.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.State = state.NewRedisStore(client, sc.KeyPrefix)
	case "", "database":
		a.State = state.NewDBStore(a.DB.DB(), sc.KeyPrefix)
	case "memory":
		a.State = state.NewMemoryStore()
	default:
		return fmt.Errorf("unknown state backend %q", sc.Backend)
	}
	log.Printf("State backend: %s", sc.Backend)
	return nil
}

func (a *App) mediaConfig() media.Config {
	m := a.Config.Media
	return media.Config{
		UploadDir:       m.UploadDir,
		MaxPhotos:       m.MaxPhotos,
		ConvertWebP:     m.ConvertWebP,
		DownloadTimeout: m.GetDownloadTimeout(),
		RequestDelay:    m.GetRequestDelay(),
		UserAgent:       m.UserAgent,
	}
}

func sourceFor(f config.FeedConfig, tables mapper.Tables) importer.Source {
	schema := feed.Schema(f.Schema)
	return importer.Source{
		Name:         f.Name,
		URL:          f.URL,
		Schema:       schema,
		InsertOnly:   f.InsertOnly(),
		AuthorID:     f.AuthorID,
		ParentID:     f.ParentID,
		SuccessLimit: f.SuccessLimit,
		MaxInspected: f.MaxInspected,
		LockTTL:      f.GetLockTTL(),
		Tables:       tables,
		Mapping: mapper.Options{
			Schema:        schema,
			FixedCategory: f.FixedCategory,
			RoomSuffix:    f.RoomSuffix,
			Country:       f.Country,
			Excerpt:       f.Excerpt,
		},
	}
}

// AdminHandler builds the admin API handler
func (a *App) AdminHandler() *handlers.AdminHandler {
	ac := a.Config.Admin
	limiter := ratelimit.NewRateLimiter(ac.RequestsPerMinute, ac.RequestsPerHour)

	var searcher handlers.Searcher
	if a.Search != nil {
		searcher = a.Search
	}
	return handlers.NewAdminHandler(a.DB, a.Runner, a.State, searcher, limiter, ac.Token)
}

// Close releases every connection and log file, in reverse order of opening
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("Warning: close failed: %v", err)
		}
	}
	a.closers = nil
}
