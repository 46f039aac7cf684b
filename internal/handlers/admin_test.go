package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"realty-feed-sync/internal/config"
	"realty-feed-sync/internal/feed"
	"realty-feed-sync/internal/importer"
	"realty-feed-sync/internal/models"
	"realty-feed-sync/internal/ratelimit"
	"realty-feed-sync/internal/report"
	"realty-feed-sync/internal/scheduler"
	"realty-feed-sync/internal/state"
	"realty-feed-sync/internal/sweeper"
)

const testToken = "secret"

type fakeRepo struct{}

func (fakeRepo) ListRuns(_ context.Context, source string, limit int) ([]models.SyncRun, error) {
	return []models.SyncRun{{ID: "r1", Source: source, Kind: models.RunKindSync}}, nil
}

func (fakeRepo) LastRun(_ context.Context, source string, _ models.RunKind) (*models.SyncRun, error) {
	return &models.SyncRun{ID: "last", Source: source}, nil
}

func (fakeRepo) GetRecentDeleteLogs(_ context.Context, _ string, _ int) ([]models.DeleteLog, error) {
	return []models.DeleteLog{{ListingID: 1, Reason: models.DeleteReasonAbsentFromFeed}}, nil
}

func (fakeRepo) GetDeleteStats(_ context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"total_deleted": 1}, nil
}

func (fakeRepo) CountListings(_ context.Context) (map[string]int64, error) {
	return map[string]int64{"aspo": 42}, nil
}

type fakeRunner struct {
	syncErr    error
	sweepDry   *bool
	sweepCalls int
}

func (f *fakeRunner) Feeds() []config.FeedConfig {
	return []config.FeedConfig{{Name: "aspo", URL: "https://feed", Schema: "realty", Mode: config.ModeUpsert}}
}

func (f *fakeRunner) Sync(_ context.Context, source string, trigger importer.Trigger) (*importer.Summary, error) {
	if source != "aspo" {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrUnknownSource, source)
	}
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return &importer.Summary{Source: source, Trigger: trigger, Imported: 2, Inspected: 5}, nil
}

func (f *fakeRunner) Sweep(_ context.Context, _ string, _ importer.Trigger, dryRun bool) (*sweeper.SweepResult, error) {
	f.sweepCalls++
	f.sweepDry = &dryRun
	return &sweeper.SweepResult{DryRun: dryRun}, nil
}

func (f *fakeRunner) Report(_ context.Context, _ string, _ importer.Trigger) (*report.Result, error) {
	return &report.Result{Path: "reports/a.xml", Objects: 3}, nil
}

func newTestRouter(runner *fakeRunner, limiter *ratelimit.RateLimiter) (*gin.Engine, *state.MemoryStore) {
	gin.SetMode(gin.TestMode)
	st := state.NewMemoryStore()
	r := gin.New()
	NewAdminHandler(fakeRepo{}, runner, st, nil, limiter, testToken).RegisterRoutes(r)
	return r, st
}

func do(r http.Handler, method, path, body string, token bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token {
		req.Header.Set(TokenHeader, testToken)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthNeedsNoToken(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{}, nil)
	if w := do(r, http.MethodGet, "/api/admin/health", "", false); w.Code != http.StatusOK {
		t.Errorf("got %d; want %d", w.Code, http.StatusOK)
	}
}

func TestRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{}, nil)
	for _, path := range []string{"/api/admin/feeds", "/api/admin/runs", "/api/admin/deletions"} {
		if w := do(r, http.MethodGet, path, "", false); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: got %d; want %d", path, w.Code, http.StatusUnauthorized)
		}
	}
	if w := do(r, http.MethodPost, "/api/admin/feeds/aspo/sync", "", false); w.Code != http.StatusUnauthorized {
		t.Errorf("sync: got %d; want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestTriggerSync(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{}, nil)
	w := do(r, http.MethodPost, "/api/admin/feeds/aspo/sync", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d; want %d: %s", w.Code, http.StatusOK, w.Body)
	}
	var summary importer.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Imported != 2 || summary.Trigger != importer.TriggerManual {
		t.Errorf("got %+v", summary)
	}
}

func TestTriggerSyncErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		err    error
		want   int
	}{
		{"unknown source", "nope", nil, http.StatusNotFound},
		{"already running", "aspo", importer.ErrAlreadyRunning, http.StatusConflict},
		{"feed down", "aspo", fmt.Errorf("failed to fetch feed: %w", &feed.NetworkError{URL: "x", StatusCode: 500}), http.StatusBadGateway},
		{"empty feed", "aspo", fmt.Errorf("failed to fetch feed: %w", feed.ErrNoRecords), http.StatusBadGateway},
		{"other", "aspo", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(&fakeRunner{syncErr: tt.err}, nil)
			if w := do(r, http.MethodPost, "/api/admin/feeds/"+tt.source+"/sync", "", true); w.Code != tt.want {
				t.Errorf("got %d; want %d", w.Code, tt.want)
			}
		})
	}
}

func TestTriggerSweepDefaultsToDryRun(t *testing.T) {
	runner := &fakeRunner{}
	r, _ := newTestRouter(runner, nil)

	if w := do(r, http.MethodPost, "/api/admin/feeds/aspo/sweep", "", true); w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body)
	}
	if runner.sweepDry == nil || !*runner.sweepDry {
		t.Error("sweep without body must be a dry run")
	}

	if w := do(r, http.MethodPost, "/api/admin/feeds/aspo/sweep", `{"dry_run":false}`, true); w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body)
	}
	if *runner.sweepDry {
		t.Error("dry_run=false was ignored")
	}
}

func TestTriggersAreRateLimited(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{}, ratelimit.NewRateLimiter(1, 0))
	if w := do(r, http.MethodPost, "/api/admin/feeds/aspo/report", "", true); w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/admin/feeds/aspo/report", "", true); w.Code != http.StatusTooManyRequests {
		t.Errorf("got %d; want %d", w.Code, http.StatusTooManyRequests)
	}
	if w := do(r, http.MethodPost, "/api/admin/feeds/aspo/sync", "", true); w.Code != http.StatusOK {
		t.Errorf("sync has its own window: got %d", w.Code)
	}
}

func TestGetFeeds(t *testing.T) {
	r, st := newTestRouter(&fakeRunner{}, nil)
	ctx := context.Background()
	st.Set(ctx, state.OffsetKey("aspo"), "60")
	st.SetNX(ctx, state.LockKey("aspo"), "token", 0)

	w := do(r, http.MethodGet, "/api/admin/feeds", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
	var resp struct {
		Feeds []struct {
			Name     string `json:"name"`
			Offset   int    `json:"offset"`
			Running  bool   `json:"running"`
			Listings int64  `json:"listings"`
		} `json:"feeds"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Feeds) != 1 {
		t.Fatalf("feeds = %+v", resp.Feeds)
	}
	f := resp.Feeds[0]
	if f.Name != "aspo" || f.Offset != 60 || !f.Running || f.Listings != 42 {
		t.Errorf("got %+v", f)
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{}, nil)
	if w := do(r, http.MethodGet, "/api/admin/listings/search?q=flat", "", true); w.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d; want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestMissingTokenConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewAdminHandler(fakeRepo{}, &fakeRunner{}, state.NewMemoryStore(), nil, nil, "").RegisterRoutes(r)
	if w := do(r, http.MethodGet, "/api/admin/runs", "", true); w.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d; want %d", w.Code, http.StatusServiceUnavailable)
	}
}
