package sweeper

import (
	"context"
	"errors"
	"testing"

	"realty-feed-sync/internal/feed"
	"realty-feed-sync/internal/models"
	"realty-feed-sync/internal/state"
)

type fakeStore struct {
	listings  []models.Listing
	deleted   []uint
	logs      []models.DeleteLog
	deleteErr map[uint]error
}

func (f *fakeStore) ListSourceListings(_ context.Context, source string, authorID uint) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range f.listings {
		if l.Source == source && l.AuthorID == authorID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteListing(_ context.Context, l *models.Listing, entry *models.DeleteLog) error {
	if err := f.deleteErr[l.ID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, l.ID)
	f.logs = append(f.logs, *entry)
	return nil
}

type fakeMedia struct{ perListing int }

func (f *fakeMedia) DeleteAll(_ context.Context, _ *models.Listing) (int, error) {
	return f.perListing, nil
}

type fakeIndex struct{ deleted []uint }

func (f *fakeIndex) DeleteListing(_ context.Context, id uint) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeFeed struct{ doc *feed.Document }

func (f *fakeFeed) Fetch(_ context.Context, _ string, _ feed.Schema) (*feed.Document, error) {
	return f.doc, nil
}

func docWith(ids ...string) *feed.Document {
	doc := &feed.Document{}
	for _, id := range ids {
		doc.Records = append(doc.Records, feed.Record{ExternalID: id})
	}
	return doc
}

func stored() []models.Listing {
	return []models.Listing{
		{ID: 1, Source: "aspo", ExternalID: "A1", AuthorID: 34},
		{ID: 2, Source: "aspo", ExternalID: "A2", AuthorID: 34},
		{ID: 3, Source: "aspo", ExternalID: "A3", AuthorID: 34},
		{ID: 4, Source: "aspo", ExternalID: "A9", AuthorID: 7},
	}
}

func TestSweepDeletesOrphans(t *testing.T) {
	store := &fakeStore{listings: stored()}
	index := &fakeIndex{}
	s := NewService(store, &fakeMedia{perListing: 3}, index, &fakeFeed{doc: docWith("A1", "A3", "A3")}, state.NewMemoryStore())

	res, err := s.Sweep(context.Background(), SweepConfig{Source: "aspo", AuthorID: 34, MaxDeletionCount: 10})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.FeedCount != 2 || res.StoredCount != 3 || res.TargetCount != 1 {
		t.Errorf("got %+v", res)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 2 {
		t.Errorf("deleted = %v; want [2]", store.deleted)
	}
	if res.MediaDeleted != 3 || store.logs[0].MediaDeleted != 3 {
		t.Errorf("media deleted = %d", res.MediaDeleted)
	}
	if store.logs[0].Reason != models.DeleteReasonAbsentFromFeed {
		t.Errorf("reason = %q", store.logs[0].Reason)
	}
	if len(index.deleted) != 1 {
		t.Errorf("search deletions = %v", index.deleted)
	}
}

func TestSweepDryRun(t *testing.T) {
	store := &fakeStore{listings: stored()}
	s := NewService(store, &fakeMedia{}, nil, &fakeFeed{doc: docWith("A1")}, nil)

	res, err := s.Sweep(context.Background(), SweepConfig{Source: "aspo", AuthorID: 34, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedCount != 2 || len(store.deleted) != 0 {
		t.Errorf("dry run deleted %v (count %d)", store.deleted, res.DeletedCount)
	}
}

func TestSweepRefusesUnsafeFeeds(t *testing.T) {
	partial := docWith("A1")
	partial.Partial = true

	for name, doc := range map[string]*feed.Document{"empty": docWith(), "partial": partial} {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{listings: stored()}
			s := NewService(store, &fakeMedia{}, nil, &fakeFeed{doc: doc}, nil)
			_, err := s.Sweep(context.Background(), SweepConfig{Source: "aspo", AuthorID: 34})
			if !errors.Is(err, ErrUnsafeFeed) {
				t.Errorf("got %v; want %v", err, ErrUnsafeFeed)
			}
			if len(store.deleted) != 0 {
				t.Errorf("deleted %v", store.deleted)
			}
		})
	}
}

func TestSweepSafetyLimit(t *testing.T) {
	store := &fakeStore{listings: stored()}
	s := NewService(store, &fakeMedia{}, nil, &fakeFeed{doc: docWith("other")}, nil)

	if _, err := s.Sweep(context.Background(), SweepConfig{Source: "aspo", AuthorID: 34, MaxDeletionCount: 2}); err == nil {
		t.Fatal("expected safety check error")
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted %v", store.deleted)
	}
}

func TestSweepContinuesAfterItemError(t *testing.T) {
	store := &fakeStore{listings: stored(), deleteErr: map[uint]error{2: errors.New("locked row")}}
	s := NewService(store, &fakeMedia{}, nil, &fakeFeed{doc: docWith("A1")}, nil)

	res, err := s.Sweep(context.Background(), SweepConfig{Source: "aspo", AuthorID: 34})
	if err != nil {
		t.Fatal(err)
	}
	if res.ErrorCount != 1 || res.DeletedCount != 1 {
		t.Errorf("got %+v; want 1 error, 1 deleted", res)
	}
}

func TestSweepRespectsRunLock(t *testing.T) {
	locks := state.NewMemoryStore()
	ctx := context.Background()
	if _, err := state.AcquireLock(ctx, locks, state.LockKey("aspo"), 0); err != nil {
		t.Fatal(err)
	}
	s := NewService(&fakeStore{}, &fakeMedia{}, nil, &fakeFeed{doc: docWith("A1")}, locks)
	if _, err := s.Sweep(ctx, SweepConfig{Source: "aspo"}); !errors.Is(err, state.ErrLocked) {
		t.Errorf("got %v; want %v", err, state.ErrLocked)
	}
}

func TestSweepNegativeLimitIsUnbounded(t *testing.T) {
	store := &fakeStore{listings: stored()}
	s := NewService(store, &fakeMedia{}, nil, &fakeFeed{doc: docWith("other")}, nil)

	res, err := s.Sweep(context.Background(), SweepConfig{Source: "aspo", AuthorID: 34, MaxDeletionCount: -1})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.DeletedCount != 3 {
		t.Errorf("deleted %d; want 3", res.DeletedCount)
	}
}

func TestSweepParsedOfferFeed(t *testing.T) {
	body := `<realty-feed>
  <offer internal-id="A1"><area><value>40</value></area><price><value>1</value></price></offer>
  <offer internal-id="A3"><area><value>60</value></area><price><value>2</value></price></offer>
</realty-feed>`
	doc, err := feed.Parse([]byte(body), feed.SchemaOffer)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	store := &fakeStore{listings: stored()}
	s := NewService(store, &fakeMedia{}, nil, &fakeFeed{doc: doc}, nil)
	res, err := s.Sweep(context.Background(), SweepConfig{Source: "aspo", AuthorID: 34, Schema: feed.SchemaOffer})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.FeedCount != 2 || len(store.deleted) != 1 || store.deleted[0] != 2 {
		t.Errorf("feed count %d, deleted %v; want 2, [2]", res.FeedCount, store.deleted)
	}
}
