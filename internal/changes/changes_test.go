package changes

import (
	"testing"

	"realty-feed-sync/internal/feed"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		existing *Hashes
		text     string
		image    string
		want     Decision
	}{
		{"not stored", nil, "t", "i", New},
		{"no stored hashes", &Hashes{}, "t", "i", BackfillHashOnly},
		{"same", &Hashes{Text: "t", Image: "i"}, "t", "i", SkipUnchanged},
		{"text changed", &Hashes{Text: "old", Image: "i"}, "t", "i", UpdateText},
		{"image changed", &Hashes{Text: "t", Image: "old"}, "t", "i", UpdateTextAndImages},
		{"both changed", &Hashes{Text: "old", Image: "old"}, "t", "i", UpdateTextAndImages},
		{"only text stored", &Hashes{Text: "t"}, "t", "i", UpdateTextAndImages},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.existing, tt.text, tt.image); got != tt.want {
				t.Errorf("got %v; want %v", got, tt.want)
			}
		})
	}
}

func TestDecisionFlags(t *testing.T) {
	if !New.ImagesChanged() || !UpdateTextAndImages.ImagesChanged() {
		t.Error("New and UpdateTextAndImages must replace media")
	}
	if UpdateText.ImagesChanged() || BackfillHashOnly.ImagesChanged() {
		t.Error("UpdateText and BackfillHashOnly must keep media")
	}
	if SkipUnchanged.Writes() || BackfillHashOnly.Writes() {
		t.Error("SkipUnchanged and BackfillHashOnly must not write")
	}
}

func TestComputeUsesFeedHashes(t *testing.T) {
	rec := feed.Record{TextHash: "abc", ImageHash: "def", Title: "x"}
	got := Compute(rec)
	if got.Text != "abc" || got.Image != "def" {
		t.Errorf("got %+v", got)
	}
}

func TestComputeFingerprints(t *testing.T) {
	a := feed.Record{Title: "flat", Photos: []string{"1.jpg"}}
	b := a
	b.Title = "house"
	c := a
	c.Photos = []string{"2.jpg"}

	ha, hb, hc := Compute(a), Compute(b), Compute(c)
	if len(ha.Text) != 32 {
		t.Fatalf("text hash %q is not md5 hex", ha.Text)
	}
	if ha.Text == hb.Text || ha.Image != hb.Image {
		t.Errorf("title change: %+v vs %+v", ha, hb)
	}
	if ha.Text != hc.Text || ha.Image == hc.Image {
		t.Errorf("photo change: %+v vs %+v", ha, hc)
	}
	if Compute(a) != ha {
		t.Error("Compute is not deterministic")
	}
}
