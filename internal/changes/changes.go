// Package changes decides what a feed record needs compared to what is stored.
package changes

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"realty-feed-sync/internal/feed"
)

// Decision is the action a record calls for.
type Decision string

const (
	New                 Decision = "NEW"
	SkipUnchanged       Decision = "SKIP_UNCHANGED"
	UpdateText          Decision = "UPDATE_TEXT"
	UpdateTextAndImages Decision = "UPDATE_TEXT_AND_IMAGES"
	BackfillHashOnly    Decision = "BACKFILL_HASH_ONLY"
)

// Hashes are the stored change-detection fingerprints of a listing.
type Hashes struct {
	Text  string
	Image string
}

// Empty reports whether neither hash was ever stored.
func (h Hashes) Empty() bool {
	return h.Text == "" && h.Image == ""
}

// Classify compares the incoming hashes with the stored ones.
// A nil existing means the record is not stored yet.
func Classify(existing *Hashes, text, image string) Decision {
	switch {
	case existing == nil:
		return New
	case existing.Empty():
		// Listings created before hashes were tracked adopt the current
		// values without being rewritten.
		return BackfillHashOnly
	case existing.Text == text && existing.Image == image:
		return SkipUnchanged
	case existing.Image != image:
		return UpdateTextAndImages
	default:
		return UpdateText
	}
}

// ImagesChanged reports whether d requires the media to be replaced.
func (d Decision) ImagesChanged() bool {
	return d == New || d == UpdateTextAndImages
}

// Writes reports whether d leads to a listing write.
func (d Decision) Writes() bool {
	return d == New || d == UpdateText || d == UpdateTextAndImages
}

// Compute returns the hashes of rec. Feed-supplied hashes are used as they
// are; feeds without them get md5 fingerprints of the content.
func Compute(rec feed.Record) Hashes {
	if rec.HasHashes() {
		return Hashes{Text: rec.TextHash, Image: rec.ImageHash}
	}
	text := strings.Join([]string{
		rec.Title, rec.Description, rec.Price, rec.Currency, rec.CostType,
		rec.OfferType, rec.PropertyType, rec.City, rec.Region, rec.Street, rec.House,
		rec.Rooms, rec.Floor, rec.Floors, rec.LivingArea, rec.TotalArea,
		rec.FixedPhone, rec.Phone, rec.Email, rec.OwnerName, rec.OwnerType,
	}, "\x1f")
	return Hashes{
		Text:  digest(text),
		Image: digest(strings.Join(rec.Photos, "\x1f")),
	}
}

func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
