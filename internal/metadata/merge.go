package metadata

import (
	"github.com/Iwan-Teague/Rustyfin/internal/models"
)

// Field names accepted by the lock endpoints and honored by Merge.
const (
	FieldTitle           = "title"
	FieldSortTitle       = "sort_title"
	FieldYear            = "year"
	FieldOverview        = "overview"
	FieldTagline         = "tagline"
	FieldPremiereDate    = "premiere_date"
	FieldCommunityRating = "community_rating"
	FieldPoster          = "poster_url"
	FieldBackdrop        = "backdrop_url"
)

// KnownField reports whether a field name can be locked.
func KnownField(name string) bool {
	switch name {
	case FieldTitle, FieldSortTitle, FieldYear, FieldOverview, FieldTagline,
		FieldPremiereDate, FieldCommunityRating, FieldPoster, FieldBackdrop:
		return true
	}
	return false
}

// Merge applies provider metadata onto an item, skipping locked fields and
// fields the provider has nothing for. The item is mutated in place; the
// returned list names the fields that changed.
func Merge(item *models.Item, meta *ItemMetadata, lockedFields []string) []string {
	locked := make(map[string]bool, len(lockedFields))
	for _, f := range lockedFields {
		locked[f] = true
	}

	var updated []string

	if meta.Title != nil && !locked[FieldTitle] && item.Title != *meta.Title {
		item.Title = *meta.Title
		updated = append(updated, FieldTitle)
	}
	if meta.SortTitle != nil && !locked[FieldSortTitle] && !strEq(item.SortTitle, meta.SortTitle) {
		item.SortTitle = meta.SortTitle
		updated = append(updated, FieldSortTitle)
	}
	if meta.Year != nil && !locked[FieldYear] && !intEq(item.Year, meta.Year) {
		item.Year = meta.Year
		updated = append(updated, FieldYear)
	}
	if meta.Overview != nil && !locked[FieldOverview] && !strEq(item.Overview, meta.Overview) {
		item.Overview = meta.Overview
		updated = append(updated, FieldOverview)
	}
	if meta.Tagline != nil && !locked[FieldTagline] && !strEq(item.Tagline, meta.Tagline) {
		item.Tagline = meta.Tagline
		updated = append(updated, FieldTagline)
	}
	if meta.PremiereDate != nil && !locked[FieldPremiereDate] && !strEq(item.PremiereDate, meta.PremiereDate) {
		item.PremiereDate = meta.PremiereDate
		updated = append(updated, FieldPremiereDate)
	}
	if meta.CommunityRating != nil && !locked[FieldCommunityRating] && !floatEq(item.CommunityRating, meta.CommunityRating) {
		item.CommunityRating = meta.CommunityRating
		updated = append(updated, FieldCommunityRating)
	}
	if meta.PosterURL != nil && !locked[FieldPoster] && !strEq(item.PosterURL, meta.PosterURL) {
		item.PosterURL = meta.PosterURL
		updated = append(updated, FieldPoster)
	}
	if meta.BackdropURL != nil && !locked[FieldBackdrop] && !strEq(item.BackdropURL, meta.BackdropURL) {
		item.BackdropURL = meta.BackdropURL
		updated = append(updated, FieldBackdrop)
	}

	return updated
}

func strEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
