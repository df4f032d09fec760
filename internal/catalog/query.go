package catalog

import (
	"sort"
	"strings"

	"github.com/pybroo/pybroo/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// PageSize is the fixed number of resources per catalog page.
const PageSize = 6

const (
	SortRating  = "rating"
	SortTitle   = "title"
	SortDate    = "date"
	SortUpdated = "updated"
)

// Query computes one filtered, sorted, paged view of a catalog snapshot.
// It is a pure function: the same snapshot and descriptor always produce
// the same page, and the input slice is never mutated. The UI re-invokes
// it on every keystroke.
func Query(resources []models.Resource, q models.CatalogQuery) models.CatalogPage {
	filtered := make([]models.Resource, 0, len(resources))

	term := strings.ToLower(strings.TrimSpace(q.SearchText))
	for _, r := range resources {
		if term != "" && !matchesText(r, term) {
			continue
		}
		if q.CategoryID != "" && r.CategoryID != q.CategoryID {
			continue
		}
		filtered = append(filtered, r)
	}

	sortResources(filtered, q.SortKey)

	totalCount := len(filtered)
	totalPages := (totalCount + PageSize - 1) / PageSize

	page := q.PageNumber
	if page == 0 {
		page = 1
	}

	slice := make([]models.Resource, 0, PageSize)
	if page >= 1 {
		start := (page - 1) * PageSize
		if start < totalCount {
			end := start + PageSize
			if end > totalCount {
				end = totalCount
			}
			slice = append(slice, filtered[start:end]...)
		}
	}

	return models.CatalogPage{
		Page:       slice,
		TotalPages: totalPages,
		TotalCount: totalCount,
	}
}

// matchesText reports a case-insensitive substring match against the
// title, description or author.
func matchesText(r models.Resource, term string) bool {
	return strings.Contains(strings.ToLower(r.Title), term) ||
		strings.Contains(strings.ToLower(r.Description), term) ||
		strings.Contains(strings.ToLower(r.Author), term)
}

// sortResources orders the slice in place. All sorts are stable, so ties
// keep insertion order (newest first).
func sortResources(resources []models.Resource, sortKey string) {
	switch sortKey {
	case SortRating:
		sort.SliceStable(resources, func(i, j int) bool {
			return resources[i].Rating > resources[j].Rating
		})
	case SortTitle:
		// Collators carry internal buffers, so build one per call to keep
		// Query reentrant.
		col := collate.New(language.English, collate.IgnoreCase)
		sort.SliceStable(resources, func(i, j int) bool {
			return col.CompareString(resources[i].Title, resources[j].Title) < 0
		})
	case SortDate:
		sort.SliceStable(resources, func(i, j int) bool {
			return resources[i].Date.After(resources[j].Date)
		})
	case SortUpdated:
		fallthrough
	default:
		sort.SliceStable(resources, func(i, j int) bool {
			return resources[i].UpdatedTimestamp > resources[j].UpdatedTimestamp
		})
	}
}
