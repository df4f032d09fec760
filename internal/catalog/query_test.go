package catalog

import (
	"testing"
	"time"

	"github.com/pybroo/pybroo/internal/models"
)

func sampleResources() []models.Resource {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id int64, title, author, category string, rating float64, ageDays int) models.Resource {
		date := base.AddDate(0, 0, -ageDays)
		return models.Resource{
			ID:               id,
			Title:            title,
			Description:      "Long enough description for the " + title + " entry.",
			Author:           author,
			CategoryID:       category,
			Date:             date,
			UpdatedTimestamp: date.UnixMilli(),
			Rating:           rating,
		}
	}
	return []models.Resource{
		mk(5, "Zephyr Theme", "carol", "wordpress", 4.5, 0),
		mk(4, "auction house", "alice", "minecraft", 3.0, 1),
		mk(3, "Backup Manager", "bob", "minecraft", 5.0, 2),
		mk(2, "Analytics Suite", "alice", "whmcs", 2.0, 3),
		mk(1, "economy plugin", "dave", "minecraft", 4.0, 4),
	}
}

func pageIDs(p models.CatalogPage) []int64 {
	ids := make([]int64, 0, len(p.Page))
	for _, r := range p.Page {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestQuery_DefaultSortNewestFirst(t *testing.T) {
	page := Query(sampleResources(), models.CatalogQuery{})
	want := []int64{5, 4, 3, 2, 1}
	got := pageIDs(page)
	if len(got) != len(want) {
		t.Fatalf("expected %d resources, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if page.TotalCount != 5 || page.TotalPages != 1 {
		t.Fatalf("expected 5 resources on 1 page, got count=%d pages=%d", page.TotalCount, page.TotalPages)
	}
}

func TestQuery_TextFilterCaseInsensitive(t *testing.T) {
	resources := sampleResources()

	// Title match.
	page := Query(resources, models.CatalogQuery{SearchText: "BACKUP"})
	if page.TotalCount != 1 || page.Page[0].ID != 3 {
		t.Fatalf("expected backup manager only, got %v", pageIDs(page))
	}

	// Author match.
	page = Query(resources, models.CatalogQuery{SearchText: "Alice"})
	if page.TotalCount != 2 {
		t.Fatalf("expected 2 resources by alice, got %v", pageIDs(page))
	}

	// Description match.
	page = Query(resources, models.CatalogQuery{SearchText: "zephyr theme entry"})
	if page.TotalCount != 1 || page.Page[0].ID != 5 {
		t.Fatalf("expected description match, got %v", pageIDs(page))
	}

	page = Query(resources, models.CatalogQuery{SearchText: "no such thing"})
	if page.TotalCount != 0 || page.TotalPages != 0 {
		t.Fatalf("expected empty result, got count=%d pages=%d", page.TotalCount, page.TotalPages)
	}
}

func TestQuery_CategoryFilterCombinesWithText(t *testing.T) {
	resources := sampleResources()

	page := Query(resources, models.CatalogQuery{CategoryID: "minecraft"})
	if page.TotalCount != 3 {
		t.Fatalf("expected 3 minecraft resources, got %v", pageIDs(page))
	}

	page = Query(resources, models.CatalogQuery{CategoryID: "minecraft", SearchText: "alice"})
	if page.TotalCount != 1 || page.Page[0].ID != 4 {
		t.Fatalf("expected the one minecraft resource by alice, got %v", pageIDs(page))
	}
}

func TestQuery_SortTitleIgnoresCase(t *testing.T) {
	page := Query(sampleResources(), models.CatalogQuery{SortKey: SortTitle})
	want := []int64{2, 4, 3, 1, 5}
	got := pageIDs(page)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected title order %v, got %v", want, got)
		}
	}
}

func TestQuery_SortRatingDescending(t *testing.T) {
	page := Query(sampleResources(), models.CatalogQuery{SortKey: SortRating})
	got := pageIDs(page)
	if got[0] != 3 || got[len(got)-1] != 2 {
		t.Fatalf("expected rating order best to worst, got %v", got)
	}
	for i := 1; i < len(page.Page); i++ {
		if page.Page[i].Rating > page.Page[i-1].Rating {
			t.Fatalf("ratings not descending: %v", got)
		}
	}
}

func TestQuery_Pagination(t *testing.T) {
	// Seven resources fill one full page plus one overflow entry.
	resources := make([]models.Resource, 0, 7)
	for i := 7; i >= 1; i-- {
		resources = append(resources, models.Resource{
			ID:               int64(i),
			Title:            "Resource",
			UpdatedTimestamp: int64(i),
		})
	}

	first := Query(resources, models.CatalogQuery{PageNumber: 1})
	if len(first.Page) != PageSize || first.TotalPages != 2 || first.TotalCount != 7 {
		t.Fatalf("unexpected first page: len=%d pages=%d count=%d", len(first.Page), first.TotalPages, first.TotalCount)
	}

	second := Query(resources, models.CatalogQuery{PageNumber: 2})
	if len(second.Page) != 1 || second.Page[0].ID != 1 {
		t.Fatalf("unexpected second page: %v", pageIDs(second))
	}

	// Pages one and two together cover every resource exactly once.
	seen := make(map[int64]bool)
	for _, r := range append(first.Page, second.Page...) {
		if seen[r.ID] {
			t.Fatalf("resource %d appears on two pages", r.ID)
		}
		seen[r.ID] = true
	}
	if len(seen) != 7 {
		t.Fatalf("expected all 7 resources across pages, got %d", len(seen))
	}

	if out := Query(resources, models.CatalogQuery{PageNumber: 3}); len(out.Page) != 0 {
		t.Fatalf("expected empty out-of-range page, got %v", pageIDs(out))
	}
	if out := Query(resources, models.CatalogQuery{PageNumber: 0}); len(out.Page) != PageSize {
		t.Fatalf("expected page 0 to behave as page 1, got %d entries", len(out.Page))
	}
	if out := Query(resources, models.CatalogQuery{PageNumber: -2}); len(out.Page) != 0 {
		t.Fatalf("expected empty page for negative page number, got %v", pageIDs(out))
	}
}

func TestQuery_EmptyCatalog(t *testing.T) {
	page := Query(nil, models.CatalogQuery{SearchText: "anything"})
	if len(page.Page) != 0 || page.TotalCount != 0 || page.TotalPages != 0 {
		t.Fatalf("expected empty page for empty catalog, got %+v", page)
	}
}

func TestQuery_DoesNotMutateInput(t *testing.T) {
	resources := sampleResources()
	before := pageIDs(models.CatalogPage{Page: resources})

	Query(resources, models.CatalogQuery{SortKey: SortTitle})
	Query(resources, models.CatalogQuery{SortKey: SortRating})

	after := pageIDs(models.CatalogPage{Page: resources})
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("input slice mutated: %v -> %v", before, after)
		}
	}
}

func TestQuery_IsDeterministic(t *testing.T) {
	resources := sampleResources()
	q := models.CatalogQuery{SearchText: "a", SortKey: SortRating, PageNumber: 1}

	first := Query(resources, q)
	second := Query(resources, q)
	if len(first.Page) != len(second.Page) {
		t.Fatalf("repeated query changed size: %d vs %d", len(first.Page), len(second.Page))
	}
	for i := range first.Page {
		if first.Page[i].ID != second.Page[i].ID {
			t.Fatalf("repeated query changed order: %v vs %v", pageIDs(first), pageIDs(second))
		}
	}
}
