package search

import (
	"context"
	"errors"
	"testing"

	"regattalog/api/internal/store"
)

type fakeFallback struct {
	searchFn func(context.Context, string, int) ([]store.RegattaSummary, error)
}

func (f *fakeFallback) SearchRegattas(ctx context.Context, query string, limit int) ([]store.RegattaSummary, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, query, limit)
	}
	return nil, nil
}

func TestSearchFallsBackToStore(t *testing.T) {
	fb := &fakeFallback{
		searchFn: func(_ context.Context, query string, limit int) ([]store.RegattaSummary, error) {
			if query != "laser" {
				t.Errorf("query not passed through: %q", query)
			}
			return []store.RegattaSummary{
				{ID: "rg_1", Name: "Spring Cup", Venue: "Kiel"},
			}, nil
		},
	}
	svc := NewService(nil, fb)

	response := svc.Search(context.Background(), Query{Text: "laser"})
	if len(response.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(response.Results))
	}
	hit := response.Results[0]
	if hit.Type != ResultRegatta || hit.ID != "rg_1" || hit.Title != "Spring Cup" || hit.Snippet != "Kiel" {
		t.Errorf("unexpected hit %+v", hit)
	}
}

func TestSearchFallbackIgnoresEntryFilter(t *testing.T) {
	fb := &fakeFallback{
		searchFn: func(context.Context, string, int) ([]store.RegattaSummary, error) {
			return []store.RegattaSummary{{ID: "rg_1", Name: "Spring Cup"}}, nil
		},
	}
	svc := NewService(nil, fb)

	response := svc.Search(context.Background(), Query{Text: "GER 101", FilterType: ResultEntry})
	if len(response.Results) != 0 {
		t.Errorf("entry filter should yield nothing from the regatta fallback, got %+v", response.Results)
	}
}

func TestSearchFallbackErrorYieldsEmptyResponse(t *testing.T) {
	fb := &fakeFallback{
		searchFn: func(context.Context, string, int) ([]store.RegattaSummary, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewService(nil, fb)

	response := svc.Search(context.Background(), Query{Text: "laser"})
	if response.Results == nil || len(response.Results) != 0 {
		t.Errorf("expected empty non-nil results, got %+v", response.Results)
	}
	if response.Query != "laser" {
		t.Errorf("query echo lost: %q", response.Query)
	}
}
