package search

import (
	"context"
	"log"

	"regattalog/api/internal/store"
)

// fallbackStore is the subset of the store used when Meilisearch is down.
type fallbackStore interface {
	SearchRegattas(ctx context.Context, query string, limit int) ([]store.RegattaSummary, error)
}

// Service is the facade that tries Meilisearch first and falls back to
// an ILIKE scan over the relational store.
type Service struct {
	meili *Meili
	db    fallbackStore
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, db fallbackStore) *Service {
	return &Service{meili: meili, db: db}
}

// Search tries Meilisearch if healthy, otherwise falls back to the store.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to store: %v", err)
	}

	summaries, err := s.db.SearchRegattas(ctx, q.Text, q.Limit)
	if err != nil {
		log.Printf("search: store fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	results := make([]Result, 0, len(summaries))
	for _, summary := range summaries {
		if q.FilterType != "" && q.FilterType != ResultRegatta {
			continue
		}
		results = append(results, Result{
			Type:      ResultRegatta,
			ID:        summary.ID,
			RegattaID: summary.ID,
			Title:     summary.Name,
			Snippet:   summary.Venue,
		})
	}
	return Response{Results: results, Total: len(results), Query: q.Text}
}

// IndexRegatta indexes a regatta and its entries (fire-and-forget).
func (s *Service) IndexRegatta(regatta store.Regatta, entries []store.Entry) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := regattaRecord(regatta)
	entryRecords := make([]EntryRecord, 0, len(entries))
	for _, entry := range entries {
		entryRecords = append(entryRecords, entryRecord(entry))
	}
	go func() {
		if err := s.meili.IndexRegatta(record); err != nil {
			log.Printf("search: index regatta %s: %v", record.ID, err)
		}
		if err := s.meili.IndexEntries(entryRecords); err != nil {
			log.Printf("search: index entries for %s: %v", record.ID, err)
		}
	}()
}

func regattaRecord(r store.Regatta) RegattaRecord {
	record := RegattaRecord{
		ID:            r.ID,
		Name:          r.Name,
		Venue:         r.Venue,
		Organizer:     r.Organizer,
		BoatClass:     r.BoatClass,
		ScoringSystem: r.ScoringSystem,
	}
	if r.StartDate != nil {
		record.StartDate = r.StartDate.Format("2006-01-02")
	}
	return record
}

func entryRecord(e store.Entry) EntryRecord {
	return EntryRecord{
		ID:         e.ID,
		RegattaID:  e.RegattaID,
		SailNumber: e.SailNumber,
		HelmName:   e.HelmName,
		CrewNames:  e.CrewNames,
		Club:       e.Club,
		FleetName:  e.FleetName,
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
