package exporter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"regattalog/api/internal/blw"
	"regattalog/api/internal/store"
)

type fakeStore struct {
	bundle store.RegattaBundle
	err    error
}

func (f *fakeStore) GetRegattaWithChildren(context.Context, string) (store.RegattaBundle, error) {
	return f.bundle, f.err
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func importedBundle(t *testing.T) store.RegattaBundle {
	t.Helper()
	snapshot := &blw.Document{
		Series:  blw.SeriesConfig{Name: "Baltic Series", Organizer: "KYC"},
		Event:   blw.EventConfig{Name: "Spring Cup"},
		Scoring: blw.ScoringConfig{System: blw.ScoringLowPoint, CodeValues: blw.DefaultCodeValues()},
		Unknown: []blw.Section{{
			Type: blw.SectionUnknown, Name: "PrizeTable",
			RawFields: map[string]string{"first": "Glass trophy"},
		}},
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	return store.RegattaBundle{
		Regatta: store.Regatta{
			ID:             "rg_1",
			Name:           "Spring Cup (amended)",
			Venue:          "Kiel",
			BoatClass:      "ILCA 7",
			StartDate:      date(2024, 3, 21),
			Notes:          "Entry fee includes dinner.",
			ScoringSystem:  "low-point",
			CodeValues:     map[string]string{"DNF": "n+1"},
			DiscardSteps:   []store.DiscardStep{{Races: 5, Discards: 1}},
			SourceSnapshot: raw,
			UpdatedAt:      time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
		},
		Entries: []store.Entry{
			{ID: "en_a", RegattaID: "rg_1", SailNumber: "GER 101", HelmName: "Anna Schmidt", FleetName: "Gold", Notes: "charter boat"},
			{ID: "en_b", RegattaID: "rg_1", SailNumber: "DEN 202", HelmName: "Lars Jensen", FleetName: "Gold"},
		},
		Races: []store.Race{
			{ID: "rc_a", RegattaID: "rg_1", Name: "Race 1", Rank: 1, Status: "sailed", Date: date(2024, 3, 21)},
			{ID: "rc_b", RegattaID: "rg_1", Name: "Race 2", Rank: 2, Status: "scheduled"},
		},
		Results: []store.Result{
			{ID: "rs_1", RaceID: "rc_a", EntryID: "en_a", Position: intPtr(1)},
			{ID: "rs_2", RaceID: "rc_a", EntryID: "en_b", Position: intPtr(2)},
			{ID: "rs_3", RaceID: "rc_b", EntryID: "en_a", StatusCode: "XYZ"},
		},
	}
}

func intPtr(n int) *int { return &n }

func TestExportOverlaysLiveEdits(t *testing.T) {
	service := NewService(&fakeStore{bundle: importedBundle(t)})
	result, err := service.Export(context.Background(), "rg_1", Options{IncludeAllRaces: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(result.Text, "name=Spring Cup (amended)") {
		t.Errorf("live regatta name not overlaid:\n%s", result.Text)
	}
	// Snapshot-only fields survive.
	if !strings.Contains(result.Text, "name=Baltic Series") {
		t.Errorf("series section from snapshot lost:\n%s", result.Text)
	}
	if !strings.Contains(result.Text, "[PrizeTable]") || !strings.Contains(result.Text, "first=Glass trophy") {
		t.Errorf("unknown section from snapshot lost:\n%s", result.Text)
	}
}

func TestExportRenumbersContiguously(t *testing.T) {
	service := NewService(&fakeStore{bundle: importedBundle(t)})
	doc, _, err := service.Build(context.Background(), "rg_1", Options{IncludeAllRaces: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i, c := range doc.Competitors {
		if c.SourceID != i+1 {
			t.Errorf("competitor %d has id %d", i, c.SourceID)
		}
	}
	for i, r := range doc.Races {
		if r.SourceID != i+1 {
			t.Errorf("race %d has id %d", i, r.SourceID)
		}
	}
	for i, r := range doc.Results {
		if r.SourceID != i+1 {
			t.Errorf("result %d has id %d", i, r.SourceID)
		}
	}
	if doc.Results[0].RaceRef != 1 || doc.Results[0].CompetitorRef != 1 {
		t.Errorf("result refs not remapped: %+v", doc.Results[0])
	}
}

func TestExportCompletedOnlyDropsRaceAndResults(t *testing.T) {
	service := NewService(&fakeStore{bundle: importedBundle(t)})
	doc, _, err := service.Build(context.Background(), "rg_1", Options{IncludeAllRaces: false})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(doc.Races) != 1 {
		t.Fatalf("expected 1 completed race, got %d", len(doc.Races))
	}
	if len(doc.Results) != 2 {
		t.Errorf("results of excluded race kept: %d", len(doc.Results))
	}
	for _, r := range doc.Results {
		if r.StatusCode == "XYZ" {
			t.Error("result belonging to scheduled race survived the filter")
		}
	}
}

func TestExportNotesToggle(t *testing.T) {
	service := NewService(&fakeStore{bundle: importedBundle(t)})

	with, err := service.Export(context.Background(), "rg_1", Options{IncludeAllRaces: true, IncludeNotes: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(with.Text, "Entry fee includes dinner.") || !strings.Contains(with.Text, "charter boat") {
		t.Errorf("notes missing despite IncludeNotes:\n%s", with.Text)
	}

	without, err := service.Export(context.Background(), "rg_1", Options{IncludeAllRaces: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.Contains(without.Text, "Entry fee includes dinner.") || strings.Contains(without.Text, "charter boat") {
		t.Errorf("notes leaked despite IncludeNotes=false:\n%s", without.Text)
	}
}

func TestExportFilename(t *testing.T) {
	service := NewService(&fakeStore{bundle: importedBundle(t)})
	result, err := service.Export(context.Background(), "rg_1", Options{IncludeAllRaces: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Filename != "Spring-Cup-amended-2024-03-21.blw" {
		t.Errorf("filename: %q", result.Filename)
	}
	if result.MimeType != "text/plain; charset=utf-8" {
		t.Errorf("mime type: %q", result.MimeType)
	}
	if string(result.Data) != result.Text {
		t.Error("binary data differs from text")
	}
}

func TestExportWithoutSnapshot(t *testing.T) {
	bundle := importedBundle(t)
	bundle.Regatta.SourceSnapshot = nil
	service := NewService(&fakeStore{bundle: bundle})

	result, err := service.Export(context.Background(), "rg_1", Options{IncludeAllRaces: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.Contains(result.Text, "PrizeTable") {
		t.Error("unknown section appeared without snapshot")
	}
	if !strings.Contains(result.Text, "sailno=GER 101") {
		t.Errorf("schema-only reconstruction missing roster:\n%s", result.Text)
	}
	// Fleets synthesized from live entry names.
	if !strings.Contains(result.Text, "name=Gold") {
		t.Errorf("fleet not synthesized from roster:\n%s", result.Text)
	}
}

func TestExportCorruptSnapshotDegrades(t *testing.T) {
	bundle := importedBundle(t)
	bundle.Regatta.SourceSnapshot = []byte("{not json")
	service := NewService(&fakeStore{bundle: bundle})

	result, err := service.Export(context.Background(), "rg_1", Options{IncludeAllRaces: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(result.Text, "sailno=GER 101") {
		t.Error("corrupt snapshot blocked schema-only export")
	}
}

func TestExportUnknownRegatta(t *testing.T) {
	service := NewService(&fakeStore{err: store.ErrNotFound})
	if _, err := service.Export(context.Background(), "rg_missing", Options{}); err != ErrRegattaNotFound {
		t.Fatalf("expected ErrRegattaNotFound, got %v", err)
	}
}

func TestExportRoundTripThroughDecode(t *testing.T) {
	service := NewService(&fakeStore{bundle: importedBundle(t)})
	result, err := service.Export(context.Background(), "rg_1", Options{IncludeAllRaces: true, IncludeNotes: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	doc, err := blw.Decode(result.Text)
	if err != nil {
		t.Fatalf("exported text does not decode: %v", err)
	}
	if len(doc.Competitors) != 2 || len(doc.Races) != 2 || len(doc.Results) != 3 {
		t.Errorf("re-decoded counts: %d/%d/%d", len(doc.Competitors), len(doc.Races), len(doc.Results))
	}
	if doc.Results[2].StatusCode != "XYZ" {
		t.Errorf("unknown status code lost: %q", doc.Results[2].StatusCode)
	}
}

func TestRenderResultsHTML(t *testing.T) {
	service := NewService(&fakeStore{bundle: importedBundle(t)})
	doc, _, err := service.Build(context.Background(), "rg_1", Options{IncludeAllRaces: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	html, err := renderResultsHTML(doc)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{"Spring Cup (amended)", "GER 101", "Anna Schmidt", "Race 2", "XYZ"} {
		if !strings.Contains(html, want) {
			t.Errorf("results sheet missing %q", want)
		}
	}
}
