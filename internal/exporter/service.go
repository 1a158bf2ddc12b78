package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"regattalog/api/internal/blw"
	"regattalog/api/internal/store"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetRegattaWithChildren(ctx context.Context, regattaID string) (store.RegattaBundle, error)
}

// Service rebuilds BLW documents from store state.
type Service struct {
	store DataStore
}

func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export builds the BLW text for a regatta. Reconstruction starts from
// the import-time snapshot when one exists, so fields the relational
// schema cannot express survive; every field the schema does own is then
// overlaid from the live rows, so edits made after import are reflected.
// All ids are renumbered into a fresh contiguous sequence.
func (s *Service) Export(ctx context.Context, regattaID string, opts Options) (*Result, error) {
	doc, regatta, err := s.Build(ctx, regattaID, opts)
	if err != nil {
		return nil, err
	}

	text := blw.Encode(doc)
	return &Result{
		Text:     text,
		Data:     []byte(text),
		Filename: exportFilename(regatta) + ".blw",
		MimeType: "text/plain; charset=utf-8",
	}, nil
}

// ExportPDF renders the regatta's results sheet as a PDF.
func (s *Service) ExportPDF(ctx context.Context, regattaID string, opts Options) (*Result, error) {
	doc, regatta, err := s.Build(ctx, regattaID, opts)
	if err != nil {
		return nil, err
	}

	html, err := renderResultsHTML(doc)
	if err != nil {
		return nil, fmt.Errorf("render results sheet: %w", err)
	}
	return exportPDF(html, exportFilename(regatta))
}

// Build synthesizes the transient document a single export serializes.
// It is never persisted.
func (s *Service) Build(ctx context.Context, regattaID string, opts Options) (*blw.Document, store.Regatta, error) {
	bundle, err := s.store.GetRegattaWithChildren(ctx, regattaID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.Regatta{}, ErrRegattaNotFound
	}
	if err != nil {
		return nil, store.Regatta{}, fmt.Errorf("load regatta: %w", err)
	}
	regatta := bundle.Regatta

	doc := &blw.Document{}
	if len(regatta.SourceSnapshot) > 0 {
		if err := json.Unmarshal(regatta.SourceSnapshot, doc); err != nil {
			// A corrupt snapshot degrades to schema-only reconstruction
			// rather than blocking the export.
			log.Printf("exporter: snapshot for %s unreadable, exporting schema fields only: %v", regattaID, err)
			doc = &blw.Document{}
		}
	}

	overlayEvent(doc, regatta, opts)
	overlayScoring(doc, regatta)
	overlayDiscards(doc, regatta)

	races, raceNumbers := overlayRaces(doc, bundle, opts)
	doc.Races = races

	fleets, fleetNumbers := rebuildFleets(doc.Fleets, bundle.Entries)
	doc.Fleets = fleets
	divisions, divisionNumbers := rebuildDivisions(doc.Divisions, bundle.Entries)
	doc.Divisions = divisions

	competitors, entryNumbers := overlayCompetitors(bundle.Entries, fleetNumbers, divisionNumbers, opts)
	doc.Competitors = competitors

	doc.Results = overlayResults(bundle.Results, raceNumbers, entryNumbers)

	return doc, regatta, nil
}

func overlayEvent(doc *blw.Document, regatta store.Regatta, opts Options) {
	doc.Event.Name = regatta.Name
	doc.Event.Venue = regatta.Venue
	doc.Event.Organizer = regatta.Organizer
	doc.Event.BoatClass = regatta.BoatClass
	doc.Event.StartDate = regatta.StartDate
	doc.Event.EndDate = regatta.EndDate
	if opts.IncludeNotes {
		doc.Event.Notes = regatta.Notes
	} else {
		doc.Event.Notes = ""
		doc.Series.Notes = ""
	}
	if doc.Series.Name == "" {
		doc.Series.Name = regatta.Name
	}
	if doc.Series.Organizer == "" {
		doc.Series.Organizer = regatta.Organizer
	}
}

func overlayScoring(doc *blw.Document, regatta store.Regatta) {
	if regatta.ScoringSystem != "" {
		doc.Scoring.System = blw.ScoringSystem(regatta.ScoringSystem)
	} else if doc.Scoring.System == "" {
		doc.Scoring.System = blw.ScoringLowPoint
	}
	if len(regatta.CodeValues) > 0 {
		doc.Scoring.CodeValues = regatta.CodeValues
	} else if doc.Scoring.CodeValues == nil {
		doc.Scoring.CodeValues = blw.DefaultCodeValues()
	}
}

func overlayDiscards(doc *blw.Document, regatta store.Regatta) {
	if len(regatta.DiscardSteps) > 0 {
		steps := make([]blw.DiscardStep, 0, len(regatta.DiscardSteps))
		for _, step := range regatta.DiscardSteps {
			steps = append(steps, blw.DiscardStep{Races: step.Races, Discards: step.Discards})
		}
		doc.Discards = blw.DiscardSchedule{Steps: steps}
	} else if len(doc.Discards.Steps) == 0 {
		doc.Discards = blw.DefaultDiscardSchedule()
	}
}

// overlayRaces converts live race rows, filtering by IncludeAllRaces,
// and returns the store-id → renumbered-id map used to keep results
// consistent with the race filter.
func overlayRaces(doc *blw.Document, bundle store.RegattaBundle, opts Options) ([]blw.Race, map[string]int) {
	races := make([]blw.Race, 0, len(bundle.Races))
	numbers := make(map[string]int, len(bundle.Races))
	for _, row := range bundle.Races {
		status := blw.RaceStatus(row.Status)
		if status == "" {
			status = blw.RaceSailed
		}
		if !opts.IncludeAllRaces && status != blw.RaceSailed {
			continue
		}
		id := len(races) + 1
		numbers[row.ID] = id
		races = append(races, blw.Race{
			SourceID:      id,
			Name:          row.Name,
			Date:          row.Date,
			StartTime:     row.StartTime,
			Rank:          id,
			Status:        status,
			WindSpeed:     row.WindSpeed,
			WindDirection: row.WindDirection,
		})
	}
	return races, numbers
}

// rebuildFleets renumbers snapshot fleets and synthesizes fleets for any
// name only the live roster knows about.
func rebuildFleets(snapshot []blw.Fleet, entries []store.Entry) ([]blw.Fleet, map[string]int) {
	fleets := make([]blw.Fleet, 0, len(snapshot))
	numbers := make(map[string]int)
	for _, fleet := range snapshot {
		if fleet.Name == "" {
			continue
		}
		if _, seen := numbers[fleet.Name]; seen {
			continue
		}
		id := len(fleets) + 1
		numbers[fleet.Name] = id
		fleets = append(fleets, blw.Fleet{SourceID: id, Name: fleet.Name, Notes: fleet.Notes})
	}
	for _, entry := range entries {
		if entry.FleetName == "" {
			continue
		}
		if _, seen := numbers[entry.FleetName]; seen {
			continue
		}
		id := len(fleets) + 1
		numbers[entry.FleetName] = id
		fleets = append(fleets, blw.Fleet{SourceID: id, Name: entry.FleetName})
	}
	return fleets, numbers
}

func rebuildDivisions(snapshot []blw.Division, entries []store.Entry) ([]blw.Division, map[string]int) {
	divisions := make([]blw.Division, 0, len(snapshot))
	numbers := make(map[string]int)
	for _, division := range snapshot {
		if division.Name == "" {
			continue
		}
		if _, seen := numbers[division.Name]; seen {
			continue
		}
		id := len(divisions) + 1
		numbers[division.Name] = id
		divisions = append(divisions, blw.Division{SourceID: id, Name: division.Name, Notes: division.Notes})
	}
	for _, entry := range entries {
		if entry.DivisionName == "" {
			continue
		}
		if _, seen := numbers[entry.DivisionName]; seen {
			continue
		}
		id := len(divisions) + 1
		numbers[entry.DivisionName] = id
		divisions = append(divisions, blw.Division{SourceID: id, Name: entry.DivisionName})
	}
	return divisions, numbers
}

func overlayCompetitors(entries []store.Entry, fleetNumbers, divisionNumbers map[string]int, opts Options) ([]blw.Competitor, map[string]int) {
	competitors := make([]blw.Competitor, 0, len(entries))
	numbers := make(map[string]int, len(entries))
	for i, entry := range entries {
		id := i + 1
		numbers[entry.ID] = id
		competitor := blw.Competitor{
			SourceID:     id,
			SailNumber:   entry.SailNumber,
			BoatClass:    entry.BoatClass,
			BoatName:     entry.BoatName,
			FleetRef:     fleetNumbers[entry.FleetName],
			DivisionRef:  divisionNumbers[entry.DivisionName],
			HelmName:     entry.HelmName,
			CrewNames:    entry.CrewNames,
			Club:         entry.Club,
			Nationality:  entry.Nationality,
			Rating:       entry.Rating,
			RatingSystem: entry.RatingSystem,
			Excluded:     entry.Excluded,
		}
		if opts.IncludeNotes {
			competitor.Notes = entry.Notes
		}
		competitors = append(competitors, competitor)
	}
	return competitors, numbers
}

// overlayResults drops results whose race was excluded by the filter so
// the two sections stay consistent.
func overlayResults(results []store.Result, raceNumbers, entryNumbers map[string]int) []blw.RaceResult {
	converted := make([]blw.RaceResult, 0, len(results))
	for _, row := range results {
		raceRef, ok := raceNumbers[row.RaceID]
		if !ok {
			continue
		}
		entryRef, ok := entryNumbers[row.EntryID]
		if !ok {
			continue
		}
		converted = append(converted, blw.RaceResult{
			SourceID:        len(converted) + 1,
			RaceRef:         raceRef,
			CompetitorRef:   entryRef,
			Position:        row.Position,
			Elapsed:         row.Elapsed,
			Corrected:       row.Corrected,
			StatusCode:      row.StatusCode,
			Points:          row.Points,
			Penalty:         row.Penalty,
			Redress:         row.Redress,
			RedressPosition: row.RedressPosition,
		})
	}
	return converted
}

func exportFilename(regatta store.Regatta) string {
	name := sanitizeFilename(regatta.Name)
	date := regatta.StartDate
	if date == nil {
		now := regatta.UpdatedAt
		if now.IsZero() {
			now = time.Now()
		}
		date = &now
	}
	return name + "-" + date.Format("2006-01-02")
}

// sanitizeFilename creates a safe filename from an event name
func sanitizeFilename(name string) string {
	result := ""
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "regatta"
	}
	return result
}
