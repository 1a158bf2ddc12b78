// Package importer persists a decoded BLW document into the relational
// store. Imports are best-effort: apart from the root regatta record,
// every failed create skips that one entity with a warning and the rest
// of the import proceeds.
package importer

import (
	"context"
	"encoding/json"
	"fmt"

	"regattalog/api/internal/blw"
	"regattalog/api/internal/store"
)

// dataStore is the slice of the relational store an import needs.
type dataStore interface {
	CreateRegatta(ctx context.Context, regatta store.Regatta) (string, error)
	CreateEntry(ctx context.Context, entry store.Entry) (string, error)
	CreateRace(ctx context.Context, race store.Race) (string, error)
	CreateResult(ctx context.Context, result store.Result) (string, error)
}

// Target names who owns the imported regatta and where it hangs.
type Target struct {
	OwnerID        string
	ClubID         *string
	ChampionshipID *string
}

// Stats counts what an import created and skipped.
type Stats struct {
	Competitors int `json:"competitors"`
	Races       int `json:"races"`
	Results     int `json:"results"`
	Skipped     int `json:"skipped"`
}

// Result is the outcome of one import. Success is insensitive to the
// warning count; it only turns false on hard errors.
type Result struct {
	Success   bool     `json:"success"`
	RegattaID string   `json:"regattaId,omitempty"`
	Warnings  []string `json:"warnings"`
	Errors    []string `json:"errors"`
	Stats     Stats    `json:"stats"`
}

type Service struct {
	store dataStore
}

func New(store dataStore) *Service {
	return &Service{store: store}
}

// Import creates one regatta with all children from a decoded document.
// The full document is attached to the regatta as an opaque snapshot so
// a later export can recover fields the relational schema cannot hold;
// failing to create that root record is the only failure that aborts,
// since nothing else would have a parent to attach to.
func (s *Service) Import(ctx context.Context, doc *blw.Document, target Target) (*Result, error) {
	result := &Result{Warnings: []string{}, Errors: []string{}}
	if doc == nil {
		return nil, fmt.Errorf("import requires a decoded document")
	}

	snapshot, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	regattaID, err := s.store.CreateRegatta(ctx, translateRegatta(doc, target, snapshot))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("create regatta: %v", err))
		return result, nil
	}
	result.RegattaID = regattaID

	// Per-call id maps, source id → store id. Built here, discarded with
	// the call; no registry outlives an import.
	entryIDs := make(map[int]string, len(doc.Competitors))
	raceIDs := make(map[int]string, len(doc.Races))

	for _, competitor := range doc.Competitors {
		entryID, err := s.store.CreateEntry(ctx, translateEntry(doc, competitor, regattaID))
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("competitor %d (%s) skipped: %v", competitor.SourceID, competitor.SailNumber, err))
			result.Stats.Skipped++
			continue
		}
		entryIDs[competitor.SourceID] = entryID
		result.Stats.Competitors++
	}

	for _, race := range doc.Races {
		raceID, err := s.store.CreateRace(ctx, translateRace(race, regattaID))
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("race %d skipped: %v", race.SourceID, err))
			result.Stats.Skipped++
			continue
		}
		raceIDs[race.SourceID] = raceID
		result.Stats.Races++
	}

	for _, raceResult := range doc.Results {
		raceID, ok := raceIDs[raceResult.RaceRef]
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("result %d skipped: race %d not found", raceResult.SourceID, raceResult.RaceRef))
			result.Stats.Skipped++
			continue
		}
		entryID, ok := entryIDs[raceResult.CompetitorRef]
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("result %d skipped: competitor %d not found", raceResult.SourceID, raceResult.CompetitorRef))
			result.Stats.Skipped++
			continue
		}
		if _, err := s.store.CreateResult(ctx, translateResult(raceResult, raceID, entryID)); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("result %d skipped: %v", raceResult.SourceID, err))
			result.Stats.Skipped++
			continue
		}
		result.Stats.Results++
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

func translateRegatta(doc *blw.Document, target Target, snapshot []byte) store.Regatta {
	name := doc.Event.Name
	if name == "" {
		name = doc.Series.Name
	}
	organizer := doc.Event.Organizer
	if organizer == "" {
		organizer = doc.Series.Organizer
	}
	steps := make([]store.DiscardStep, 0, len(doc.Discards.Steps))
	for _, step := range doc.Discards.Steps {
		steps = append(steps, store.DiscardStep{Races: step.Races, Discards: step.Discards})
	}
	return store.Regatta{
		OwnerID:        target.OwnerID,
		ClubID:         target.ClubID,
		ChampionshipID: target.ChampionshipID,
		Name:           name,
		Venue:          doc.Event.Venue,
		Organizer:      organizer,
		BoatClass:      doc.Event.BoatClass,
		StartDate:      doc.Event.StartDate,
		EndDate:        doc.Event.EndDate,
		Notes:          doc.Event.Notes,
		ScoringSystem:  string(doc.Scoring.System),
		CodeValues:     doc.Scoring.CodeValues,
		DiscardSteps:   steps,
		SourceSnapshot: snapshot,
	}
}

func translateEntry(doc *blw.Document, competitor blw.Competitor, regattaID string) store.Entry {
	var fleetName, divisionName string
	for _, fleet := range doc.Fleets {
		if fleet.SourceID == competitor.FleetRef {
			fleetName = fleet.Name
		}
	}
	for _, division := range doc.Divisions {
		if division.SourceID == competitor.DivisionRef {
			divisionName = division.Name
		}
	}
	return store.Entry{
		RegattaID:    regattaID,
		SailNumber:   competitor.SailNumber,
		BoatClass:    competitor.BoatClass,
		BoatName:     competitor.BoatName,
		HelmName:     competitor.HelmName,
		CrewNames:    competitor.CrewNames,
		Club:         competitor.Club,
		Nationality:  competitor.Nationality,
		Rating:       competitor.Rating,
		RatingSystem: competitor.RatingSystem,
		FleetName:    fleetName,
		DivisionName: divisionName,
		Excluded:     competitor.Excluded,
		Notes:        competitor.Notes,
	}
}

func translateRace(race blw.Race, regattaID string) store.Race {
	return store.Race{
		RegattaID:     regattaID,
		Name:          race.Name,
		Date:          race.Date,
		StartTime:     race.StartTime,
		Rank:          race.Rank,
		Status:        string(race.Status),
		WindSpeed:     race.WindSpeed,
		WindDirection: race.WindDirection,
	}
}

func translateResult(result blw.RaceResult, raceID, entryID string) store.Result {
	return store.Result{
		RaceID:          raceID,
		EntryID:         entryID,
		Position:        result.Position,
		Elapsed:         result.Elapsed,
		Corrected:       result.Corrected,
		StatusCode:      result.StatusCode,
		Points:          result.Points,
		Penalty:         result.Penalty,
		Redress:         result.Redress,
		RedressPosition: result.RedressPosition,
	}
}
