package store

import "time"

// Regatta is the root record created by an import (or natively by the
// UI). SourceSnapshot holds the decoded source document as JSON when the
// regatta came from a BLW import; it is what makes lossless re-export
// possible and is nil for natively created regattas.
type Regatta struct {
	ID             string
	OwnerID        string
	ClubID         *string
	ChampionshipID *string
	Name           string
	Venue          string
	Organizer      string
	BoatClass      string
	StartDate      *time.Time
	EndDate        *time.Time
	Notes          string
	ScoringSystem  string
	CodeValues     map[string]string
	DiscardSteps   []DiscardStep
	SourceSnapshot []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DiscardStep mirrors the step function stored on the regatta row.
type DiscardStep struct {
	Races    int `json:"races"`
	Discards int `json:"discards"`
}

// Entry is one boat entered in a regatta.
type Entry struct {
	ID           string
	RegattaID    string
	SailNumber   string
	BoatClass    string
	BoatName     string
	HelmName     string
	CrewNames    string
	Club         string
	Nationality  string
	Rating       *float64
	RatingSystem string
	FleetName    string
	DivisionName string
	Excluded     bool
	Notes        string
	CreatedAt    time.Time
}

// Race is one scheduled or sailed race of a regatta.
type Race struct {
	ID            string
	RegattaID     string
	Name          string
	Date          *time.Time
	StartTime     string
	Rank          int
	Status        string
	WindSpeed     *float64
	WindDirection string
	CreatedAt     time.Time
}

// Result is one entry's outcome in one race.
type Result struct {
	ID              string
	RaceID          string
	EntryID         string
	Position        *int
	Elapsed         string
	Corrected       string
	StatusCode      string
	Points          *float64
	Penalty         string
	Redress         bool
	RedressPosition *int
	CreatedAt       time.Time
}

// RegattaBundle is a regatta with all child rows, as returned by
// GetRegattaWithChildren.
type RegattaBundle struct {
	Regatta Regatta
	Entries []Entry
	Races   []Race
	Results []Result
}

// RegattaSummary is the list-view projection.
type RegattaSummary struct {
	ID         string
	Name       string
	Venue      string
	BoatClass  string
	StartDate  *time.Time
	EntryCount int
	RaceCount  int
	Imported   bool
	UpdatedAt  time.Time
}
