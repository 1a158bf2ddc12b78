// Package blw decodes and encodes the BLW regatta interchange dialect:
// an INI-style text format of [Section] headers and key=value lines used
// by the dominant European scoring tool. The format is loosely specified
// and frequently hand-edited, so decoding is deliberately forgiving:
// malformed lines are skipped, unknown sections and status codes are
// preserved verbatim, and data-quality findings surface as warnings
// rather than failures.
package blw

import "time"

// SectionType identifies what a [Name] header introduces. Unknown keeps
// the section's raw fields so a later encode can reproduce them.
type SectionType string

const (
	SectionSeries     SectionType = "Series"
	SectionEvent      SectionType = "Event"
	SectionScoring    SectionType = "Scoring"
	SectionDiscard    SectionType = "Discard"
	SectionFleet      SectionType = "Fleet"
	SectionDivision   SectionType = "Division"
	SectionCompetitor SectionType = "Comp"
	SectionRace       SectionType = "Race"
	SectionResult     SectionType = "RaceResult"
	SectionUnknown    SectionType = "Unknown"
)

// Section is one tokenized block: the resolved type, the header name as
// written in the source, and the raw key/value pairs with lowercased keys.
type Section struct {
	Type      SectionType       `json:"type"`
	Name      string            `json:"name"`
	RawFields map[string]string `json:"rawFields"`
	keyOrder  []string
}

// Keys returns the section's field keys in source order.
func (s *Section) Keys() []string {
	return s.keyOrder
}

// ScoringSystem is the configured series scoring system.
type ScoringSystem string

const (
	ScoringLowPoint   ScoringSystem = "low-point"
	ScoringHighPoint  ScoringSystem = "high-point"
	ScoringBonusPoint ScoringSystem = "bonus-point"
	ScoringCustom     ScoringSystem = "custom"
)

// KnownStatusCodes is the closed vocabulary of result status codes the
// decoder recognizes. Codes outside this set pass through unchanged; class
// associations invent local codes and rejecting them would make real
// files unimportable.
var KnownStatusCodes = []string{
	"DNF", "DNS", "DNC", "DSQ", "DNE", "OCS", "BFD", "UFD", "ZFP",
	"SCP", "RET", "RAF", "RDG", "DPI", "NSC", "TLE", "AVG", "STP",
}

// SeriesConfig carries series-level metadata.
type SeriesConfig struct {
	Name      string `json:"name,omitempty"`
	Organizer string `json:"organizer,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// EventConfig carries event-level metadata.
type EventConfig struct {
	Name      string     `json:"name,omitempty"`
	Venue     string     `json:"venue,omitempty"`
	Organizer string     `json:"organizer,omitempty"`
	BoatClass string     `json:"boatClass,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// ScoringConfig names the scoring system and the scoring-value expression
// per status code, e.g. "n+1" or "20%".
type ScoringConfig struct {
	System     ScoringSystem     `json:"system"`
	CodeValues map[string]string `json:"codeValues"`
}

// DiscardStep says: once Races races have been sailed, Discards results
// may be excluded. Steps are ordered by Races and Discards is monotonic
// non-decreasing. The final step is open-ended.
type DiscardStep struct {
	Races    int `json:"races"`
	Discards int `json:"discards"`
}

// DiscardSchedule is the ordered step function races-sailed → discards.
type DiscardSchedule struct {
	Steps []DiscardStep `json:"steps"`
}

// DiscardsAt returns the discards allowed after racesSailed races.
func (d DiscardSchedule) DiscardsAt(racesSailed int) int {
	allowed := 0
	for _, step := range d.Steps {
		if racesSailed >= step.Races {
			allowed = step.Discards
		}
	}
	return allowed
}

// Fleet is a named start group.
type Fleet struct {
	SourceID int    `json:"sourceId"`
	Name     string `json:"name"`
	Notes    string `json:"notes,omitempty"`
}

// Division is a named scoring subdivision.
type Division struct {
	SourceID int    `json:"sourceId"`
	Name     string `json:"name"`
	Notes    string `json:"notes,omitempty"`
}

// Competitor is one boat entry as the source file describes it.
type Competitor struct {
	SourceID     int      `json:"sourceId"`
	SailNumber   string   `json:"sailNumber,omitempty"`
	BoatClass    string   `json:"boatClass,omitempty"`
	BoatName     string   `json:"boatName,omitempty"`
	FleetRef     int      `json:"fleetRef,omitempty"`
	DivisionRef  int      `json:"divisionRef,omitempty"`
	HelmName     string   `json:"helmName,omitempty"`
	CrewNames    string   `json:"crewNames,omitempty"`
	Club         string   `json:"club,omitempty"`
	Nationality  string   `json:"nationality,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	RatingSystem string   `json:"ratingSystem,omitempty"`
	Excluded     bool     `json:"excluded,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// RaceStatus is the lifecycle state of a race.
type RaceStatus string

const (
	RaceSailed    RaceStatus = "sailed"
	RaceAbandoned RaceStatus = "abandoned"
	RaceCancelled RaceStatus = "cancelled"
	RaceScheduled RaceStatus = "scheduled"
)

// Race is one scheduled or sailed race.
type Race struct {
	SourceID      int        `json:"sourceId"`
	Name          string     `json:"name,omitempty"`
	Date          *time.Time `json:"date,omitempty"`
	StartTime     string     `json:"startTime,omitempty"`
	Rank          int        `json:"rank,omitempty"`
	Status        RaceStatus `json:"status"`
	WindSpeed     *float64   `json:"windSpeed,omitempty"`
	WindDirection string     `json:"windDirection,omitempty"`
}

// Completed reports whether the race counts as sailed.
func (r Race) Completed() bool {
	return r.Status == RaceSailed
}

// RaceResult is one competitor's outcome in one race. Elapsed and
// corrected times stay strings: source files carry them in several clock
// formats and the relational schema never computes with them.
type RaceResult struct {
	SourceID        int      `json:"sourceId"`
	RaceRef         int      `json:"raceRef"`
	CompetitorRef   int      `json:"competitorRef"`
	Position        *int     `json:"position,omitempty"`
	Elapsed         string   `json:"elapsed,omitempty"`
	Corrected       string   `json:"corrected,omitempty"`
	StatusCode      string   `json:"statusCode,omitempty"`
	Points          *float64 `json:"points,omitempty"`
	Penalty         string   `json:"penalty,omitempty"`
	Redress         bool     `json:"redress,omitempty"`
	RedressPosition *int     `json:"redressPosition,omitempty"`
}

// Document is the decoded aggregate of one BLW file: the unit of
// decode/encode and, serialized, the opaque snapshot attached to an
// imported regatta.
type Document struct {
	Series      SeriesConfig    `json:"series"`
	Event       EventConfig     `json:"event"`
	Scoring     ScoringConfig   `json:"scoring"`
	Discards    DiscardSchedule `json:"discards"`
	Fleets      []Fleet         `json:"fleets,omitempty"`
	Divisions   []Division      `json:"divisions,omitempty"`
	Competitors []Competitor    `json:"competitors,omitempty"`
	Races       []Race          `json:"races,omitempty"`
	Results     []RaceResult    `json:"results,omitempty"`
	Unknown     []Section       `json:"unknown,omitempty"`
}

// CompetitorByID returns the competitor with the given source id.
func (d *Document) CompetitorByID(id int) (Competitor, bool) {
	for _, c := range d.Competitors {
		if c.SourceID == id {
			return c, true
		}
	}
	return Competitor{}, false
}

// RaceByID returns the race with the given source id.
func (d *Document) RaceByID(id int) (Race, bool) {
	for _, r := range d.Races {
		if r.SourceID == id {
			return r, true
		}
	}
	return Race{}, false
}
