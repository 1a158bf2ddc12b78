package blw

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoSections reports text that tokenized to nothing at all. It is the
// decoder's only hard failure; every lesser problem degrades to absent
// fields or validation warnings.
var ErrNoSections = errors.New("blw: no sections found in input")

// Field alias tables, ordered by preference: the first present key wins.
// Spellings accumulated across tool versions and the German-localized
// releases. Built once, read-only for the process lifetime.
var (
	seriesAliases = map[string][]string{
		"name":      {"name", "seriesname", "sername", "serie"},
		"organizer": {"organizer", "organiser", "club", "veranstalter"},
		"notes":     {"notes", "remarks", "bemerkung"},
	}
	eventAliases = map[string][]string{
		"name":      {"name", "eventname", "event", "title", "veranstaltung"},
		"venue":     {"venue", "location", "place", "ort"},
		"organizer": {"organizer", "organiser", "club", "hostclub", "veranstalter"},
		"class":     {"class", "boatclass", "klasse"},
		"startdate": {"startdate", "datefrom", "firstdate", "von"},
		"enddate":   {"enddate", "dateto", "lastdate", "bis"},
		"notes":     {"notes", "remarks", "bemerkung"},
	}
	scoringAliases = map[string][]string{
		"system": {"system", "scoringsystem", "scoring", "wertungssystem"},
	}
	fleetAliases = map[string][]string{
		"id":    {"id", "fleetid", "nr"},
		"name":  {"name", "fleetname", "flotte"},
		"notes": {"notes", "remarks", "bemerkung"},
	}
	divisionAliases = map[string][]string{
		"id":    {"id", "divid", "nr"},
		"name":  {"name", "divname", "gruppe"},
		"notes": {"notes", "remarks", "bemerkung"},
	}
	competitorAliases = map[string][]string{
		"id":           {"id", "compid", "nr"},
		"sailno":       {"sailno", "sail", "sailnumber", "segelnummer"},
		"class":        {"class", "boatclass", "klasse"},
		"boat":         {"boat", "boatname", "bootsname"},
		"fleet":        {"fleet", "fleetid", "flotte"},
		"division":     {"division", "divid", "gruppe"},
		"helm":         {"helm", "helmname", "skipper", "steuermann"},
		"crew":         {"crew", "crewname", "crewnames", "mannschaft"},
		"club":         {"club", "clubname", "verein"},
		"nat":          {"nat", "nationality", "country", "nation"},
		"rating":       {"rating", "handicap", "yardstick"},
		"ratingsystem": {"ratingsystem", "ratingsys", "handicapsystem"},
		"excluded":     {"excluded", "exclude", "ausgeschlossen"},
		"notes":        {"notes", "remarks", "bemerkung"},
	}
	raceAliases = map[string][]string{
		"id":      {"id", "raceid", "nr", "wfnr"},
		"name":    {"name", "racename", "wettfahrt"},
		"date":    {"date", "racedate", "datum"},
		"time":    {"time", "starttime", "zeit", "startzeit"},
		"rank":    {"rank", "order", "sequence", "lauf"},
		"status":  {"status", "state"},
		"wind":    {"wind", "windspeed", "windstaerke"},
		"winddir": {"winddir", "winddirection", "windrichtung"},
	}
	resultAliases = map[string][]string{
		"id":           {"id", "resultid", "nr"},
		"race":         {"race", "raceid", "wettfahrt"},
		"comp":         {"comp", "compid", "competitor", "boat", "teilnehmer"},
		"place":        {"place", "pos", "position", "platz"},
		"elapsed":      {"elapsed", "elapsedtime", "zeit"},
		"corrected":    {"corrected", "correctedtime", "berechnet"},
		"code":         {"code", "status", "statuscode"},
		"points":       {"points", "pts", "punkte"},
		"penalty":      {"penalty", "pen", "strafe"},
		"redress":      {"redress", "rdg"},
		"redressplace": {"redressplace", "redresspos", "rdgplace"},
	}
)

var raceStatusAliases = map[string]RaceStatus{
	"sailed":      RaceSailed,
	"completed":   RaceSailed,
	"finished":    RaceSailed,
	"gesegelt":    RaceSailed,
	"abandoned":   RaceAbandoned,
	"abgebrochen": RaceAbandoned,
	"cancelled":   RaceCancelled,
	"canceled":    RaceCancelled,
	"abgesagt":    RaceCancelled,
	"scheduled":   RaceScheduled,
	"planned":     RaceScheduled,
	"geplant":     RaceScheduled,
}

var scoringSystemAliases = map[string]ScoringSystem{
	"low-point":   ScoringLowPoint,
	"lowpoint":    ScoringLowPoint,
	"low":         ScoringLowPoint,
	"high-point":  ScoringHighPoint,
	"highpoint":   ScoringHighPoint,
	"high":        ScoringHighPoint,
	"bonus-point": ScoringBonusPoint,
	"bonuspoint":  ScoringBonusPoint,
	"bonus":       ScoringBonusPoint,
	"custom":      ScoringCustom,
}

var knownStatusCodeSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(KnownStatusCodes))
	for _, code := range KnownStatusCodes {
		set[code] = struct{}{}
	}
	return set
}()

// DefaultDiscardSchedule is applied when a file carries no discard
// section: no discards through race 4, one through race 7, two beyond.
func DefaultDiscardSchedule() DiscardSchedule {
	return DiscardSchedule{Steps: []DiscardStep{
		{Races: 5, Discards: 1},
		{Races: 8, Discards: 2},
	}}
}

// DefaultCodeValues returns the documented per-code scoring defaults:
// "n+1" everywhere except the Z-flag penalty, which scores 20%.
func DefaultCodeValues() map[string]string {
	values := make(map[string]string, len(KnownStatusCodes))
	for _, code := range KnownStatusCodes {
		values[code] = "n+1"
	}
	values["ZFP"] = "20%"
	return values
}

// Decode tokenizes and decodes one BLW document. It is a pure function
// of its input except for the documented fallback of unparsable dates to
// the current timestamp. The only error is ErrNoSections.
func Decode(text string) (*Document, error) {
	sections := Tokenize(text)
	if len(sections) == 0 {
		return nil, ErrNoSections
	}

	doc := &Document{
		Scoring: ScoringConfig{
			System:     ScoringLowPoint,
			CodeValues: DefaultCodeValues(),
		},
		Discards: DefaultDiscardSchedule(),
	}

	for _, section := range sections {
		switch section.Type {
		case SectionSeries:
			decodeSeries(doc, section)
		case SectionEvent:
			decodeEvent(doc, section)
		case SectionScoring:
			decodeScoring(doc, section)
		case SectionDiscard:
			decodeDiscards(doc, section)
		case SectionFleet:
			doc.Fleets = append(doc.Fleets, decodeFleet(section, len(doc.Fleets)+1))
		case SectionDivision:
			doc.Divisions = append(doc.Divisions, decodeDivision(section, len(doc.Divisions)+1))
		case SectionCompetitor:
			doc.Competitors = append(doc.Competitors, decodeCompetitor(section, len(doc.Competitors)+1))
		case SectionRace:
			doc.Races = append(doc.Races, decodeRace(section, len(doc.Races)+1))
		case SectionResult:
			doc.Results = append(doc.Results, decodeResult(section, len(doc.Results)+1))
		default:
			doc.Unknown = append(doc.Unknown, section)
		}
	}
	return doc, nil
}

func decodeSeries(doc *Document, s Section) {
	doc.Series.Name = lookup(s, seriesAliases, "name")
	doc.Series.Organizer = lookup(s, seriesAliases, "organizer")
	doc.Series.Notes = lookup(s, seriesAliases, "notes")
}

func decodeEvent(doc *Document, s Section) {
	doc.Event.Name = lookup(s, eventAliases, "name")
	doc.Event.Venue = lookup(s, eventAliases, "venue")
	doc.Event.Organizer = lookup(s, eventAliases, "organizer")
	doc.Event.BoatClass = lookup(s, eventAliases, "class")
	doc.Event.StartDate = lookupDate(s, eventAliases, "startdate")
	doc.Event.EndDate = lookupDate(s, eventAliases, "enddate")
	doc.Event.Notes = lookup(s, eventAliases, "notes")
}

func decodeScoring(doc *Document, s Section) {
	if raw := lookup(s, scoringAliases, "system"); raw != "" {
		if system, ok := scoringSystemAliases[strings.ToLower(raw)]; ok {
			doc.Scoring.System = system
		} else {
			doc.Scoring.System = ScoringCustom
		}
	}
	// Any key matching a status code overrides that code's value, and
	// unknown codes are accepted so local codes can carry values too.
	for key, value := range s.RawFields {
		code := NormalizeStatusCode(key)
		if code == "" || value == "" {
			continue
		}
		if isAliasOf(scoringAliases["system"], key) {
			continue
		}
		doc.Scoring.CodeValues[code] = value
	}
}

// decodeDiscards reads numeric races=discards pairs, e.g. "4=0", "7=1".
// Non-numeric keys are ignored; steps are sorted by race count and
// clamped to monotonic non-decreasing discards.
func decodeDiscards(doc *Document, s Section) {
	var steps []DiscardStep
	for key, value := range s.RawFields {
		races, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || races < 0 {
			continue
		}
		discards, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || discards < 0 {
			continue
		}
		steps = append(steps, DiscardStep{Races: races, Discards: discards})
	}
	if len(steps) == 0 {
		return
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Races < steps[j].Races })
	for i := 1; i < len(steps); i++ {
		if steps[i].Discards < steps[i-1].Discards {
			steps[i].Discards = steps[i-1].Discards
		}
	}
	doc.Discards = DiscardSchedule{Steps: steps}
}

func decodeFleet(s Section, ordinal int) Fleet {
	return Fleet{
		SourceID: lookupIntDefault(s, fleetAliases, "id", ordinal),
		Name:     lookup(s, fleetAliases, "name"),
		Notes:    lookup(s, fleetAliases, "notes"),
	}
}

func decodeDivision(s Section, ordinal int) Division {
	return Division{
		SourceID: lookupIntDefault(s, divisionAliases, "id", ordinal),
		Name:     lookup(s, divisionAliases, "name"),
		Notes:    lookup(s, divisionAliases, "notes"),
	}
}

func decodeCompetitor(s Section, ordinal int) Competitor {
	return Competitor{
		SourceID:     lookupIntDefault(s, competitorAliases, "id", ordinal),
		SailNumber:   lookup(s, competitorAliases, "sailno"),
		BoatClass:    lookup(s, competitorAliases, "class"),
		BoatName:     lookup(s, competitorAliases, "boat"),
		FleetRef:     lookupIntDefault(s, competitorAliases, "fleet", 0),
		DivisionRef:  lookupIntDefault(s, competitorAliases, "division", 0),
		HelmName:     lookup(s, competitorAliases, "helm"),
		CrewNames:    lookup(s, competitorAliases, "crew"),
		Club:         lookup(s, competitorAliases, "club"),
		Nationality:  lookup(s, competitorAliases, "nat"),
		Rating:       lookupFloat(s, competitorAliases, "rating"),
		RatingSystem: lookup(s, competitorAliases, "ratingsystem"),
		Excluded:     lookupBool(s, competitorAliases, "excluded"),
		Notes:        lookup(s, competitorAliases, "notes"),
	}
}

func decodeRace(s Section, ordinal int) Race {
	race := Race{
		SourceID:      lookupIntDefault(s, raceAliases, "id", ordinal),
		Name:          lookup(s, raceAliases, "name"),
		Date:          lookupDate(s, raceAliases, "date"),
		StartTime:     lookup(s, raceAliases, "time"),
		Rank:          lookupIntDefault(s, raceAliases, "rank", ordinal),
		Status:        RaceSailed,
		WindSpeed:     lookupFloat(s, raceAliases, "wind"),
		WindDirection: lookup(s, raceAliases, "winddir"),
	}
	if raw := lookup(s, raceAliases, "status"); raw != "" {
		if status, ok := raceStatusAliases[strings.ToLower(raw)]; ok {
			race.Status = status
		}
	}
	return race
}

func decodeResult(s Section, ordinal int) RaceResult {
	return RaceResult{
		SourceID:        lookupIntDefault(s, resultAliases, "id", ordinal),
		RaceRef:         lookupIntDefault(s, resultAliases, "race", 0),
		CompetitorRef:   lookupIntDefault(s, resultAliases, "comp", 0),
		Position:        lookupInt(s, resultAliases, "place"),
		Elapsed:         lookup(s, resultAliases, "elapsed"),
		Corrected:       lookup(s, resultAliases, "corrected"),
		StatusCode:      NormalizeStatusCode(lookup(s, resultAliases, "code")),
		Points:          lookupFloat(s, resultAliases, "points"),
		Penalty:         lookup(s, resultAliases, "penalty"),
		Redress:         lookupBool(s, resultAliases, "redress"),
		RedressPosition: lookupInt(s, resultAliases, "redressplace"),
	}
}

// NormalizeStatusCode trims and uppercases a status code. Codes outside
// the known vocabulary are returned as-is after normalization; the
// vocabulary is open.
func NormalizeStatusCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsKnownStatusCode reports whether code belongs to the closed part of
// the vocabulary.
func IsKnownStatusCode(code string) bool {
	_, ok := knownStatusCodeSet[NormalizeStatusCode(code)]
	return ok
}

func lookup(s Section, aliases map[string][]string, field string) string {
	for _, key := range aliases[field] {
		if value, ok := s.RawFields[key]; ok && value != "" {
			return value
		}
	}
	return ""
}

func isAliasOf(aliases []string, key string) bool {
	key = strings.ToLower(key)
	for _, alias := range aliases {
		if alias == key {
			return true
		}
	}
	return false
}

// ParseNumber parses a float accepting both decimal conventions: the
// comma is substituted before parsing. Unparsable input yields nil
// rather than an error; a bad number never aborts a document.
func ParseNumber(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ",", ".")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &value
}

var dateLayouts = []string{
	"02/01/2006",
	"02.01.2006",
	"2006-01-02",
	// Generic fallbacks for layouts older exports have been seen to use.
	"2006/01/02",
	"02-01-2006",
	"2 January 2006",
	time.RFC3339,
}

// ParseDate tries the documented layouts in order; the first match wins.
// A date matching none of them resolves to the current timestamp, the
// decoder's single documented nondeterminism.
func ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Now()
}

func lookupDate(s Section, aliases map[string][]string, field string) *time.Time {
	raw := lookup(s, aliases, field)
	if raw == "" {
		return nil
	}
	t := ParseDate(raw)
	return &t
}

func lookupFloat(s Section, aliases map[string][]string, field string) *float64 {
	return ParseNumber(lookup(s, aliases, field))
}

func lookupInt(s Section, aliases map[string][]string, field string) *int {
	value := ParseNumber(lookup(s, aliases, field))
	if value == nil {
		return nil
	}
	n := int(*value)
	return &n
}

func lookupIntDefault(s Section, aliases map[string][]string, field string, fallback int) int {
	if n := lookupInt(s, aliases, field); n != nil {
		return *n
	}
	return fallback
}

func lookupBool(s Section, aliases map[string][]string, field string) bool {
	switch strings.ToLower(lookup(s, aliases, field)) {
	case "1", "true", "yes", "y", "ja":
		return true
	}
	return false
}
