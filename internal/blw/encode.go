package blw

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Encode serializes a document to BLW text in canonical section order:
// Series, Event, Scoring, Discard, then every Fleet, Division, Comp,
// Race and RaceResult, with Unknown sections appended last. Keys are
// written in a fixed order per section type so output is deterministic;
// dates are written ISO (YYYY-MM-DD), which the decoder accepts.
func Encode(doc *Document) string {
	var b strings.Builder

	writeSection(&b, "Series", fields{
		{"name", doc.Series.Name},
		{"organizer", doc.Series.Organizer},
		{"notes", doc.Series.Notes},
	})

	writeSection(&b, "Event", fields{
		{"name", doc.Event.Name},
		{"venue", doc.Event.Venue},
		{"organizer", doc.Event.Organizer},
		{"class", doc.Event.BoatClass},
		{"startdate", formatDate(doc.Event.StartDate)},
		{"enddate", formatDate(doc.Event.EndDate)},
		{"notes", doc.Event.Notes},
	})

	scoring := fields{{"system", string(doc.Scoring.System)}}
	for _, code := range sortedKeys(doc.Scoring.CodeValues) {
		scoring = append(scoring, field{strings.ToLower(code), doc.Scoring.CodeValues[code]})
	}
	writeSection(&b, "Scoring", scoring)

	var discard fields
	for _, step := range doc.Discards.Steps {
		discard = append(discard, field{strconv.Itoa(step.Races), strconv.Itoa(step.Discards)})
	}
	writeSection(&b, "Discard", discard)

	for _, f := range doc.Fleets {
		writeSection(&b, "Fleet", fields{
			{"id", strconv.Itoa(f.SourceID)},
			{"name", f.Name},
			{"notes", f.Notes},
		})
	}

	for _, d := range doc.Divisions {
		writeSection(&b, "Division", fields{
			{"id", strconv.Itoa(d.SourceID)},
			{"name", d.Name},
			{"notes", d.Notes},
		})
	}

	for _, c := range doc.Competitors {
		writeSection(&b, "Comp", fields{
			{"id", strconv.Itoa(c.SourceID)},
			{"sailno", c.SailNumber},
			{"class", c.BoatClass},
			{"boat", c.BoatName},
			{"fleet", formatRef(c.FleetRef)},
			{"division", formatRef(c.DivisionRef)},
			{"helm", c.HelmName},
			{"crew", c.CrewNames},
			{"club", c.Club},
			{"nat", c.Nationality},
			{"rating", formatFloat(c.Rating)},
			{"ratingsystem", c.RatingSystem},
			{"excluded", formatBool(c.Excluded)},
			{"notes", c.Notes},
		})
	}

	for _, r := range doc.Races {
		writeSection(&b, "Race", fields{
			{"id", strconv.Itoa(r.SourceID)},
			{"name", r.Name},
			{"date", formatDate(r.Date)},
			{"time", r.StartTime},
			{"rank", formatRef(r.Rank)},
			{"status", string(r.Status)},
			{"wind", formatFloat(r.WindSpeed)},
			{"winddir", r.WindDirection},
		})
	}

	for _, r := range doc.Results {
		writeSection(&b, "RaceResult", fields{
			{"id", strconv.Itoa(r.SourceID)},
			{"race", strconv.Itoa(r.RaceRef)},
			{"comp", strconv.Itoa(r.CompetitorRef)},
			{"place", formatIntPtr(r.Position)},
			{"elapsed", r.Elapsed},
			{"corrected", r.Corrected},
			{"code", r.StatusCode},
			{"points", formatFloat(r.Points)},
			{"penalty", r.Penalty},
			{"redress", formatBool(r.Redress)},
			{"redressplace", formatIntPtr(r.RedressPosition)},
		})
	}

	for _, section := range doc.Unknown {
		var raw fields
		keys := section.Keys()
		if len(keys) == 0 {
			// Sections restored from a persisted snapshot lose their
			// source key order; fall back to sorted keys.
			keys = sortedKeys(section.RawFields)
		}
		for _, key := range keys {
			raw = append(raw, field{key, section.RawFields[key]})
		}
		writeSection(&b, section.Name, raw)
	}

	return b.String()
}

type field struct {
	key   string
	value string
}

type fields []field

func writeSection(b *strings.Builder, name string, entries fields) {
	fmt.Fprintf(b, "[%s]\n", name)
	for _, entry := range entries {
		if entry.value == "" {
			continue
		}
		fmt.Fprintf(b, "%s=%s\n", entry.key, entry.value)
	}
	b.WriteString("\n")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatIntPtr(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func formatRef(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatBool(b bool) string {
	if !b {
		return ""
	}
	return "1"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
