package blw

import (
	"fmt"
	"strings"
)

// Report is the validator's outcome. Valid is false only when there was
// no document to check at all; every data-quality finding is a warning,
// because the format carries no enforcing authority and messy real files
// must stay importable.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks a decoded document for completeness and referential
// consistency.
func Validate(doc *Document) Report {
	report := Report{Errors: []string{}, Warnings: []string{}}
	if doc == nil {
		report.Errors = append(report.Errors, "document could not be decoded")
		return report
	}
	report.Valid = true

	if strings.TrimSpace(doc.Event.Name) == "" {
		report.Warnings = append(report.Warnings, "event has no name")
	}
	if len(doc.Competitors) == 0 {
		report.Warnings = append(report.Warnings, "document contains no competitors")
	}
	if len(doc.Races) == 0 {
		report.Warnings = append(report.Warnings, "document contains no races")
	}

	// Duplicate sail numbers, compared case-insensitively with
	// whitespace stripped; one warning per duplicate pair.
	seen := make(map[string]int)
	for _, c := range doc.Competitors {
		key := canonicalSailNumber(c.SailNumber)
		if key == "" {
			continue
		}
		if first, dup := seen[key]; dup {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("duplicate sail number %q (competitors %d and %d)", c.SailNumber, first, c.SourceID))
			continue
		}
		seen[key] = c.SourceID
	}

	raceIDs := make(map[int]struct{}, len(doc.Races))
	for _, r := range doc.Races {
		raceIDs[r.SourceID] = struct{}{}
	}
	compIDs := make(map[int]struct{}, len(doc.Competitors))
	for _, c := range doc.Competitors {
		compIDs[c.SourceID] = struct{}{}
	}
	for _, result := range doc.Results {
		if _, ok := raceIDs[result.RaceRef]; !ok {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("result %d references unknown race %d", result.SourceID, result.RaceRef))
		}
		if _, ok := compIDs[result.CompetitorRef]; !ok {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("result %d references unknown competitor %d", result.SourceID, result.CompetitorRef))
		}
	}

	return report
}

func canonicalSailNumber(sail string) string {
	var b strings.Builder
	for _, r := range sail {
		if r == ' ' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
