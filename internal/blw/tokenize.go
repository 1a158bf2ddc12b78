package blw

import "strings"

// sectionAliases maps lowercased header names to section types. The
// scoring tool renamed headers across versions and localized them in
// some releases, so every spelling ever observed resolves here.
var sectionAliases = map[string]SectionType{
	"series":        SectionSeries,
	"serie":         SectionSeries,
	"serdata":       SectionSeries,
	"event":         SectionEvent,
	"regatta":       SectionEvent,
	"veranstaltung": SectionEvent,
	"scoring":       SectionScoring,
	"scoringsystem": SectionScoring,
	"wertung":       SectionScoring,
	"discard":       SectionDiscard,
	"discards":      SectionDiscard,
	"throwouts":     SectionDiscard,
	"streicher":     SectionDiscard,
	"fleet":         SectionFleet,
	"flotte":        SectionFleet,
	"division":      SectionDivision,
	"gruppe":        SectionDivision,
	"comp":          SectionCompetitor,
	"competitor":    SectionCompetitor,
	"boat":          SectionCompetitor,
	"teilnehmer":    SectionCompetitor,
	"race":          SectionRace,
	"wettfahrt":     SectionRace,
	"result":        SectionResult,
	"raceresult":    SectionResult,
	"ergebnis":      SectionResult,
}

// Tokenize splits raw BLW text into ordered sections. It never fails:
// the format is routinely hand-edited, so malformed lines are skipped,
// comments (";" prefix) and blank lines are ignored, and any line-ending
// convention is accepted. Text before the first [Header] is discarded.
// Headers that resolve to no known type open an Unknown section whose
// fields are still captured for round-trip.
func Tokenize(text string) []Section {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var sections []Section
	var current *Section

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			if name == "" {
				continue
			}
			if current != nil {
				sections = append(sections, *current)
			}
			current = &Section{
				Type:      resolveSectionType(name),
				Name:      name,
				RawFields: make(map[string]string),
			}
			continue
		}

		if current == nil {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, seen := current.RawFields[key]; !seen {
			current.keyOrder = append(current.keyOrder, key)
		}
		current.RawFields[key] = strings.TrimSpace(value)
	}

	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}

func resolveSectionType(name string) SectionType {
	if t, ok := sectionAliases[strings.ToLower(name)]; ok {
		return t
	}
	return SectionUnknown
}
