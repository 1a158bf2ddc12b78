package blw

import (
	"strings"
	"testing"
	"time"
)

const sampleDoc = `[Series]
name=Baltic Series 2024
organizer=Kieler Yacht-Club

[Event]
name=Spring Cup
venue=Kiel
class=ILCA 7
startdate=21/03/2024
enddate=24/03/2024

[Scoring]
system=low-point
dnf=n+1
zfp=20%

[Discard]
4=0
7=1
10=2

[Comp]
id=1
sailno=GER 101
helm=Anna Schmidt
club=KYC
nat=GER
rating=4.5

[Comp]
id=2
sailno=DEN 202
helm=Lars Jensen
nat=DEN

[Race]
id=1
name=Race 1
date=21/03/2024
status=sailed

[RaceResult]
id=1
race=1
comp=1
place=1

[RaceResult]
id=2
race=1
comp=2
place=2
`

func TestDecodeSample(t *testing.T) {
	doc, err := Decode(sampleDoc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Series.Name != "Baltic Series 2024" {
		t.Errorf("series name: %q", doc.Series.Name)
	}
	if doc.Event.Name != "Spring Cup" {
		t.Errorf("event name: %q", doc.Event.Name)
	}
	if doc.Event.BoatClass != "ILCA 7" {
		t.Errorf("boat class: %q", doc.Event.BoatClass)
	}
	if len(doc.Competitors) != 2 || len(doc.Races) != 1 || len(doc.Results) != 2 {
		t.Fatalf("counts: %d competitors, %d races, %d results",
			len(doc.Competitors), len(doc.Races), len(doc.Results))
	}
	if doc.Competitors[0].HelmName != "Anna Schmidt" {
		t.Errorf("helm: %q", doc.Competitors[0].HelmName)
	}
	if doc.Results[1].CompetitorRef != 2 || doc.Results[1].Position == nil || *doc.Results[1].Position != 2 {
		t.Errorf("second result: %+v", doc.Results[1])
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	if _, err := Decode(""); err != ErrNoSections {
		t.Fatalf("expected ErrNoSections, got %v", err)
	}
	if _, err := Decode("no headers here\n"); err != ErrNoSections {
		t.Fatalf("expected ErrNoSections, got %v", err)
	}
}

func TestDecodeDateLocales(t *testing.T) {
	want := time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"21/03/2024", "21.03.2024", "2024-03-21"} {
		doc, err := Decode("[Event]\nname=Cup\nstartdate=" + raw + "\n")
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if doc.Event.StartDate == nil {
			t.Fatalf("%s: start date absent", raw)
		}
		if !doc.Event.StartDate.Equal(want) {
			t.Errorf("%s decoded as %v, want %v", raw, doc.Event.StartDate, want)
		}
	}
}

func TestDecodeUnparsableDateFallsBackToNow(t *testing.T) {
	before := time.Now().Add(-time.Minute)
	doc, err := Decode("[Event]\nname=Cup\nstartdate=not a date\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Event.StartDate == nil {
		t.Fatal("expected fallback date, got nil")
	}
	if doc.Event.StartDate.Before(before) {
		t.Errorf("fallback date %v is not recent", doc.Event.StartDate)
	}
}

func TestDecodeDecimalComma(t *testing.T) {
	for _, raw := range []string{"4,5", "4.5"} {
		doc, err := Decode("[Comp]\nid=1\nsailno=GER 1\nrating=" + raw + "\n")
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		rating := doc.Competitors[0].Rating
		if rating == nil || *rating != 4.5 {
			t.Errorf("rating %q decoded as %v, want 4.5", raw, rating)
		}
	}
}

func TestDecodeUnparsableNumberIsAbsent(t *testing.T) {
	doc, err := Decode("[Comp]\nid=1\nrating=fast\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Competitors[0].Rating != nil {
		t.Errorf("expected absent rating, got %v", *doc.Competitors[0].Rating)
	}
}

func TestDecodeScoringDefaults(t *testing.T) {
	doc, err := Decode("[Event]\nname=Cup\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Scoring.System != ScoringLowPoint {
		t.Errorf("default scoring system: %s", doc.Scoring.System)
	}
	if got := doc.Scoring.CodeValues["DNF"]; got != "n+1" {
		t.Errorf("DNF default: %q", got)
	}
	if got := doc.Scoring.CodeValues["ZFP"]; got != "20%" {
		t.Errorf("ZFP default: %q", got)
	}
}

func TestDecodeScoringOverrides(t *testing.T) {
	doc, err := Decode("[Scoring]\nsystem=highpoint\ndsq=n+2\nxyz=7\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Scoring.System != ScoringHighPoint {
		t.Errorf("system: %s", doc.Scoring.System)
	}
	if got := doc.Scoring.CodeValues["DSQ"]; got != "n+2" {
		t.Errorf("DSQ override: %q", got)
	}
	if got := doc.Scoring.CodeValues["XYZ"]; got != "7" {
		t.Errorf("local code value not kept: %q", got)
	}
}

func TestDecodeUnrecognizedScoringSystemIsCustom(t *testing.T) {
	doc, err := Decode("[Scoring]\nsystem=cox-sprague\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Scoring.System != ScoringCustom {
		t.Errorf("expected custom system, got %s", doc.Scoring.System)
	}
}

func TestDecodeDefaultDiscardSchedule(t *testing.T) {
	doc, err := Decode("[Event]\nname=Cup\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	cases := map[int]int{1: 0, 4: 0, 5: 1, 7: 1, 8: 2, 12: 2}
	for sailed, want := range cases {
		if got := doc.Discards.DiscardsAt(sailed); got != want {
			t.Errorf("DiscardsAt(%d) = %d, want %d", sailed, got, want)
		}
	}
}

func TestDecodeDiscardScheduleMonotonic(t *testing.T) {
	doc, err := Decode("[Discard]\n3=2\n6=1\n9=3\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	prev := 0
	for _, step := range doc.Discards.Steps {
		if step.Discards < prev {
			t.Errorf("schedule not monotonic: %+v", doc.Discards.Steps)
		}
		prev = step.Discards
	}
}

func TestDecodeStatusCodes(t *testing.T) {
	doc, err := Decode("[RaceResult]\nid=1\nrace=1\ncomp=1\ncode= dnf \n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Results[0].StatusCode != "DNF" {
		t.Errorf("code not normalized: %q", doc.Results[0].StatusCode)
	}

	doc, err = Decode("[RaceResult]\nid=1\nrace=1\ncomp=1\ncode=xyz\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Results[0].StatusCode != "XYZ" {
		t.Errorf("unknown code not passed through: %q", doc.Results[0].StatusCode)
	}
	if IsKnownStatusCode("XYZ") {
		t.Error("XYZ reported as known")
	}
	if !IsKnownStatusCode("ocs") {
		t.Error("OCS not recognized case-insensitively")
	}
}

func TestDecodeGermanAliases(t *testing.T) {
	text := "[Veranstaltung]\nname=Herbstregatta\nort=Flensburg\nklasse=420er\n" +
		"[Teilnehmer]\nnr=1\nsegelnummer=GER 77\nsteuermann=Kai Weber\nverein=FSC\n" +
		"[Wettfahrt]\nwfnr=1\ndatum=05.10.2024\n"
	doc, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Event.Venue != "Flensburg" || doc.Event.BoatClass != "420er" {
		t.Errorf("event aliases: %+v", doc.Event)
	}
	if len(doc.Competitors) != 1 || doc.Competitors[0].SailNumber != "GER 77" {
		t.Fatalf("competitor aliases: %+v", doc.Competitors)
	}
	if doc.Competitors[0].HelmName != "Kai Weber" || doc.Competitors[0].Club != "FSC" {
		t.Errorf("competitor aliases: %+v", doc.Competitors[0])
	}
	if len(doc.Races) != 1 || doc.Races[0].SourceID != 1 {
		t.Fatalf("race aliases: %+v", doc.Races)
	}
}

func TestDecodeMissingIDsGetOrdinals(t *testing.T) {
	doc, err := Decode("[Comp]\nsailno=GER 1\n[Comp]\nsailno=GER 2\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Competitors[0].SourceID != 1 || doc.Competitors[1].SourceID != 2 {
		t.Errorf("ordinal ids: %d, %d", doc.Competitors[0].SourceID, doc.Competitors[1].SourceID)
	}
}

func TestDecodeRaceStatusDefaultsToSailed(t *testing.T) {
	doc, err := Decode("[Race]\nid=1\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Races[0].Status != RaceSailed {
		t.Errorf("default race status: %s", doc.Races[0].Status)
	}
	if !doc.Races[0].Completed() {
		t.Error("sailed race not reported completed")
	}
}

func TestDecodeUnknownSectionsRetained(t *testing.T) {
	doc, err := Decode(sampleDoc + "\n[PrizeTable]\nfirst=Glass trophy\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(doc.Unknown) != 1 {
		t.Fatalf("expected 1 unknown section, got %d", len(doc.Unknown))
	}
	if doc.Unknown[0].Name != "PrizeTable" || doc.Unknown[0].RawFields["first"] != "Glass trophy" {
		t.Errorf("unknown section: %+v", doc.Unknown[0])
	}
}

func TestDecodeIsDeterministic(t *testing.T) {
	a, err := Decode(sampleDoc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	b, err := Decode(sampleDoc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if Encode(a) != Encode(b) {
		t.Error("two decodes of the same input differ")
	}
}

func TestParseNumber(t *testing.T) {
	if v := ParseNumber("12,75"); v == nil || *v != 12.75 {
		t.Errorf("comma decimal: %v", v)
	}
	if v := ParseNumber(""); v != nil {
		t.Errorf("empty input: %v", *v)
	}
	if v := ParseNumber("n/a"); v != nil {
		t.Errorf("junk input: %v", *v)
	}
}

func TestSampleRoundTripKeepsUnknownCode(t *testing.T) {
	text := strings.Replace(sampleDoc, "place=2", "code=XYZ", 1)
	doc, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	redecoded, err := Decode(Encode(doc))
	if err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	if redecoded.Results[1].StatusCode != "XYZ" {
		t.Errorf("unknown code lost in round trip: %q", redecoded.Results[1].StatusCode)
	}
}
