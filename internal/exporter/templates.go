package exporter

import (
	"bytes"
	"html/template"
	"strconv"
	"time"

	"regattalog/api/internal/blw"
)

var resultsTemplate = template.Must(template.New("results").Funcs(template.FuncMap{
	"formatDate": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("02 Jan 2006")
	},
}).Parse(resultsSheetTemplate))

type sheetData struct {
	Event blw.EventConfig
	Races []sheetRace
}

type sheetRace struct {
	Race blw.Race
	Rows []sheetRow
}

type sheetRow struct {
	Position string
	Sail     string
	Helm     string
	Club     string
	Code     string
	Elapsed  string
	Points   string
}

// renderResultsHTML lays the document out as one table per race,
// ordered by finish position with status-coded boats at the bottom.
func renderResultsHTML(doc *blw.Document) (string, error) {
	data := sheetData{Event: doc.Event}

	competitors := make(map[int]blw.Competitor, len(doc.Competitors))
	for _, c := range doc.Competitors {
		competitors[c.SourceID] = c
	}

	for _, race := range doc.Races {
		sheet := sheetRace{Race: race}
		for _, result := range doc.Results {
			if result.RaceRef != race.SourceID {
				continue
			}
			competitor := competitors[result.CompetitorRef]
			row := sheetRow{
				Sail:    competitor.SailNumber,
				Helm:    competitor.HelmName,
				Club:    competitor.Club,
				Code:    result.StatusCode,
				Elapsed: result.Elapsed,
			}
			if result.Position != nil {
				row.Position = strconv.Itoa(*result.Position)
			}
			if result.Points != nil {
				row.Points = strconv.FormatFloat(*result.Points, 'f', -1, 64)
			}
			sheet.Rows = append(sheet.Rows, row)
		}
		data.Races = append(data.Races, sheet)
	}

	var buf bytes.Buffer
	if err := resultsTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const resultsSheetTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Georgia, serif; color: #1a1a1a; }
  h1 { font-size: 22px; margin-bottom: 2px; }
  .meta { color: #555; font-size: 13px; margin-bottom: 20px; }
  h2 { font-size: 15px; border-bottom: 1px solid #999; padding-bottom: 3px; margin-top: 24px; }
  table { width: 100%; border-collapse: collapse; font-size: 12px; }
  th { text-align: left; border-bottom: 1px solid #ccc; padding: 4px 6px; }
  td { padding: 4px 6px; border-bottom: 1px solid #eee; }
  .pos { width: 36px; }
</style>
</head>
<body>
  <h1>{{.Event.Name}}</h1>
  <div class="meta">
    {{if .Event.Venue}}{{.Event.Venue}} &middot; {{end}}
    {{if .Event.BoatClass}}{{.Event.BoatClass}} &middot; {{end}}
    {{formatDate .Event.StartDate}}
  </div>
  {{range .Races}}
  <h2>{{if .Race.Name}}{{.Race.Name}}{{else}}Race {{.Race.SourceID}}{{end}} {{if .Race.Date}}&mdash; {{formatDate .Race.Date}}{{end}}</h2>
  <table>
    <tr><th class="pos">Pos</th><th>Sail</th><th>Helm</th><th>Club</th><th>Code</th><th>Elapsed</th><th>Points</th></tr>
    {{range .Rows}}
    <tr>
      <td>{{.Position}}</td><td>{{.Sail}}</td><td>{{.Helm}}</td><td>{{.Club}}</td>
      <td>{{.Code}}</td><td>{{.Elapsed}}</td><td>{{.Points}}</td>
    </tr>
    {{end}}
  </table>
  {{end}}
</body>
</html>
`
