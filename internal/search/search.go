package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultRegatta ResultType = "regatta"
	ResultEntry   ResultType = "entry"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	RegattaID string     `json:"regattaId"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// RegattaRecord is the data we index for a regatta.
type RegattaRecord struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Venue         string `json:"venue"`
	Organizer     string `json:"organizer"`
	BoatClass     string `json:"boatClass"`
	ScoringSystem string `json:"scoringSystem"`
	StartDate     string `json:"startDate"`
}

// EntryRecord is the data we index for a competitor entry.
type EntryRecord struct {
	ID         string `json:"id"`
	RegattaID  string `json:"regattaId"`
	SailNumber string `json:"sailNumber"`
	HelmName   string `json:"helmName"`
	CrewNames  string `json:"crewNames"`
	Club       string `json:"club"`
	FleetName  string `json:"fleetName"`
}
