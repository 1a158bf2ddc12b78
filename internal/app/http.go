package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"regattalog/api/internal/exporter"
	"regattalog/api/internal/importer"
	"regattalog/api/internal/search"
	"regattalog/api/internal/store"
)

// maxImportBytes caps the accepted upload size. Real BLW files for even
// the largest championships stay well under a megabyte.
const maxImportBytes = 8 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) >= 2 && segments[0] == "api" && segments[1] == "regattas" {
		s.handleRegattas(w, r, segments[2:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleRegattas(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		s.handleListRegattas(w, r)
	case len(rest) == 1 && rest[0] == "import" && r.Method == http.MethodPost:
		s.handleImport(w, r)
	case len(rest) == 1 && r.Method == http.MethodGet:
		s.handleGetRegatta(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "export" && r.Method == http.MethodGet:
		s.handleExport(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "export.pdf" && r.Method == http.MethodGet:
		s.handleExportPDF(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "history" && r.Method == http.MethodGet:
		s.handleHistory(w, r, rest[0])
	case len(rest) == 3 && rest[1] == "history" && r.Method == http.MethodGet:
		s.handleHistoricExport(w, r, rest[0], rest[2])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// handleImport accepts either a raw BLW upload (text/plain) or a JSON
// envelope carrying the text plus ownership fields.
func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request) {
	text, target, err := readImportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
		return
	}

	response, err := s.service.ImportBLW(r.Context(), text, target)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !response.Import.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, response)
}

func readImportRequest(r *http.Request) (string, importer.Target, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxImportBytes)
	body := r.Body
	defer body.Close()

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var payload struct {
			Text           string  `json:"text"`
			OwnerID        string  `json:"ownerId"`
			ClubID         *string `json:"clubId"`
			ChampionshipID *string `json:"championshipId"`
		}
		if err := json.NewDecoder(body).Decode(&payload); err != nil {
			return "", importer.Target{}, fmt.Errorf("invalid JSON body")
		}
		return payload.Text, importer.Target{
			OwnerID:        payload.OwnerID,
			ClubID:         payload.ClubID,
			ChampionshipID: payload.ChampionshipID,
		}, nil
	}

	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", importer.Target{}, fmt.Errorf("missing file field")
		}
		defer file.Close()
		raw, err := io.ReadAll(file)
		if err != nil {
			return "", importer.Target{}, fmt.Errorf("read upload: %w", err)
		}
		return string(raw), importer.Target{OwnerID: r.FormValue("ownerId")}, nil
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", importer.Target{}, fmt.Errorf("read body: %w", err)
	}
	return string(raw), importer.Target{OwnerID: r.Header.Get("X-Owner-ID")}, nil
}

func (s *HTTPServer) handleListRegattas(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.ListRegattas(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regattas": toSummaryViews(summaries)})
}

func (s *HTTPServer) handleGetRegatta(w http.ResponseWriter, r *http.Request, regattaID string) {
	bundle, err := s.service.GetRegatta(r.Context(), regattaID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBundleView(bundle))
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, regattaID string) {
	opts := exportOptions(r)
	result, err := s.service.ExportBLW(r.Context(), regattaID, opts, r.Header.Get("X-Owner-ID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.Text))
}

func (s *HTTPServer) handleExportPDF(w http.ResponseWriter, r *http.Request, regattaID string) {
	opts := exportOptions(r)
	result, err := s.service.ExportPDF(r.Context(), regattaID, opts)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, regattaID string) {
	limit := queryInt(r, "limit", 50)
	entries, err := s.service.ExportHistory(r.Context(), regattaID, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *HTTPServer) handleHistoricExport(w http.ResponseWriter, r *http.Request, regattaID, hash string) {
	text, err := s.service.ExportAt(r.Context(), regattaID, hash)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := search.Query{
		Text:       strings.TrimSpace(r.URL.Query().Get("q")),
		FilterType: search.ResultType(r.URL.Query().Get("type")),
		Limit:      queryInt(r, "limit", 20),
		Offset:     queryInt(r, "offset", 0),
	}
	if q.Text == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "q is required", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		writeError(w, domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details)
		return
	}
	log.Printf("app: %s %s: %v", r.Method, r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
}

func exportOptions(r *http.Request) exporter.Options {
	return exporter.Options{
		IncludeAllRaces: queryBool(r, "all") || queryBool(r, "allRaces"),
		IncludeNotes:    queryBool(r, "notes"),
	}
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

type summaryView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Venue      string `json:"venue,omitempty"`
	BoatClass  string `json:"boatClass,omitempty"`
	StartDate  string `json:"startDate,omitempty"`
	EntryCount int    `json:"entryCount"`
	RaceCount  int    `json:"raceCount"`
	Imported   bool   `json:"imported"`
	UpdatedAt  string `json:"updatedAt"`
}

func toSummaryViews(summaries []store.RegattaSummary) []summaryView {
	views := make([]summaryView, 0, len(summaries))
	for _, summary := range summaries {
		view := summaryView{
			ID:         summary.ID,
			Name:       summary.Name,
			Venue:      summary.Venue,
			BoatClass:  summary.BoatClass,
			EntryCount: summary.EntryCount,
			RaceCount:  summary.RaceCount,
			Imported:   summary.Imported,
			UpdatedAt:  summary.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if summary.StartDate != nil {
			view.StartDate = summary.StartDate.Format("2006-01-02")
		}
		views = append(views, view)
	}
	return views
}

type entryView struct {
	ID           string   `json:"id"`
	SailNumber   string   `json:"sailNumber"`
	BoatClass    string   `json:"boatClass,omitempty"`
	BoatName     string   `json:"boatName,omitempty"`
	HelmName     string   `json:"helmName,omitempty"`
	CrewNames    string   `json:"crewNames,omitempty"`
	Club         string   `json:"club,omitempty"`
	Nationality  string   `json:"nationality,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	RatingSystem string   `json:"ratingSystem,omitempty"`
	FleetName    string   `json:"fleetName,omitempty"`
	DivisionName string   `json:"divisionName,omitempty"`
	Excluded     bool     `json:"excluded"`
	Notes        string   `json:"notes,omitempty"`
}

type raceView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Date          string   `json:"date,omitempty"`
	StartTime     string   `json:"startTime,omitempty"`
	Rank          int      `json:"rank"`
	Status        string   `json:"status"`
	WindSpeed     *float64 `json:"windSpeed,omitempty"`
	WindDirection string   `json:"windDirection,omitempty"`
}

type resultView struct {
	ID              string   `json:"id"`
	RaceID          string   `json:"raceId"`
	EntryID         string   `json:"entryId"`
	Position        *int     `json:"position,omitempty"`
	Elapsed         string   `json:"elapsed,omitempty"`
	Corrected       string   `json:"corrected,omitempty"`
	StatusCode      string   `json:"statusCode,omitempty"`
	Points          *float64 `json:"points,omitempty"`
	Penalty         string   `json:"penalty,omitempty"`
	Redress         bool     `json:"redress"`
	RedressPosition *int     `json:"redressPosition,omitempty"`
}

type bundleView struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Venue         string              `json:"venue,omitempty"`
	Organizer     string              `json:"organizer,omitempty"`
	BoatClass     string              `json:"boatClass,omitempty"`
	StartDate     string              `json:"startDate,omitempty"`
	EndDate       string              `json:"endDate,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	ScoringSystem string              `json:"scoringSystem"`
	CodeValues    map[string]string   `json:"codeValues"`
	DiscardSteps  []store.DiscardStep `json:"discardSteps"`
	Imported      bool                `json:"imported"`
	Entries       []entryView         `json:"entries"`
	Races         []raceView          `json:"races"`
	Results       []resultView        `json:"results"`
}

func toBundleView(bundle store.RegattaBundle) bundleView {
	regatta := bundle.Regatta
	view := bundleView{
		ID:            regatta.ID,
		Name:          regatta.Name,
		Venue:         regatta.Venue,
		Organizer:     regatta.Organizer,
		BoatClass:     regatta.BoatClass,
		Notes:         regatta.Notes,
		ScoringSystem: regatta.ScoringSystem,
		CodeValues:    regatta.CodeValues,
		DiscardSteps:  regatta.DiscardSteps,
		Imported:      regatta.SourceSnapshot != nil,
		Entries:       make([]entryView, 0, len(bundle.Entries)),
		Races:         make([]raceView, 0, len(bundle.Races)),
		Results:       make([]resultView, 0, len(bundle.Results)),
	}
	if regatta.StartDate != nil {
		view.StartDate = regatta.StartDate.Format("2006-01-02")
	}
	if regatta.EndDate != nil {
		view.EndDate = regatta.EndDate.Format("2006-01-02")
	}
	if view.CodeValues == nil {
		view.CodeValues = map[string]string{}
	}
	if view.DiscardSteps == nil {
		view.DiscardSteps = []store.DiscardStep{}
	}

	for _, entry := range bundle.Entries {
		view.Entries = append(view.Entries, entryView{
			ID:           entry.ID,
			SailNumber:   entry.SailNumber,
			BoatClass:    entry.BoatClass,
			BoatName:     entry.BoatName,
			HelmName:     entry.HelmName,
			CrewNames:    entry.CrewNames,
			Club:         entry.Club,
			Nationality:  entry.Nationality,
			Rating:       entry.Rating,
			RatingSystem: entry.RatingSystem,
			FleetName:    entry.FleetName,
			DivisionName: entry.DivisionName,
			Excluded:     entry.Excluded,
			Notes:        entry.Notes,
		})
	}
	for _, race := range bundle.Races {
		rv := raceView{
			ID:            race.ID,
			Name:          race.Name,
			StartTime:     race.StartTime,
			Rank:          race.Rank,
			Status:        race.Status,
			WindSpeed:     race.WindSpeed,
			WindDirection: race.WindDirection,
		}
		if race.Date != nil {
			rv.Date = race.Date.Format("2006-01-02")
		}
		view.Races = append(view.Races, rv)
	}
	for _, result := range bundle.Results {
		view.Results = append(view.Results, resultView{
			ID:              result.ID,
			RaceID:          result.RaceID,
			EntryID:         result.EntryID,
			Position:        result.Position,
			Elapsed:         result.Elapsed,
			Corrected:       result.Corrected,
			StatusCode:      result.StatusCode,
			Points:          result.Points,
			Penalty:         result.Penalty,
			Redress:         result.Redress,
			RedressPosition: result.RedressPosition,
		})
	}
	return view
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
