package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"regattalog/api/internal/exporter"
)

func newTestServer() (*HTTPServer, *fakeStore, *fakeImporter, *fakeExporter) {
	fs := &fakeStore{}
	fi := &fakeImporter{}
	fe := &fakeExporter{}
	svc := NewService(fs, fi, fe)
	return NewHTTPServer(svc, "*"), fs, fi, fe
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpointReportsDatabaseFailure(t *testing.T) {
	server, fs, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	fs.pingFn = func(context.Context) error { return errors.New("connection refused") }
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestImportEndpointRawText(t *testing.T) {
	server, _, fi, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/regattas/import", strings.NewReader(sampleBLW))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Owner-ID", "user_1")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if fi.lastDoc == nil || fi.lastDoc.Event.Name != "Spring Cup" {
		t.Errorf("document not decoded from raw body: %+v", fi.lastDoc)
	}

	var response ImportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Import.RegattaID != "rg_1" {
		t.Errorf("unexpected regatta id %q", response.Import.RegattaID)
	}
}

func TestImportEndpointJSONEnvelope(t *testing.T) {
	server, _, _, _ := newTestServer()

	body := `{"text":"` + strings.ReplaceAll(sampleBLW, "\n", `\n`) + `","ownerId":"user_1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/regattas/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestImportEndpointMultipartUpload(t *testing.T) {
	server, _, fi, _ := newTestServer()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "spring-cup.blw")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(sampleBLW)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.WriteField("ownerId", "user_1"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/regattas/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if fi.lastDoc == nil || fi.lastDoc.Event.Name != "Spring Cup" {
		t.Errorf("document not decoded from upload: %+v", fi.lastDoc)
	}
}

func TestImportEndpointEmptyBody(t *testing.T) {
	server, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/regattas/import", strings.NewReader("  \n"))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rr.Code)
	}
}

func TestImportEndpointNonBLW(t *testing.T) {
	server, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/regattas/import", strings.NewReader("plain prose"))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["code"] != "NOT_BLW" {
		t.Errorf("unexpected code %v", response["code"])
	}
}

func TestExportEndpointSetsDownloadHeaders(t *testing.T) {
	server, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/regattas/rg_1/export", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="cup.blw"` {
		t.Errorf("unexpected disposition %q", got)
	}
	if !strings.Contains(rr.Body.String(), "[Event]") {
		t.Errorf("export body missing BLW text: %q", rr.Body.String())
	}
}

func TestExportEndpointPassesOptions(t *testing.T) {
	server, _, _, fe := newTestServer()
	var got exporter.Options
	fe.exportFn = func(ctx context.Context, id string, opts exporter.Options) (*exporter.Result, error) {
		got = opts
		return &exporter.Result{Text: "x", Filename: "x.blw", MimeType: "text/plain; charset=utf-8"}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/regattas/rg_1/export?all=1&notes=true", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !got.IncludeAllRaces || !got.IncludeNotes {
		t.Errorf("options not passed through: %+v", got)
	}
}

func TestSearchEndpointRequiresQuery(t *testing.T) {
	server, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	server, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/nonsense", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestGetRegattaEndpoint(t *testing.T) {
	server, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/regattas/rg_1", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["id"] != "rg_1" {
		t.Errorf("unexpected id %v", response["id"])
	}
}
