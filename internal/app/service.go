// Package app wires the converter pipeline behind an HTTP API: decode
// and validate incoming BLW text, import it into the store, and serve
// exports with caching, archiving and per-regatta history.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"regattalog/api/internal/blw"
	"regattalog/api/internal/cache"
	"regattalog/api/internal/exporter"
	"regattalog/api/internal/history"
	"regattalog/api/internal/importer"
	"regattalog/api/internal/search"
	"regattalog/api/internal/store"
)

type dataStore interface {
	Ping(ctx context.Context) error
	ListRegattas(ctx context.Context) ([]store.RegattaSummary, error)
	GetRegatta(ctx context.Context, regattaID string) (store.Regatta, error)
	GetRegattaWithChildren(ctx context.Context, regattaID string) (store.RegattaBundle, error)
}

type importRunner interface {
	Import(ctx context.Context, doc *blw.Document, target importer.Target) (*importer.Result, error)
}

type exportBuilder interface {
	Export(ctx context.Context, regattaID string, opts exporter.Options) (*exporter.Result, error)
	ExportPDF(ctx context.Context, regattaID string, opts exporter.Options) (*exporter.Result, error)
}

type exportCache interface {
	Get(ctx context.Context, regattaID, variant string) (cache.Export, error)
	Put(ctx context.Context, regattaID, variant string, export cache.Export) error
	Invalidate(ctx context.Context, regattaID string) error
}

type fileArchive interface {
	StoreSource(ctx context.Context, regattaID, text string) (string, error)
	StoreExport(ctx context.Context, regattaID, filename, text string) (string, error)
}

type historyKeeper interface {
	RecordExport(regattaID, text, author, message string) (history.CommitInfo, error)
	History(regattaID string, limit int) ([]history.CommitInfo, error)
	ExportAt(regattaID, hash string) (string, error)
}

type searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexRegatta(regatta store.Regatta, entries []store.Entry)
}

// Service orchestrates imports and exports. The cache, archive, history
// and search collaborators are optional; a nil one disables that
// concern without changing the core pipeline.
type Service struct {
	store    dataStore
	importer importRunner
	exporter exportBuilder
	cache    exportCache
	archive  fileArchive
	history  historyKeeper
	search   searcher
}

func NewService(st dataStore, imp importRunner, exp exportBuilder) *Service {
	return &Service{store: st, importer: imp, exporter: exp}
}

func (s *Service) WithCache(c exportCache) *Service     { s.cache = c; return s }
func (s *Service) WithArchive(a fileArchive) *Service   { s.archive = a; return s }
func (s *Service) WithHistory(h historyKeeper) *Service { s.history = h; return s }
func (s *Service) WithSearch(sr searcher) *Service      { s.search = sr; return s }

// ImportResponse is what the import endpoint returns: the import
// outcome plus the validation report of the decoded document.
type ImportResponse struct {
	Import     importer.Result `json:"import"`
	Validation blw.Report      `json:"validation"`
}

// ImportBLW decodes, validates and imports one BLW file. Validation
// warnings never block the import; a text with no recognizable sections
// does.
func (s *Service) ImportBLW(ctx context.Context, text string, target importer.Target) (*ImportResponse, error) {
	doc, err := blw.Decode(text)
	if err != nil {
		if errors.Is(err, blw.ErrNoSections) {
			return nil, domainError(http.StatusUnprocessableEntity, "NOT_BLW", "No BLW sections found in the uploaded text", nil)
		}
		return nil, fmt.Errorf("decode blw: %w", err)
	}
	report := blw.Validate(doc)

	result, err := s.importer.Import(ctx, doc, target)
	if err != nil {
		return nil, fmt.Errorf("import document: %w", err)
	}

	if result.Success && result.RegattaID != "" {
		s.postImport(ctx, result.RegattaID, text)
	}

	return &ImportResponse{Import: *result, Validation: report}, nil
}

// postImport runs the best-effort side effects of a successful import.
func (s *Service) postImport(ctx context.Context, regattaID, sourceText string) {
	if s.archive != nil {
		if _, err := s.archive.StoreSource(ctx, regattaID, sourceText); err != nil {
			log.Printf("app: archive source for %s: %v", regattaID, err)
		}
	}
	if s.search != nil {
		bundle, err := s.store.GetRegattaWithChildren(ctx, regattaID)
		if err != nil {
			log.Printf("app: load %s for indexing: %v", regattaID, err)
		} else {
			s.search.IndexRegatta(bundle.Regatta, bundle.Entries)
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, regattaID); err != nil {
			log.Printf("app: invalidate export cache for %s: %v", regattaID, err)
		}
	}
}

// ListRegattas returns the list-view summaries.
func (s *Service) ListRegattas(ctx context.Context) ([]store.RegattaSummary, error) {
	summaries, err := s.store.ListRegattas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list regattas: %w", err)
	}
	if summaries == nil {
		summaries = []store.RegattaSummary{}
	}
	return summaries, nil
}

// GetRegatta returns one regatta with all child rows.
func (s *Service) GetRegatta(ctx context.Context, regattaID string) (store.RegattaBundle, error) {
	bundle, err := s.store.GetRegattaWithChildren(ctx, regattaID)
	if errors.Is(err, store.ErrNotFound) {
		return store.RegattaBundle{}, domainError(http.StatusNotFound, "NOT_FOUND", "Regatta not found", nil)
	}
	if err != nil {
		return store.RegattaBundle{}, fmt.Errorf("get regatta %s: %w", regattaID, err)
	}
	return bundle, nil
}

// ExportBLW produces the BLW text for a regatta, serving from the cache
// when a build for the same options is still fresh. A cache miss
// records the freshly built text in the regatta's export history.
func (s *Service) ExportBLW(ctx context.Context, regattaID string, opts exporter.Options, author string) (*exporter.Result, error) {
	variant := exportVariant(opts)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, regattaID, variant); err == nil {
			return &exporter.Result{
				Text:     cached.Text,
				Filename: cached.Filename,
				MimeType: cached.MimeType,
			}, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Printf("app: export cache read for %s: %v", regattaID, err)
		}
	}

	result, err := s.exporter.Export(ctx, regattaID, opts)
	if errors.Is(err, exporter.ErrRegattaNotFound) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Regatta not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build export for %s: %w", regattaID, err)
	}

	s.postExport(ctx, regattaID, variant, author, result)
	return result, nil
}

// postExport runs the best-effort side effects of a fresh export build.
func (s *Service) postExport(ctx context.Context, regattaID, variant, author string, result *exporter.Result) {
	if s.cache != nil {
		err := s.cache.Put(ctx, regattaID, variant, cache.Export{
			Text:     result.Text,
			Filename: result.Filename,
			MimeType: result.MimeType,
			BuiltAt:  time.Now(),
		})
		if err != nil {
			log.Printf("app: export cache write for %s: %v", regattaID, err)
		}
	}
	if s.archive != nil {
		if _, err := s.archive.StoreExport(ctx, regattaID, result.Filename, result.Text); err != nil {
			log.Printf("app: archive export for %s: %v", regattaID, err)
		}
	}
	if s.history != nil {
		if author == "" {
			author = "system"
		}
		if _, err := s.history.RecordExport(regattaID, result.Text, author, "Export "+result.Filename); err != nil {
			log.Printf("app: record export history for %s: %v", regattaID, err)
		}
	}
}

// ExportPDF renders the results sheet. PDFs are rebuilt on every
// request; only the text form is cached.
func (s *Service) ExportPDF(ctx context.Context, regattaID string, opts exporter.Options) (*exporter.Result, error) {
	result, err := s.exporter.ExportPDF(ctx, regattaID, opts)
	if errors.Is(err, exporter.ErrRegattaNotFound) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Regatta not found", nil)
	}
	if errors.Is(err, exporter.ErrPDFDependencyMissing) {
		return nil, domainError(http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF rendering is not available on this host", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build pdf export for %s: %w", regattaID, err)
	}
	return result, nil
}

// ExportHistory lists recorded exports for a regatta, newest first.
func (s *Service) ExportHistory(ctx context.Context, regattaID string, limit int) ([]history.CommitInfo, error) {
	if s.history == nil {
		return []history.CommitInfo{}, nil
	}
	if _, err := s.store.GetRegatta(ctx, regattaID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Regatta not found", nil)
		}
		return nil, fmt.Errorf("get regatta %s: %w", regattaID, err)
	}
	entries, err := s.history.History(regattaID, limit)
	if err != nil {
		return nil, fmt.Errorf("read export history for %s: %w", regattaID, err)
	}
	return entries, nil
}

// ExportAt returns the archived export text at a given history commit.
func (s *Service) ExportAt(ctx context.Context, regattaID, hash string) (string, error) {
	if s.history == nil {
		return "", domainError(http.StatusNotFound, "NOT_FOUND", "Export history is not enabled", nil)
	}
	text, err := s.history.ExportAt(regattaID, hash)
	if err != nil {
		return "", domainError(http.StatusNotFound, "NOT_FOUND", "No export recorded at that commit", nil)
	}
	return text, nil
}

// Search runs a full-text search over regattas and entries.
func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// Ping reports store connectivity for the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func exportVariant(opts exporter.Options) string {
	variant := "blw"
	if opts.IncludeAllRaces {
		variant += ":all"
	}
	if opts.IncludeNotes {
		variant += ":notes"
	}
	return variant
}
