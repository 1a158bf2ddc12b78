// Package exporter reconstructs a BLW document from store state and
// serializes it for download, either as BLW text or as a printable
// results-sheet PDF.
package exporter

import "errors"

// Format represents the export output format
type Format string

const (
	FormatBLW Format = "blw"
	FormatPDF Format = "pdf"
)

// Options controls what an export includes.
type Options struct {
	// IncludeAllRaces keeps scheduled, abandoned and cancelled races.
	// When false only completed races (and their results) are exported.
	IncludeAllRaces bool
	// IncludeNotes keeps free-text notes on the event and competitors.
	IncludeNotes bool
}

// Result contains the export output
type Result struct {
	Text     string
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrRegattaNotFound indicates the regatta to export does not exist.
	ErrRegattaNotFound = errors.New("export regatta not found")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
