package history

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestExportHistoryLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	first, err := svc.RecordExport("rg_1", "[Event]\nname=Cup\n", "Avery", "Initial export")
	if err != nil {
		t.Fatalf("RecordExport() error = %v", err)
	}
	if first.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if _, err := os.Stat(filepath.Join(tempDir, "rg_1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	second, err := svc.RecordExport("rg_1", "[Event]\nname=Cup (amended)\n", "Avery", "After protest")
	if err != nil {
		t.Fatalf("RecordExport() error = %v", err)
	}

	entries, err := svc.History("rg_1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if entries[0].Hash != second.Hash {
		t.Errorf("history not newest-first: %+v", entries)
	}
	if !strings.Contains(entries[0].Message, "After protest") {
		t.Errorf("commit message lost: %q", entries[0].Message)
	}

	text, err := svc.ExportAt("rg_1", first.Hash)
	if err != nil {
		t.Fatalf("ExportAt() error = %v", err)
	}
	if text != "[Event]\nname=Cup\n" {
		t.Errorf("historic export mangled: %q", text)
	}
}

func TestHistoryEmptyForUnknownRegatta(t *testing.T) {
	svc := New(t.TempDir())
	entries, err := svc.History("rg_none", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %d entries", len(entries))
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())
	for i := 0; i < 5; i++ {
		if _, err := svc.RecordExport("rg_1", "[Event]\nname=Cup\n", "Avery", "Export"); err != nil {
			t.Fatalf("RecordExport() error = %v", err)
		}
	}
	entries, err := svc.History("rg_1", 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("limit ignored: got %d entries", len(entries))
	}
}

func TestConcurrentRecordsSerialize(t *testing.T) {
	svc := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RecordExport("rg_1", "[Event]\nname=Cup\n", "Avery", "Export"); err != nil {
				t.Errorf("RecordExport() error = %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := svc.History("rg_1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("expected 4 commits, got %d", len(entries))
	}
}
