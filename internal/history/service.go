// Package history keeps a per-regatta git repository of published BLW
// exports. Full id renumbering on every export makes file-level diffs
// against the original noisy, so the history repo is where organizers go
// to compare what was actually published over time.
package history

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const exportFile = "export.blw"

// CommitInfo describes one recorded export.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// RecordExport commits the export text to the regatta's history repo,
// initializing the repo on first use. Identical consecutive exports are
// recorded anyway; the commit timestamp is the point.
func (s *Service) RecordExport(regattaID, text, author, message string) (CommitInfo, error) {
	lock := s.regattaLock(regattaID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(regattaID)
	repo, err := s.openOrInit(path)
	if err != nil {
		return CommitInfo{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, exportFile), []byte(text), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write export file: %w", err)
	}
	if _, err := worktree.Add(exportFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add export: %w", err)
	}
	if message == "" {
		message = "Export"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.regattalog.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit export: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History lists recorded exports, newest first.
func (s *Service) History(regattaID string, limit int) ([]CommitInfo, error) {
	lock := s.regattaLock(regattaID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(regattaID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return []CommitInfo{}, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// ExportAt returns the export text as of a given commit hash.
func (s *Service) ExportAt(regattaID, hash string) (string, error) {
	lock := s.regattaLock(regattaID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(regattaID))
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	commitObj, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", hash, err)
	}
	file, err := commitObj.File(exportFile)
	if err != nil {
		return "", fmt.Errorf("read export from commit %s: %w", hash, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("read export contents: %w", err)
	}
	return contents, nil
}

func (s *Service) openOrInit(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(regattaID string) string {
	return filepath.Join(s.baseDir, regattaID)
}

func (s *Service) regattaLock(regattaID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[regattaID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[regattaID] = lock
	}
	return lock
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String(),
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(author string) string {
	author = strings.ToLower(strings.TrimSpace(author))
	author = strings.ReplaceAll(author, " ", ".")
	if author == "" {
		return "system"
	}
	return author
}
