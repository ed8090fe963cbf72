package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Snapshot keeps a local git history of the managed notes directory so that
// migrations and sync applies can be rolled back by hand if needed. All
// operations are best-effort from the caller's point of view; failures are
// reported but never block a write.
type Snapshot struct {
	mu   sync.Mutex
	dir  string
	repo *gogit.Repository
}

// OpenSnapshot opens the repository at dir, initializing one when absent.
func OpenSnapshot(dir string) (*Snapshot, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		if !errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("failed to open repository at %s: %w", dir, err)
		}
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to init repository at %s: %w", dir, err)
		}
	}

	cfg, err := repo.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to read repository config: %w", err)
	}
	if cfg.User.Name == "" {
		cfg.User.Name = "pinn"
		cfg.User.Email = "pinn@localhost"
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to set repository config: %w", err)
		}
	}
	return &Snapshot{dir: dir, repo: repo}, nil
}

// Commit stages everything under the directory and records a commit with the
// given message. A clean worktree is not an error; no commit is made.
func (s *Snapshot) Commit(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	sig := &object.Signature{Name: "pinn", Email: "pinn@localhost", When: time.Now()}
	if _, err := wt.Commit(message, &gogit.CommitOptions{Author: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
