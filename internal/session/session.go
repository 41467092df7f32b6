// Package session scopes the bot's mutable state to an explicit object with
// a process-bound lifecycle: which chats have a bulk run in flight, where
// their scratch space lives, and where finished runs are recorded.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/tgfetch/tgfetch/internal/history"
	"github.com/tgfetch/tgfetch/internal/sync_"
)

var ErrRunInProgress = errors.New("a bulk run is already in progress for this chat")

type Config struct {
	// ScratchRoot is where per-run scratch directories are created.
	ScratchRoot string
	// History, when non-nil, receives a record for every finished run.
	History *history.Store
}

type runsByChat = map[int64]*Run

type Session struct {
	config    Config
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	runs    *sync_.RWMutexed[runsByChat]
	pending sync.WaitGroup
}

func New(config Config, ctx context.Context) (*Session, error) {
	if err := os.MkdirAll(config.ScratchRoot, 0775); err != nil {
		return nil, fmt.Errorf("failed to create scratch root: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       zap.S().Named("session"),
		runs:      sync_.NewRWMutexed(make(runsByChat)),
	}, nil
}

// Create registers a run for the chat without starting it, so callers can
// subscribe to its events first. At most one run per chat may exist.
func (s *Session) Create(chatID int64, spec RunSpec) (*Run, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("session closed: %w", err)
	}
	run, err := newRun(s, chatID, spec)
	if err != nil {
		return nil, err
	}
	err = s.runs.Locked(func(runs runsByChat) error {
		if _, ok := runs[chatID]; ok {
			return ErrRunInProgress
		}
		runs[chatID] = run
		return nil
	})
	if err != nil {
		run.cleanup()
		return nil, err
	}
	return run, nil
}

// Get returns the chat's in-flight run, or nil.
func (s *Session) Get(chatID int64) (run *Run) {
	_ = s.runs.RLocked(func(runs runsByChat) error {
		run = runs[chatID]
		return nil
	})
	return run
}

// Cancel interrupts the chat's in-flight run, reporting whether there was
// one.
func (s *Session) Cancel(chatID int64) bool {
	run := s.Get(chatID)
	if run == nil {
		return false
	}
	run.Cancel()
	return true
}

func (s *Session) History() *history.Store {
	return s.config.History
}

// Close cancels every in-flight run and waits for their scratch directories
// to be released.
func (s *Session) Close() {
	s.ctxCancel()
	s.pending.Wait()
}

func (s *Session) remove(chatID int64, run *Run) {
	_ = s.runs.Locked(func(runs runsByChat) error {
		if runs[chatID] == run {
			delete(runs, chatID)
		}
		return nil
	})
}

func (s *Session) scratchDir(id RunID) string {
	return filepath.Join(s.config.ScratchRoot, string(id))
}
