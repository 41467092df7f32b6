package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tgfetch/tgfetch/generic"
	"github.com/tgfetch/tgfetch/internal/bulk"
	"github.com/tgfetch/tgfetch/internal/history"
	"github.com/tgfetch/tgfetch/internal/pubsub"
)

type RunID string

func NewRunID() RunID {
	return RunID(generic.Unwrap(uuid.NewRandom()).String())
}

type RunStatus string

const (
	StatusNew       RunStatus = "new"
	StatusListing   RunStatus = "listing"
	StatusRunning   RunStatus = "running"
	StatusComplete  RunStatus = "complete"
	StatusError     RunStatus = "error"
	StatusCancelled RunStatus = "cancelled"
)

// RunSpec is everything needed to execute one bulk run. Config.ScratchDir
// is filled in by the session; any value set by the caller is ignored.
type RunSpec struct {
	SourceURL string
	Config    bulk.Config
	Deps      bulk.Deps
}

type RunState struct {
	ID         RunID
	ChatID     int64
	SourceURL  string
	Mode       bulk.DeliveryMode
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Discovered int
	Processed  int
	Containers int
	Error      string
}

// Run is one bulk operation in flight. Its scratch directory exists from
// creation until execute returns, on every path.
type Run struct {
	session    *Session
	spec       RunSpec
	scratchDir string
	log        *zap.SugaredLogger

	ctx       context.Context
	ctxCancel context.CancelFunc

	stateMu sync.RWMutex
	state   RunState

	startOnce sync.Once

	events *pubsub.Publisher[Event]
	done   chan struct{}
}

func newRun(s *Session, chatID int64, spec RunSpec) (*Run, error) {
	id := NewRunID()
	scratchDir := s.scratchDir(id)
	if err := os.MkdirAll(scratchDir, 0775); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	spec.Config.ScratchDir = scratchDir

	ctx, cancel := context.WithCancel(s.ctx)
	r := &Run{
		session:    s,
		spec:       spec,
		scratchDir: scratchDir,
		log:        s.log.Named("run").With("run_id", id, "chat_id", chatID),
		ctx:        ctx,
		ctxCancel:  cancel,
		state: RunState{
			ID:        id,
			ChatID:    chatID,
			SourceURL: spec.SourceURL,
			Mode:      spec.Config.Mode,
			Status:    StatusNew,
			StartedAt: time.Now(),
		},
		events: pubsub.NewPublisher[Event](),
		done:   make(chan struct{}),
	}
	return r, nil
}

func (r *Run) ID() RunID {
	return r.State().ID
}

func (r *Run) State() RunState {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state
}

// Subscribe returns a subscriber for this run's events. Subscribe before
// the run starts to observe everything.
func (r *Run) Subscribe() *pubsub.Subscriber[Event] {
	return r.events.Subscribe()
}

// Start launches the run on its own goroutine. Start more than once is a
// no-op.
func (r *Run) Start() {
	r.startOnce.Do(func() {
		s := r.session
		chatID := r.State().ChatID
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			r.execute()
			s.remove(chatID, r)
		}()
	})
}

// Cancel requests interruption; the run stops between items.
func (r *Run) Cancel() {
	r.ctxCancel()
}

// Done closes when the run has fully finished, scratch cleanup included.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) execute() {
	defer close(r.done)
	defer r.events.Close()
	defer r.cleanup()
	defer r.ctxCancel()

	r.updateState(func(rs *RunState) { rs.Status = StatusListing })
	r.log.Infow("run starting", "source", r.spec.SourceURL, "mode", r.spec.Config.Mode)

	deps := r.spec.Deps
	deps.Reporter = &eventReporter{run: r, inner: deps.Reporter}
	controller := bulk.New(r.spec.Config, deps)

	report, err := controller.Run(r.ctx, r.spec.SourceURL)
	r.finish(report, err)
}

func (r *Run) finish(report *bulk.Report, err error) {
	r.updateState(func(rs *RunState) {
		rs.FinishedAt = time.Now()
		switch {
		case err != nil && r.ctx.Err() != nil:
			rs.Status = StatusCancelled
			rs.Error = err.Error()
		case err != nil:
			rs.Status = StatusError
			rs.Error = err.Error()
		case r.ctx.Err() != nil:
			rs.Status = StatusCancelled
			rs.Discovered = report.Discovered
			rs.Processed = report.Processed
			rs.Containers = report.Containers
		default:
			rs.Status = StatusComplete
			rs.Discovered = report.Discovered
			rs.Processed = report.Processed
			rs.Containers = report.Containers
		}
	})
	r.events.Send(RunFinished{runEvent{r}, report, err})

	if err != nil {
		r.log.Errorw("run failed", "err", err)
	}
	r.record(report)
}

func (r *Run) record(report *bulk.Report) {
	store := r.session.History()
	if store == nil {
		return
	}
	state := r.State()
	rec := history.Record{
		RunID:      string(state.ID),
		ChatID:     state.ChatID,
		SourceURL:  state.SourceURL,
		Mode:       string(state.Mode),
		Discovered: state.Discovered,
		Processed:  state.Processed,
		Containers: state.Containers,
		Error:      state.Error,
		FinishedAt: state.FinishedAt,
	}
	if report != nil {
		for _, receipt := range report.Receipts {
			rec.Receipts = append(rec.Receipts, receipt.DirectURL)
		}
	}
	if err := store.Append(rec); err != nil {
		r.log.Warnw("failed to record run history", "err", err)
	}
}

func (r *Run) cleanup() {
	if err := os.RemoveAll(r.scratchDir); err != nil {
		r.log.Warnw("failed to remove scratch dir", "dir", r.scratchDir, "err", err)
	}
}

func (r *Run) updateState(f func(*RunState)) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	f(&r.state)
}
