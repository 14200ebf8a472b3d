package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"

	"photo-styler/internal/apperr"
	"photo-styler/internal/media"
	"photo-styler/internal/style"
	"photo-styler/internal/styler"
)

var (
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrNoImage       = errors.New("no image to process")
)

// Runner executes one pass over a catalog. *styler.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, img media.Encoded, catalog style.Catalog, onProgress func(styler.Snapshot)) ([]styler.Result, error)
}

type Options struct {
	Runner  Runner
	Catalog style.Catalog
	Bus     evbus.Bus
	Logger  *slog.Logger

	// BaseContext scopes every run; runs outlive the request that started
	// them. Defaults to context.Background().
	BaseContext context.Context
}

// Controller owns the single active run and its state machine:
//
//	idle -> generating -> complete | failed -> idle (reset)
//
// A new upload from complete or failed discards the previous outcome first.
type Controller struct {
	runner  Runner
	catalog style.Catalog
	bus     evbus.Bus
	logger  *slog.Logger
	baseCtx context.Context

	mu    sync.Mutex
	pubMu sync.Mutex
	state State
	image media.Upload
}

func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	bus := opts.Bus
	if bus == nil {
		bus = evbus.New()
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	return &Controller{
		runner:  opts.Runner,
		catalog: opts.Catalog.Clone(),
		bus:     bus,
		logger:  logger,
		baseCtx: baseCtx,
		state:   State{Phase: PhaseIdle, UpdatedAt: time.Now()},
	}
}

func (c *Controller) Catalog() style.Catalog {
	return c.catalog.Clone()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn for every controller event. Handlers run on the
// publishing goroutine, in state order, and must return quickly without
// calling back into the controller.
func (c *Controller) Subscribe(fn func(Event)) error {
	return c.bus.Subscribe(Topic, fn)
}

// Start validates up and launches a run. The returned channel is closed
// once the run has reached complete or failed.
//
// Start is also accepted from complete or failed, which the bare state machine
// only leaves through Reset: the previous image, results and error are
// dropped as if Reset had run, without a separate reset event.
func (c *Controller) Start(up media.Upload) (<-chan struct{}, error) {
	if err := media.Validate(up); err != nil {
		return nil, err
	}
	if c.runner == nil {
		return nil, errors.New("no runner configured")
	}

	c.mu.Lock()
	if c.state.Phase == PhaseGenerating {
		c.mu.Unlock()
		return nil, ErrRunInProgress
	}

	runID := uuid.NewString()
	c.image = up
	c.state = State{
		RunID:     runID,
		Phase:     PhaseGenerating,
		ImageName: up.Name,
		ImageMime: media.NormalizeMime(up.MimeType),
		ImageSize: up.Size(),
		Total:     c.catalog.Len(),
		Results:   []styler.Result{},
		UpdatedAt: time.Now(),
	}
	c.publishLocked(EventStarted)

	c.logger.Info("run started", "run_id", runID, "image", up.Name, "mime", up.MimeType, "size", up.Size(), "styles", c.catalog.Len())

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.run(runID, media.Encode(up))
	}()
	return done, nil
}

func (c *Controller) run(runID string, img media.Encoded) {
	start := time.Now()
	results, err := c.runner.Run(c.baseCtx, img, c.catalog, func(s styler.Snapshot) {
		c.applyProgress(runID, s)
	})

	c.mu.Lock()
	if c.state.RunID != runID {
		c.mu.Unlock()
		return
	}

	c.state.Message = ""
	c.state.Results = append([]styler.Result(nil), results...)
	c.state.Completed = len(results)
	c.state.UpdatedAt = time.Now()

	if err != nil {
		c.state.Phase = PhaseFailed
		c.state.Error = apperr.UserMessage(err)
		c.state.ErrorKind = apperr.KindOf(err)
		c.logger.Error("run failed", "run_id", runID, "kind", c.state.ErrorKind, "completed", len(results), "dur_ms", time.Since(start).Milliseconds(), "err", err)
		c.publishLocked(EventFailed)
		return
	}

	c.state.Phase = PhaseComplete
	c.logger.Info("run complete", "run_id", runID, "completed", len(results), "dur_ms", time.Since(start).Milliseconds())
	c.publishLocked(EventComplete)
}

func (c *Controller) applyProgress(runID string, s styler.Snapshot) {
	c.mu.Lock()
	if c.state.RunID != runID || c.state.Phase != PhaseGenerating {
		c.mu.Unlock()
		return
	}

	c.state.Message = s.Message
	c.state.Completed = s.Completed
	c.state.Total = s.Total
	c.state.Results = s.Results
	c.state.UpdatedAt = time.Now()
	c.publishLocked(EventProgress)
}

// Retry starts a new run with the image of the previous one.
func (c *Controller) Retry() (<-chan struct{}, error) {
	c.mu.Lock()
	up := c.image
	c.mu.Unlock()

	if up.Size() == 0 {
		return nil, ErrNoImage
	}
	return c.Start(up)
}

// Reset returns a finished controller to idle, discarding image and results.
// It is a no-op while already idle and publishes nothing.
func (c *Controller) Reset() error {
	c.mu.Lock()
	switch c.state.Phase {
	case PhaseGenerating:
		c.mu.Unlock()
		return ErrRunInProgress
	case PhaseIdle:
		c.mu.Unlock()
		return nil
	}

	c.image = media.Upload{}
	c.state = State{Phase: PhaseIdle, Results: []styler.Result{}, UpdatedAt: time.Now()}
	c.publishLocked(EventReset)
	c.logger.Info("state reset")
	return nil
}

// publishLocked must be called with c.mu held and releases it. Events are
// delivered in the order the state changed.
func (c *Controller) publishLocked(t EventType) {
	ev := Event{Type: t, State: c.state.clone()}
	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()

	c.bus.Publish(Topic, ev)
}
