package styler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"photo-styler/internal/apperr"
	"photo-styler/internal/media"
	"photo-styler/internal/style"
)

type Options struct {
	Generator Generator
	Logger    *slog.Logger
	NewID     func() string
}

// Orchestrator runs a style catalog against one photo, one style at a time.
type Orchestrator struct {
	gen    Generator
	logger *slog.Logger
	newID  func() string
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Orchestrator{
		gen:    opts.Generator,
		logger: logger,
		newID:  newID,
	}
}

func ProgressMessage(styleName string) string {
	return fmt.Sprintf("Generating %q style...", styleName)
}

// Run walks the catalog in order. Before each remote call it reports the
// style about to be attempted; after each success it reports the grown
// result list. The first failure stops the run: the results gathered so far
// are returned together with the classified error.
func (o *Orchestrator) Run(ctx context.Context, img media.Encoded, catalog style.Catalog, onProgress func(Snapshot)) ([]Result, error) {
	emit := func(s Snapshot) {
		if onProgress != nil {
			onProgress(s)
		}
	}

	total := catalog.Len()
	results := make([]Result, 0, total)

	for _, entry := range catalog {
		emit(Snapshot{
			Message:   ProgressMessage(entry.Style),
			Style:     entry.Style,
			Completed: len(results),
			Total:     total,
			Results:   cloneResults(results),
		})

		start := time.Now()
		out, err := o.generate(ctx, img, entry.Instruction)
		if err != nil {
			o.logger.Error("style generation failed",
				"style", entry.Style,
				"completed", len(results),
				"total", total,
				"kind", apperr.KindOf(err),
				"err", err,
			)
			return results, apperr.Wrap(apperr.KindGenerationFailed, "styler.run", fmt.Errorf("style %q: %w", entry.Style, err))
		}

		results = append(results, Result{
			ID:          o.newID(),
			Style:       entry.Style,
			Instruction: entry.Instruction,
			Image:       out,
		})
		o.logger.Info("style generated", "style", entry.Style, "completed", len(results), "total", total, "dur_ms", time.Since(start).Milliseconds())

		emit(Snapshot{
			Message:   ProgressMessage(entry.Style),
			Style:     entry.Style,
			Completed: len(results),
			Total:     total,
			Results:   cloneResults(results),
		})
	}

	return results, nil
}

func (o *Orchestrator) generate(ctx context.Context, img media.Encoded, instruction string) (media.Encoded, error) {
	if o.gen == nil {
		return media.Encoded{}, errors.New("no generator configured")
	}
	return o.gen.Generate(ctx, img, instruction)
}
