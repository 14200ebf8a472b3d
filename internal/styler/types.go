package styler

import (
	"context"

	"photo-styler/internal/media"
	"photo-styler/internal/style"
)

// Generator produces one styled image for one instruction.
type Generator interface {
	Generate(ctx context.Context, img media.Encoded, instruction string) (media.Encoded, error)
}

// Result is one finished variant. It is never modified after creation.
type Result struct {
	ID          string        `json:"id"`
	Style       string        `json:"style"`
	Instruction string        `json:"prompt"`
	Image       media.Encoded `json:"-"`
}

// URL is a data reference the presentation layer can display directly.
func (r Result) URL() string {
	return r.Image.DataURL()
}

func (r Result) DownloadName() string {
	return style.DownloadName(r.Style, r.Image.Extension())
}

// Snapshot is the progress record emitted at each step boundary.
type Snapshot struct {
	Message   string   `json:"message"`
	Style     string   `json:"style,omitempty"`
	Completed int      `json:"completed"`
	Total     int      `json:"total"`
	Results   []Result `json:"results"`
}

func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}

func cloneResults(in []Result) []Result {
	out := make([]Result, len(in))
	copy(out, in)
	return out
}
