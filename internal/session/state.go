package session

import (
	"time"

	"photo-styler/internal/apperr"
	"photo-styler/internal/styler"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGenerating Phase = "generating"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

type EventType string

const (
	EventStarted  EventType = "started"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventFailed   EventType = "failed"
	EventReset    EventType = "reset"
)

// Topic is the bus topic every controller event is published on.
const Topic = "styler:state"

// State is a copy of the controller's state; mutating it has no effect on
// the controller.
type State struct {
	RunID     string
	Phase     Phase
	ImageName string
	ImageMime string
	ImageSize int64
	Message   string
	Completed int
	Total     int
	Results   []styler.Result
	Error     string
	ErrorKind apperr.Kind
	UpdatedAt time.Time
}

func (s State) HasImage() bool {
	return s.ImageSize > 0
}

func (s State) Progress() styler.Snapshot {
	return styler.Snapshot{
		Message:   s.Message,
		Completed: s.Completed,
		Total:     s.Total,
		Results:   s.Results,
	}
}

type Event struct {
	Type  EventType
	State State
}

func (s State) clone() State {
	out := s
	out.Results = make([]styler.Result, len(s.Results))
	copy(out.Results, s.Results)
	return out
}
