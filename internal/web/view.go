package web

import (
	"time"

	"photo-styler/internal/session"
	"photo-styler/internal/styler"
)

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type imageView struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

type resultView struct {
	ID           string `json:"id"`
	Style        string `json:"style"`
	Prompt       string `json:"prompt"`
	MimeType     string `json:"mime_type"`
	ImageURL     string `json:"image_url"`
	DownloadName string `json:"download_name"`
}

type stateView struct {
	RunID     string       `json:"run_id,omitempty"`
	Phase     string       `json:"phase"`
	Image     *imageView   `json:"image,omitempty"`
	Message   string       `json:"message"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Percent   float64      `json:"percent"`
	Results   []resultView `json:"results"`
	Error     string       `json:"error,omitempty"`
	ErrorKind string       `json:"error_kind,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type eventView struct {
	Type  string    `json:"type"`
	State stateView `json:"state"`
}

// eventSnapshot is the first frame on a new event stream.
const eventSnapshot = "state"

func resultURL(id string) string {
	return "/api/results/" + id
}

func newResultView(r styler.Result) resultView {
	return resultView{
		ID:           r.ID,
		Style:        r.Style,
		Prompt:       r.Instruction,
		MimeType:     r.Image.MimeType,
		ImageURL:     resultURL(r.ID),
		DownloadName: r.DownloadName(),
	}
}

func newStateView(st session.State) stateView {
	out := stateView{
		RunID:     st.RunID,
		Phase:     string(st.Phase),
		Message:   st.Message,
		Completed: st.Completed,
		Total:     st.Total,
		Percent:   st.Progress().Percent(),
		Results:   make([]resultView, 0, len(st.Results)),
		Error:     st.Error,
		ErrorKind: string(st.ErrorKind),
		UpdatedAt: st.UpdatedAt,
	}
	if st.HasImage() {
		out.Image = &imageView{Name: st.ImageName, MimeType: st.ImageMime, Size: st.ImageSize}
	}
	for _, r := range st.Results {
		out.Results = append(out.Results, newResultView(r))
	}
	return out
}
