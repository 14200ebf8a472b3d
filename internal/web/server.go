package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"

	"photo-styler/internal/apperr"
	"photo-styler/internal/media"
	"photo-styler/internal/session"
	"photo-styler/internal/style"
)

//go:embed static/*
var staticFS embed.FS

// multipart overhead allowed on top of the image itself
const formSlack = 1 << 20

// Controller is the part of session.Controller the web front end drives.
type Controller interface {
	Start(up media.Upload) (<-chan struct{}, error)
	Retry() (<-chan struct{}, error)
	Reset() error
	State() session.State
	Catalog() style.Catalog
	Subscribe(fn func(session.Event)) error
}

type Options struct {
	Controller Controller
	Logger     *slog.Logger

	// ResultTTL is how long decoded result images stay downloadable.
	ResultTTL time.Duration
}

type Server struct {
	ctrl    Controller
	logger  *slog.Logger
	hub     *hub
	results *cache.Cache
}

type cachedImage struct {
	data     []byte
	mimeType string
	name     string
}

func New(opts Options) (*Server, error) {
	if opts.Controller == nil {
		return nil, errors.New("web: controller is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ttl := opts.ResultTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &Server{
		ctrl:    opts.Controller,
		logger:  logger,
		hub:     newHub(logger),
		results: cache.New(ttl, 2*ttl),
	}
	if err := s.ctrl.Subscribe(s.onEvent); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return s, nil
}

// Handler returns the full route tree, static page included.
func (s *Server) Handler() (http.Handler, error) {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(withLogging(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/styles", s.handleStyles)
		r.Get("/state", s.handleState)
		r.Post("/run", s.handleRun)
		r.Post("/retry", s.handleRetry)
		r.Post("/reset", s.handleReset)
		r.Get("/results/{id}", s.handleResult)
		r.Get("/events", s.handleEvents)
	})
	r.Handle("/*", http.FileServer(http.FS(staticSub)))

	return r, nil
}

// Close ends open event streams.
func (s *Server) Close() {
	s.hub.closeAll()
}

// onEvent runs on the controller's publishing goroutine.
func (s *Server) onEvent(ev session.Event) {
	for _, r := range ev.State.Results {
		if _, ok := s.results.Get(r.ID); ok {
			continue
		}
		data, err := r.Image.Bytes()
		if err != nil {
			s.logger.Error("decode result image", "result_id", r.ID, "style", r.Style, "err", err)
			continue
		}
		s.results.SetDefault(r.ID, cachedImage{data: data, mimeType: r.Image.MimeType, name: r.DownloadName()})
	}

	s.hub.broadcast(eventView{Type: string(ev.Type), State: newStateView(ev.State)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"phase":   s.ctrl.State().Phase,
		"streams": s.hub.count(),
	})
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Catalog())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateView(s.ctrl.State()))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+formSlack)
	if err := r.ParseMultipartForm(media.MaxUploadBytes + formSlack); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, apperr.New(apperr.KindValidation, "web.run", fmt.Sprintf("File is too large. Maximum size is %dMB.", media.MaxUploadMB)))
			return
		}
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing image"})
		return
	}
	defer file.Close()

	up, err := media.Read(file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read image"})
		return
	}

	s.start(w, func() error {
		_, err := s.ctrl.Start(up)
		return err
	})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.start(w, func() error {
		_, err := s.ctrl.Retry()
		return err
	})
}

func (s *Server) start(w http.ResponseWriter, fn func() error) {
	err := fn()
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, newStateView(s.ctrl.State()))
	case errors.Is(err, session.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error()})
	case errors.Is(err, session.ErrNoImage):
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
	case apperr.IsKind(err, apperr.KindValidation):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("start run", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Reset(); err != nil {
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newStateView(s.ctrl.State()))
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	img, ok := s.lookupResult(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "result not found"})
		return
	}

	disposition := "inline"
	if parseBool(r.URL.Query().Get("download")) {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", img.mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, img.name))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.data)
}

// lookupResult prefers the cache and falls back to the live state, which
// outlives the cache TTL until the next reset.
func (s *Server) lookupResult(id string) (cachedImage, bool) {
	if v, ok := s.results.Get(id); ok {
		return v.(cachedImage), true
	}
	for _, res := range s.ctrl.State().Results {
		if res.ID != id {
			continue
		}
		data, err := res.Image.Bytes()
		if err != nil {
			return cachedImage{}, false
		}
		img := cachedImage{data: data, mimeType: res.Image.MimeType, name: res.DownloadName()}
		s.results.SetDefault(id, img)
		return img, true
	}
	return cachedImage{}, false
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, func() any {
		return eventView{Type: eventSnapshot, State: newStateView(s.ctrl.State())}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, apiError{Error: apperr.UserMessage(err), Kind: string(apperr.KindOf(err))})
}

func parseBool(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func withLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
				"dur_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
