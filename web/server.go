package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mempirate/brochure/brochure"
	"github.com/mempirate/brochure/log"
)

const (
	STREAM_PATH   = "/api/brochure/stream"
	DOCUMENT_PATH = "/api/brochure.md"
)

//go:embed templates/index.html
var templates embed.FS

var index = template.Must(template.ParseFS(templates, "templates/index.html"))

// Generator starts brochure generations.
type Generator interface {
	Generate(ctx context.Context, company, url string) <-chan brochure.Event
}

// Server is the browser front end: a form, a streaming endpoint and a download endpoint.
type Server struct {
	log       zerolog.Logger
	generator Generator
	mux       *http.ServeMux
}

func NewServer(generator Generator) *Server {
	s := &Server{
		log:       log.NewLogger("web"),
		generator: generator,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET "+STREAM_PATH, s.handleStream)
	s.mux.HandleFunc("GET "+DOCUMENT_PATH, s.handleDocument)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	s.mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.log.Info().Msg("Shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := index.Execute(w, struct{ StreamPath string }{STREAM_PATH}); err != nil {
		s.log.Error().Err(err).Msg("Failed to render index")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}
