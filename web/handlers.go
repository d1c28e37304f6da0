package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/mempirate/brochure/brochure"
	"github.com/mempirate/brochure/document"
)

// failureEvent is the SSE name of EventError. "error" is reserved by EventSource for
// connection errors.
const failureEvent = "failure"

type streamPayload struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
	ID       string `json:"id,omitempty"`
}

type failurePayload struct {
	Error string `json:"error"`
}

func params(r *http.Request) (name, url string, err error) {
	name = strings.TrimSpace(r.URL.Query().Get("name"))
	url = strings.TrimSpace(r.URL.Query().Get("url"))

	if url == "" {
		return "", "", errors.New("url is required")
	}

	return name, url, nil
}

// handleStream streams a generation as Server-Sent Events. Every event carries the
// whole brochure so far, as markdown and rendered HTML.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	name, url, err := params(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The request context is canceled when the browser goes away, which stops the generation.
	for ev := range s.generator.Generate(r.Context(), name, url) {
		if err := writeEvent(w, ev); err != nil {
			s.log.Debug().Err(err).Msg("Failed to write event, client gone")
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w io.Writer, ev brochure.Event) error {
	var (
		name    string
		payload any
	)

	switch ev.Kind {
	case brochure.EventError:
		name = failureEvent
		payload = failurePayload{Error: ev.Err.Error()}
	default:
		name = string(ev.Kind)

		html, err := document.RenderHTML(ev.Text)
		if err != nil {
			return err
		}

		p := streamPayload{Markdown: ev.Text, HTML: html}
		if ev.Result != nil {
			p.ID = ev.Result.ID
		}
		payload = p
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// handleDocument runs a generation to completion and returns the brochure as a
// markdown file with YAML front matter. Nothing is stored.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	name, url, err := params(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := brochure.Collect(s.generator.Generate(r.Context(), name, url))
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("Failed to generate brochure document")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	fileName, content, err := res.Document().ToMarkdown()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	io.WriteString(w, content)
}
