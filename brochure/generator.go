// Package brochure generates a markdown brochure from a company website and streams
// its progress as events.
package brochure

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mempirate/brochure/backend"
	"github.com/mempirate/brochure/content"
	"github.com/mempirate/brochure/document"
	"github.com/mempirate/brochure/log"
	"github.com/mempirate/brochure/metrics"
	"github.com/mempirate/brochure/prompt"
)

// PLACEHOLDER is emitted before any work starts.
const PLACEHOLDER = "⏳ Generating brochure..."

type EventKind string

const (
	// EventStatus carries the placeholder text.
	EventStatus EventKind = "status"
	// EventFragment is emitted for every streamed delta, with the whole cleaned buffer.
	EventFragment EventKind = "fragment"
	// EventDone is the last event of a successful run.
	EventDone EventKind = "done"
	// EventError is the last event of a failed run.
	EventError EventKind = "error"
)

// Event is one progress update of a generation.
type Event struct {
	Kind EventKind
	// Text is the brochure so far, cleaned.
	Text string
	// Delta is the raw fragment received from the model (fragment events only).
	Delta string
	// Result is set on EventDone.
	Result *Result
	// Err is set on EventError.
	Err error
}

// Result is a finished brochure.
type Result struct {
	ID       string
	Company  string
	URL      string
	Model    string
	Markdown string
	Corpus   *content.Corpus
	Finished time.Time
}

// Document converts the result into an exportable document.
func (r *Result) Document() *document.Document {
	doc := &document.Document{
		Content: r.Markdown,
		Metadata: document.Metadata{
			ID:            r.ID,
			Company:       r.Company,
			Source:        r.URL,
			Model:         r.Model,
			GeneratedTime: r.Finished.UTC().Format(time.RFC3339),
		},
	}

	if r.Corpus != nil {
		for _, s := range r.Corpus.Sections {
			doc.Metadata.Links = append(doc.Metadata.Links, s.URL)
		}
	}

	doc.FindTitle()
	return doc
}

// Aggregator builds the website corpus for a URL.
type Aggregator interface {
	Aggregate(ctx context.Context, origin string) (*content.Corpus, error)
}

// Generator runs the brochure pipeline. It holds no per-run state, so one Generator
// can serve any number of concurrent runs.
type Generator struct {
	log zerolog.Logger

	llm        backend.LLM
	aggregator Aggregator
	model      string
}

func NewGenerator(llm backend.LLM, aggregator Aggregator, model string) *Generator {
	return &Generator{
		log:        log.NewLogger("brochure"),
		llm:        llm,
		aggregator: aggregator,
		model:      model,
	}
}

// Clean removes code fences and the word "markdown" from s.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "```", "")
	return strings.ReplaceAll(s, "markdown", "")
}

// Generate starts a generation and returns its events. The first event is always the
// placeholder status; the last one is EventDone or EventError, after which the channel
// is closed. Canceling ctx stops the run; events not yet received are dropped.
func (g *Generator) Generate(ctx context.Context, company, url string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)
		g.run(ctx, company, url, events)
	}()

	return events
}

func (g *Generator) run(ctx context.Context, company, url string, events chan<- Event) {
	start := time.Now()
	id := uuid.NewString()
	log := g.log.With().Str("id", id).Str("company", company).Str("url", url).Logger()

	send := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	fail := func(err error) {
		if ctx.Err() != nil {
			metrics.Generations.WithLabelValues(metrics.ResultCanceled).Inc()
			log.Info().Err(err).Msg("Generation canceled")
		} else {
			metrics.Generations.WithLabelValues(metrics.ResultError).Inc()
			log.Error().Err(err).Msg("Generation failed")
		}
		send(Event{Kind: EventError, Err: err})
	}

	if !send(Event{Kind: EventStatus, Text: PLACEHOLDER}) {
		fail(ctx.Err())
		return
	}

	log.Info().Msg("Generating brochure")

	corpus, err := g.aggregator.Aggregate(ctx, url)
	if err != nil {
		fail(errors.Wrap(err, "failed to collect website content"))
		return
	}

	user := prompt.CreateBrochurePrompt(company, corpus.Text)

	var reply string
	err = g.llm.Stream(ctx, prompt.BROCHURE_SYSTEM_PROMPT, user, func(delta string) error {
		metrics.Fragments.Inc()

		reply = Clean(reply + delta)
		if !send(Event{Kind: EventFragment, Text: reply, Delta: delta}) {
			return ctx.Err()
		}

		return nil
	})
	if err != nil {
		fail(errors.Wrap(err, "failed to generate brochure"))
		return
	}

	res := &Result{
		ID:       id,
		Company:  company,
		URL:      url,
		Model:    g.model,
		Markdown: reply,
		Corpus:   corpus,
		Finished: time.Now(),
	}

	metrics.Generations.WithLabelValues(metrics.ResultDone).Inc()
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	log.Info().Dur("duration", time.Since(start)).Int("chars", len(reply)).Msg("Brochure generated")

	send(Event{Kind: EventDone, Text: reply, Result: res})
}

// Collect drains events and returns the final result.
func Collect(events <-chan Event) (*Result, error) {
	var (
		res *Result
		err error
	)

	for ev := range events {
		switch ev.Kind {
		case EventDone:
			res = ev.Result
		case EventError:
			err = ev.Err
		}
	}

	if err != nil {
		return nil, err
	}

	if res == nil {
		return nil, errors.New("generation ended without a result")
	}

	return res, nil
}
