package links

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mempirate/brochure/backend"
	"github.com/mempirate/brochure/log"
	"github.com/mempirate/brochure/metrics"
	"github.com/mempirate/brochure/prompt"
	"github.com/mempirate/brochure/scrape"
)

// Selector asks the model which of a page's links belong in a brochure.
type Selector struct {
	log zerolog.Logger
	llm backend.LLM
}

func NewSelector(llm backend.LLM) *Selector {
	return &Selector{
		log: log.NewLogger("links"),
		llm: llm,
	}
}

// Select sends the page's links to the model and parses its answer. A malformed answer
// is not an error (see Selection.Outcome); a failing model call is.
func (s *Selector) Select(ctx context.Context, page *scrape.Page) (Selection, error) {
	s.log.Debug().Str("url", page.URL).Int("candidates", len(page.Links)).Msg("Selecting links")

	raw, err := s.llm.Complete(ctx, prompt.LINK_SYSTEM_PROMPT, prompt.CreateLinksPrompt(page.URL, page.Links))
	if err != nil {
		return Selection{Links: []Link{}}, errors.Wrap(err, "failed to select links")
	}

	s.log.Debug().Str("response", raw).Msg("Link selection response")

	sel := ParseSelection(raw)

	metrics.LinkSelections.WithLabelValues(string(sel.Outcome)).Inc()
	metrics.SelectedLinks.Add(float64(len(sel.Links)))

	if sel.Unparsable() {
		s.log.Warn().Str("response", raw).Msg("Link selection response is not valid JSON, selecting no links")
	}

	s.log.Info().Str("outcome", string(sel.Outcome)).Interface("links", sel.Links).Msg("Found links")

	return sel, nil
}
