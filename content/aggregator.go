package content

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mempirate/brochure/links"
	"github.com/mempirate/brochure/log"
	"github.com/mempirate/brochure/scrape"
)

const LANDING_PAGE_HEADER = "Landing page:\n"

// LinkSelector picks the brochure-relevant links of a page.
type LinkSelector interface {
	Select(ctx context.Context, page *scrape.Page) (links.Selection, error)
}

// Section is one selected sub-page of the corpus.
type Section struct {
	Link links.Link
	// URL is the resolved URL that was fetched.
	URL    string
	Result scrape.FetchResult
}

// Corpus is the concatenated website content used to ground the brochure.
type Corpus struct {
	Origin string
	// Text is the landing page followed by every selected page, in selection order.
	Text string

	Landing   scrape.FetchResult
	Selection links.Selection
	Sections  []Section
}

// Failed returns the number of pages that could not be fetched.
func (c *Corpus) Failed() int {
	failed := 0
	if !c.Landing.OK() {
		failed++
	}

	for _, s := range c.Sections {
		if !s.Result.OK() {
			failed++
		}
	}

	return failed
}

// Aggregator builds a Corpus from a company website.
type Aggregator struct {
	log zerolog.Logger

	fetcher  scrape.Fetcher
	selector LinkSelector
}

func NewAggregator(fetcher scrape.Fetcher, selector LinkSelector) *Aggregator {
	return &Aggregator{
		log:      log.NewLogger("content"),
		fetcher:  fetcher,
		selector: selector,
	}
}

// Aggregate fetches the landing page at origin, asks for the relevant links and
// fetches each of them in turn. Pages that fail to load contribute nothing; only a
// failing model call or a canceled context aborts.
func (a *Aggregator) Aggregate(ctx context.Context, origin string) (*Corpus, error) {
	corpus := &Corpus{Origin: origin}

	var text strings.Builder
	text.WriteString(LANDING_PAGE_HEADER)

	corpus.Landing = a.fetcher.Fetch(ctx, origin)
	text.WriteString(corpus.Landing.Page.Contents())

	sel, err := a.selector.Select(ctx, corpus.Landing.Page)
	if err != nil {
		return nil, err
	}
	corpus.Selection = sel

	for _, link := range sel.Links {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "aggregation canceled")
		}

		url := links.Resolve(origin, link.URL)
		res := a.fetcher.Fetch(ctx, url)

		text.WriteString("\n\n" + link.Type + "\n")
		text.WriteString(res.Page.Contents())

		corpus.Sections = append(corpus.Sections, Section{
			Link:   link,
			URL:    url,
			Result: res,
		})
	}

	corpus.Text = text.String()

	a.log.Info().
		Str("origin", origin).
		Int("sections", len(corpus.Sections)).
		Int("failed", corpus.Failed()).
		Int("chars", len(corpus.Text)).
		Msg("Website content aggregated")

	return corpus, nil
}
