package scrape

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mempirate/brochure/config"
	"github.com/mempirate/brochure/log"
	"github.com/mempirate/brochure/metrics"
	"github.com/mempirate/brochure/util"
)

// NoTitle is used as the title of pages that don't have a <title> element.
const NoTitle = "No title found"

// maxBodySize caps how much of a response body is read.
const maxBodySize = 16 * util.MiB

// Page is a fetched web page, reduced to what the brochure pipeline needs.
type Page struct {
	URL   string
	Title string
	// Text is the visible text of the body, one trimmed text node per line
	// (or markdown, when the scraper is configured for it).
	Text string
	// Links are the raw, non-empty href values of all anchors, in document order.
	Links []string

	StatusCode int
	Size       int64
}

// Contents renders the page as a labeled text block. Pages without a title or
// without text render as the empty string.
func (p *Page) Contents() string {
	if p == nil || p.Title == "" || p.Text == "" {
		return ""
	}

	return "Webpage Title:\n" + p.Title + "\nWebpage Contents:\n" + p.Text + "\n\n"
}

// FetchResult is the outcome of a fetch. Page is never nil: on failure it is an
// empty page for the requested URL, and Err holds the reason.
type FetchResult struct {
	Page *Page
	Err  error
}

func (r FetchResult) OK() bool {
	return r.Err == nil
}

// Fetcher fetches and parses a single page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// Scraper fetches pages over plain HTTP with a fixed user agent.
type Scraper struct {
	log zerolog.Logger

	client    *http.Client
	userAgent string
	format    config.ContentFormat
}

type Option func(*Scraper)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scraper) {
		s.client = client
	}
}

func WithUserAgent(ua string) Option {
	return func(s *Scraper) {
		s.userAgent = ua
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *Scraper) {
		s.client.Timeout = timeout
	}
}

// WithFormat selects plain text (default) or markdown page text.
func WithFormat(format config.ContentFormat) Option {
	return func(s *Scraper) {
		s.format = format
	}
}

func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		log:       log.NewLogger("scrape"),
		client:    &http.Client{Timeout: config.DefaultTimeout},
		userAgent: config.DefaultUserAgent,
		format:    config.FormatText,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Fetch downloads and parses the page at url. It never panics and never returns
// a nil page; failures are reported through FetchResult.Err.
func (s *Scraper) Fetch(ctx context.Context, url string) FetchResult {
	start := time.Now()
	page := &Page{URL: url}

	body, contentType, status, err := s.download(ctx, url)
	if err != nil {
		metrics.PagesFetched.WithLabelValues(metrics.ResultError).Inc()
		s.log.Warn().Err(err).Str("url", url).Msg("Failed to fetch page, continuing with empty content")
		return FetchResult{Page: page, Err: err}
	}

	parsed, err := parse(url, body, contentType, s.format)
	if err != nil {
		metrics.PagesFetched.WithLabelValues(metrics.ResultError).Inc()
		s.log.Warn().Err(err).Str("url", url).Msg("Failed to parse page, continuing with empty content")
		return FetchResult{Page: page, Err: err}
	}

	parsed.StatusCode = status
	parsed.Size = int64(len(body))

	metrics.PagesFetched.WithLabelValues(metrics.ResultOK).Inc()
	s.log.Debug().
		Str("url", url).
		Int("status", status).
		Str("size", util.FormatBytes(parsed.Size)).
		Int("links", len(parsed.Links)).
		Dur("duration", time.Since(start)).
		Msg("Page fetched")

	return FetchResult{Page: parsed}
}

// download performs the GET request and returns the raw body with its Content-Type.
// Any status code is accepted, the body is parsed as whatever the server returned.
func (s *Scraper) download(ctx context.Context, url string) ([]byte, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", 0, errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", 0, errors.Wrapf(err, "failed to get %s", url)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", 0, errors.Wrap(err, "failed to read body")
	}

	return body, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}
