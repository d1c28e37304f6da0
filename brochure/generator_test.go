package brochure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mempirate/brochure/content"
	"github.com/mempirate/brochure/links"
	"github.com/mempirate/brochure/prompt"
	"github.com/mempirate/brochure/scrape"
)

// scriptedLLM answers Complete with selection and streams deltas. It records the prompts it receives.
type scriptedLLM struct {
	selection string
	deltas    []string
	err       error

	mu      sync.Mutex
	system  []string
	prompts []string
}

func (l *scriptedLLM) Complete(_ context.Context, system, user string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.system = append(l.system, system)
	l.prompts = append(l.prompts, user)
	return l.selection, nil
}

func (l *scriptedLLM) Stream(ctx context.Context, system, user string, onDelta func(string) error) error {
	l.mu.Lock()
	l.system = append(l.system, system)
	l.prompts = append(l.prompts, user)
	l.mu.Unlock()

	for _, d := range l.deltas {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onDelta(d); err != nil {
			return err
		}
	}

	return l.err
}

type staticAggregator struct {
	corpus *content.Corpus
	err    error
}

func (a *staticAggregator) Aggregate(context.Context, string) (*content.Corpus, error) {
	return a.corpus, a.err
}

func drain(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestClean(t *testing.T) {
	assert.Equal(t, "\n# Acme\n", Clean("```markdown\n# Acme\n```"))
	assert.Equal(t, "plain", Clean("plain"))
	assert.Equal(t, "``", Clean("``"))
	assert.Equal(t, "Markdown", Clean("Markdown"))
}

func TestGenerateEvents(t *testing.T) {
	llm := &scriptedLLM{deltas: []string{"Hello", " world"}}
	agg := &staticAggregator{corpus: &content.Corpus{Text: "Landing page:\n"}}

	events := drain(NewGenerator(llm, agg, "llama3.2").Generate(context.Background(), "Acme", "https://acme.test"))
	require.Len(t, events, 4)

	assert.Equal(t, EventStatus, events[0].Kind)
	assert.Equal(t, PLACEHOLDER, events[0].Text)

	assert.Equal(t, EventFragment, events[1].Kind)
	assert.Equal(t, "Hello", events[1].Text)
	assert.Equal(t, "Hello", events[1].Delta)

	assert.Equal(t, EventFragment, events[2].Kind)
	assert.Equal(t, "Hello world", events[2].Text)
	assert.Equal(t, " world", events[2].Delta)

	assert.Equal(t, EventDone, events[3].Kind)
	assert.Equal(t, "Hello world", events[3].Text)
	require.NotNil(t, events[3].Result)
	assert.Equal(t, "Hello world", events[3].Result.Markdown)
	assert.Equal(t, "llama3.2", events[3].Result.Model)
	assert.NotEmpty(t, events[3].Result.ID)
}

func TestGenerateCleansWholeBuffer(t *testing.T) {
	// A fence split across deltas is only removed once it is complete.
	llm := &scriptedLLM{deltas: []string{"``", "`mark", "down\n# Acme", "\n``", "`"}}
	agg := &staticAggregator{corpus: &content.Corpus{}}

	events := drain(NewGenerator(llm, agg, "m").Generate(context.Background(), "Acme", "https://acme.test"))

	var texts []string
	for _, ev := range events {
		if ev.Kind == EventFragment {
			texts = append(texts, ev.Text)
		}
	}

	assert.Equal(t, []string{"``", "mark", "\n# Acme", "\n# Acme\n``", "\n# Acme\n"}, texts)
	assert.Equal(t, "\n# Acme\n", events[len(events)-1].Text)
}

func TestGenerateEmptyDeltas(t *testing.T) {
	llm := &scriptedLLM{deltas: []string{"", "Hi", ""}}
	agg := &staticAggregator{corpus: &content.Corpus{}}

	events := drain(NewGenerator(llm, agg, "m").Generate(context.Background(), "Acme", "https://acme.test"))
	require.Len(t, events, 5)
	assert.Equal(t, "", events[1].Text)
	assert.Equal(t, "Hi", events[2].Text)
	assert.Equal(t, "Hi", events[3].Text)
}

func TestGeneratePromptTruncated(t *testing.T) {
	corpus := "Landing page:\n" + strings.Repeat("é", 20_000)
	llm := &scriptedLLM{deltas: []string{"ok"}}
	agg := &staticAggregator{corpus: &content.Corpus{Text: corpus}}

	_, err := Collect(NewGenerator(llm, agg, "m").Generate(context.Background(), "Acme", "https://acme.test"))
	require.NoError(t, err)

	require.Len(t, llm.prompts, 1)
	header := fmt.Sprintf(prompt.BROCHURE_PROMPT, "Acme")
	require.True(t, strings.HasPrefix(llm.prompts[0], header))
	assert.Equal(t, prompt.MAX_CORPUS_CHARS, utf8.RuneCountInString(strings.TrimPrefix(llm.prompts[0], header)))
	assert.Equal(t, prompt.BROCHURE_SYSTEM_PROMPT, llm.system[0])
}

func TestGenerateAggregateError(t *testing.T) {
	llm := &scriptedLLM{}
	agg := &staticAggregator{err: errors.New("model unavailable")}

	events := drain(NewGenerator(llm, agg, "m").Generate(context.Background(), "Acme", "https://acme.test"))
	require.Len(t, events, 2)
	assert.Equal(t, EventStatus, events[0].Kind)
	assert.Equal(t, EventError, events[1].Kind)
	assert.ErrorContains(t, events[1].Err, "model unavailable")
	assert.Empty(t, llm.prompts)
}

func TestGenerateStreamError(t *testing.T) {
	llm := &scriptedLLM{deltas: []string{"partial"}, err: errors.New("connection reset")}
	agg := &staticAggregator{corpus: &content.Corpus{}}

	res, err := Collect(NewGenerator(llm, agg, "m").Generate(context.Background(), "Acme", "https://acme.test"))
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "connection reset")
}

func TestGenerateCancel(t *testing.T) {
	llm := &scriptedLLM{deltas: []string{"a", "b", "c", "d"}}
	agg := &staticAggregator{corpus: &content.Corpus{}}

	ctx, cancel := context.WithCancel(context.Background())
	events := NewGenerator(llm, agg, "m").Generate(ctx, "Acme", "https://acme.test")

	first := <-events
	assert.Equal(t, EventStatus, first.Kind)

	cancel()

	// The channel is closed without blocking, whatever was still pending.
	for ev := range events {
		assert.NotEqual(t, EventDone, ev.Kind)
	}
}

func TestResultDocument(t *testing.T) {
	res := &Result{
		ID:       "id-1",
		Company:  "Acme",
		URL:      "https://acme.test",
		Model:    "llama3.2",
		Markdown: "# Acme Rockets\n\nRockets.",
		Corpus: &content.Corpus{Sections: []content.Section{
			{URL: "https://acme.test/about"},
		}},
	}

	doc := res.Document()
	assert.Equal(t, "Acme Rockets", doc.Metadata.Title)
	assert.Equal(t, "Acme", doc.Metadata.Company)
	assert.Equal(t, []string{"https://acme.test/about"}, doc.Metadata.Links)
}

// TestEndToEnd runs the whole pipeline against a fake website: the model selects only
// the about page, so careers is never fetched.
func TestEndToEnd(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	pages := map[string]string{
		"/":        `<html><head><title>Acme</title></head><body><p>Acme makes rockets.</p><a href="/about">About</a><a href="/careers">Careers</a></body></html>`,
		"/about":   `<html><head><title>About Acme</title></head><body><p>Family owned since 1949.</p></body></html>`,
		"/careers": `<html><head><title>Careers</title></head><body><p>We are hiring.</p></body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		fmt.Fprint(w, pages[r.URL.Path])
	}))
	defer srv.Close()

	llm := &scriptedLLM{
		selection: `{"links":[{"type":"about page","url":"/about"}]}`,
		deltas:    []string{"```markdown\n", "# Acme\n", "Rockets since 1949.\n", "```"},
	}

	scraper := scrape.NewScraper()
	agg := content.NewAggregator(scraper, links.NewSelector(llm))

	res, err := Collect(NewGenerator(llm, agg, "llama3.2").Generate(context.Background(), "Acme", srv.URL))
	require.NoError(t, err)

	assert.Equal(t, []string{"/", "/about"}, paths)

	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[0], "/about\n/careers")

	brochurePrompt := llm.prompts[1]
	assert.Contains(t, brochurePrompt, "**Acme**")
	assert.Contains(t, brochurePrompt, "Website content:\nLanding page:\nWebpage Title:\nAcme\n")
	assert.Contains(t, brochurePrompt, "Acme makes rockets.")
	assert.Contains(t, brochurePrompt, "\n\nabout page\nWebpage Title:\nAbout Acme\nWebpage Contents:\nFamily owned since 1949.")
	assert.NotContains(t, brochurePrompt, "We are hiring.")

	assert.Equal(t, "\n# Acme\nRockets since 1949.\n", res.Markdown)
	assert.NotContains(t, res.Markdown, "```")
	assert.Equal(t, []string{srv.URL + "/about"}, res.Document().Metadata.Links)
}
