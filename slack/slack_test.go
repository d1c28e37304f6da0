package slack

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mempirate/brochure/brochure"
	"github.com/mempirate/brochure/log"
)

// message is a posted or edited Slack message.
type message struct {
	channel string
	thread  string
	ts      string
	text    string
}

type fakeSlack struct {
	mu      sync.Mutex
	posts   []message
	updates []message
	postErr error
}

func (f *fakeSlack) PostMessage(channel string, options ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.postErr != nil {
		return "", "", f.postErr
	}

	_, values, err := slack.UnsafeApplyMsgOptions("", channel, "", options...)
	if err != nil {
		return "", "", err
	}

	f.posts = append(f.posts, message{channel: channel, thread: values.Get("thread_ts"), text: values.Get("text")})
	return channel, "222.2", nil
}

func (f *fakeSlack) UpdateMessage(channel, ts string, options ...slack.MsgOption) (string, string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, values, err := slack.UnsafeApplyMsgOptions("", channel, "", options...)
	if err != nil {
		return "", "", "", err
	}

	f.updates = append(f.updates, message{channel: channel, ts: ts, text: values.Get("text")})
	return channel, ts, values.Get("text"), nil
}

func (f *fakeSlack) updateTexts() []string {
	var texts []string
	for _, m := range f.updates {
		texts = append(texts, m.text)
	}
	return texts
}

type fakeGenerator struct {
	events []brochure.Event
	called bool
}

func (g *fakeGenerator) Generate(ctx context.Context, company, url string) <-chan brochure.Event {
	g.called = true

	ch := make(chan brochure.Event, len(g.events))
	for _, ev := range g.events {
		ch <- ev
	}
	close(ch)

	return ch
}

func newTestHandler(api messenger, gen Generator, interval time.Duration) *SlackHandler {
	return &SlackHandler{
		log:       log.NewLogger("slack"),
		api:       api,
		generator: gen,
		interval:  interval,
		urlRegex:  regexp.MustCompile(URL_REGEX),
	}
}

var helloEvents = []brochure.Event{
	{Kind: brochure.EventStatus, Text: brochure.PLACEHOLDER},
	{Kind: brochure.EventFragment, Text: "Hello", Delta: "Hello"},
	{Kind: brochure.EventFragment, Text: "Hello world", Delta: " world"},
	{Kind: brochure.EventDone, Text: "Hello world"},
}

func TestRegex(t *testing.T) {
	// Test the URL regex
	regex := regexp.MustCompile(URL_REGEX)
	if !regex.MatchString("https://example.com") {
		t.Error("URL_REGEX failed to match a URL")
	}
}

func TestParseMention(t *testing.T) {
	s := &SlackHandler{urlRegex: regexp.MustCompile(URL_REGEX)}

	tests := []struct {
		name    string
		text    string
		company string
		url     string
		ok      bool
	}{
		{
			name:    "name and link",
			text:    "<@U0123> Acme Rockets <https://acme.com>",
			company: "Acme Rockets",
			url:     "https://acme.com",
			ok:      true,
		},
		{
			name:    "labeled link",
			text:    "<@U0123> <https://www.acme.com/en|acme.com> Acme",
			company: "Acme",
			url:     "https://www.acme.com/en",
			ok:      true,
		},
		{
			name:    "no name",
			text:    "<@U0123> <https://www.acme.com>",
			company: "acme.com",
			url:     "https://www.acme.com",
			ok:      true,
		},
		{
			name: "no url",
			text: "<@U0123> make me a brochure",
			ok:   false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			company, url, ok := s.parseMention(test.text)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.company, company)
			assert.Equal(t, test.url, url)
		})
	}
}

func TestThrottle(t *testing.T) {
	start := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	th := newThrottle(2 * time.Second)

	assert.True(t, th.allow(start))
	assert.False(t, th.allow(start.Add(time.Second)))
	assert.True(t, th.allow(start.Add(2*time.Second)))
	assert.False(t, th.allow(start.Add(3*time.Second)))
	assert.True(t, th.allow(start.Add(5*time.Second)))
}

func TestGenerateReply(t *testing.T) {
	api := &fakeSlack{}
	s := newTestHandler(api, &fakeGenerator{events: helloEvents}, 0)

	s.generate(context.Background(), "C1", "111.1", "Acme", "https://acme.test")

	require.Len(t, api.posts, 1)
	assert.Equal(t, message{channel: "C1", thread: "111.1", text: brochure.PLACEHOLDER}, api.posts[0])

	assert.Equal(t, []string{"Hello", "Hello world", "Hello world"}, api.updateTexts())
	for _, m := range api.updates {
		assert.Equal(t, "C1", m.channel)
		assert.Equal(t, "222.2", m.ts)
	}
}

func TestGenerateReplyThrottled(t *testing.T) {
	api := &fakeSlack{}
	s := newTestHandler(api, &fakeGenerator{events: helloEvents}, time.Hour)

	s.generate(context.Background(), "C1", "111.1", "Acme", "https://acme.test")

	// The second fragment falls inside the interval, the final text is always written.
	assert.Equal(t, []string{"Hello", "Hello world"}, api.updateTexts())
}

func TestGenerateReplyError(t *testing.T) {
	api := &fakeSlack{}
	gen := &fakeGenerator{events: []brochure.Event{
		{Kind: brochure.EventStatus, Text: brochure.PLACEHOLDER},
		{Kind: brochure.EventError, Err: errors.New("model unavailable")},
	}}
	s := newTestHandler(api, gen, 0)

	s.generate(context.Background(), "C1", "111.1", "Acme", "https://acme.test")

	assert.Equal(t, []string{ReplyFailed + "model unavailable"}, api.updateTexts())
}

func TestGenerateReplyPostFails(t *testing.T) {
	api := &fakeSlack{postErr: errors.New("channel_not_found")}
	gen := &fakeGenerator{events: helloEvents}
	s := newTestHandler(api, gen, 0)

	s.generate(context.Background(), "C1", "111.1", "Acme", "https://acme.test")

	assert.False(t, gen.called)
	assert.Empty(t, api.updates)
}

func TestMentionWithoutURL(t *testing.T) {
	api := &fakeSlack{}
	gen := &fakeGenerator{}
	s := newTestHandler(api, gen, 0)

	s.onAppMention(context.Background(), &slackevents.AppMentionEvent{
		Channel:         "C1",
		Text:            "<@U0123> make me a brochure",
		TimeStamp:       "333.3",
		ThreadTimeStamp: "111.1",
	})

	require.Len(t, api.posts, 1)
	assert.Equal(t, message{channel: "C1", thread: "111.1", text: ReplyMissingURL}, api.posts[0])
	assert.False(t, gen.called)
}
