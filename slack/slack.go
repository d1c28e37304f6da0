package slack

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/mempirate/brochure/brochure"
	"github.com/mempirate/brochure/log"
)

// https://stackoverflow.com/a/3809435
const URL_REGEX = `https?:\/\/(www\.)?[-a-zA-Z0-9@:%._\+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_\+.~#?&//=]*)`

const (
	ReplyMissingURL = "There doesn't seem to be a URL in your message. Try `@brochure Acme https://acme.com`."
	ReplyFailed     = "Failed to generate brochure: "
)

// Generator starts brochure generations.
type Generator interface {
	Generate(ctx context.Context, company, url string) <-chan brochure.Event
}

// messenger posts and edits messages. Implemented by *slack.Client.
type messenger interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessage(channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
}

type SlackHandler struct {
	log    zerolog.Logger
	client *socketmode.Client
	api    messenger

	generator Generator
	interval  time.Duration

	urlRegex *regexp.Regexp
}

func NewSlackHandler(appToken, botToken string, generator Generator, interval time.Duration) *SlackHandler {
	api := slack.New(
		botToken,
		// slack.OptionDebug(true),
		slack.OptionAppLevelToken(appToken),
	)

	client := socketmode.New(api)

	return &SlackHandler{
		log:       log.NewLogger("slack"),
		client:    client,
		api:       api,
		generator: generator,
		interval:  interval,
		urlRegex:  regexp.MustCompile(URL_REGEX),
	}
}

// Start connects to Slack and handles events until ctx is canceled.
func (s *SlackHandler) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.client.RunContext(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case evt := <-s.client.Events:
			s.handle(ctx, evt)
		}
	}
}

func (s *SlackHandler) handle(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		s.log.Debug().Msg("Connecting to Slack with Socket Mode...")
	case socketmode.EventTypeConnectionError:
		s.log.Warn().Any("data", evt.Data).Msg("Connection failed")
	case socketmode.EventTypeConnected:
		s.log.Info().Msg("Connected to Slack with Socket Mode")
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			s.log.Warn().Msg("Ignored event")
			return
		}

		// Generations take a while, acknowledge right away so Slack doesn't redeliver.
		s.client.Ack(*evt.Request)
		s.onEvent(ctx, apiEvent)
	default:
		s.log.Trace().Str("type", string(evt.Type)).Msg("Ignored event")
	}
}

func (s *SlackHandler) onEvent(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		s.onAppMention(ctx, ev)
	default:
		s.log.Debug().Str("type", event.InnerEvent.Type).Msg("Unhandled callback event")
	}
}

func (s *SlackHandler) onAppMention(ctx context.Context, event *slackevents.AppMentionEvent) {
	// Replies go into the thread of the mention
	threadID := event.TimeStamp
	if event.ThreadTimeStamp != "" {
		threadID = event.ThreadTimeStamp
	}

	company, uri, ok := s.parseMention(event.Text)
	if !ok {
		s.log.Debug().Str("text", event.Text).Msg("Ignoring mention without URL")
		if _, _, err := s.api.PostMessage(event.Channel, slack.MsgOptionText(ReplyMissingURL, false), slack.MsgOptionTS(threadID)); err != nil {
			s.log.Error().Err(err).Msg("Failed to post reply")
		}
		return
	}

	s.log.Info().Str("company", company).Str("url", uri).Str("ts", threadID).Msg("Brochure requested")

	go s.generate(ctx, event.Channel, threadID, company, uri)
}

// generate posts the placeholder in the thread and keeps editing that message while
// the brochure streams in.
func (s *SlackHandler) generate(ctx context.Context, channel, threadID, company, uri string) {
	_, ts, err := s.api.PostMessage(channel, slack.MsgOptionText(brochure.PLACEHOLDER, false), slack.MsgOptionTS(threadID))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to post placeholder")
		return
	}

	update := func(text string) {
		if _, _, _, err := s.api.UpdateMessage(channel, ts, slack.MsgOptionText(text, false)); err != nil {
			s.log.Warn().Err(err).Msg("Failed to update message")
		}
	}

	t := newThrottle(s.interval)
	for ev := range s.generator.Generate(ctx, company, uri) {
		switch ev.Kind {
		case brochure.EventFragment:
			if ev.Text != "" && t.allow(time.Now()) {
				update(ev.Text)
			}
		case brochure.EventDone:
			update(ev.Text)
		case brochure.EventError:
			update(ReplyFailed + ev.Err.Error())
		}
	}
}

var tokenRegex = regexp.MustCompile(`<[^>]*>`)

// parseMention extracts the URL and the company name from a mention like
// "<@U123> Acme <https://acme.com|acme.com>". Without a name, the host is used.
func (s *SlackHandler) parseMention(text string) (company, uri string, ok bool) {
	uri = s.urlRegex.FindString(text)
	if uri == "" {
		return "", "", false
	}

	company = tokenRegex.ReplaceAllString(text, " ")
	company = strings.Replace(company, uri, " ", 1)
	company = strings.Join(strings.Fields(company), " ")

	if company == "" {
		if u, err := url.Parse(uri); err == nil {
			company = strings.TrimPrefix(u.Host, "www.")
		}
	}

	return company, uri, true
}

// throttle limits how often a streamed message is edited.
type throttle struct {
	interval time.Duration
	last     time.Time
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{interval: interval}
}

func (t *throttle) allow(now time.Time) bool {
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}

	t.last = now
	return true
}
