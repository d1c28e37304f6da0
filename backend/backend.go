package backend

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mempirate/brochure/config"
	"github.com/mempirate/brochure/log"
)

// LLM is the interface of the language model used by the pipeline. Both calls send a
// two-message (system, user) chat request.
type LLM interface {
	// Complete sends a non-streaming request and returns the trimmed response text.
	Complete(ctx context.Context, system, user string) (string, error)
	// Stream sends a streaming request and calls onDelta for every text fragment, in order.
	// Returning an error from onDelta aborts the stream.
	Stream(ctx context.Context, system, user string, onDelta func(delta string) error) error
}

// Backend talks to an OpenAI-compatible chat completions endpoint.
type Backend struct {
	log zerolog.Logger

	client *openai.Client
	model  openai.ChatModel
}

func NewBackend(cfg *config.Config, opts ...option.RequestOption) *Backend {
	log := log.NewLogger("backend")

	if cfg.BaseURL == "" {
		log.Warn().Msg("OLLAMA_API is not set, model calls will fail")
	}

	log.Info().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Initializing model client")

	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(withTrailingSlash(cfg.BaseURL)))
	}

	client := openai.NewClient(append(base, opts...)...)

	return &Backend{
		log:    log,
		client: client,
		model:  cfg.Model,
	}
}

func (b *Backend) Model() string {
	return b.model
}

func (b *Backend) params(system, user string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		}),
		Model: openai.F(b.model),
	}
}

func (b *Backend) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()

	completion, err := b.client.Chat.Completions.New(ctx, b.params(system, user))
	if err != nil {
		return "", errors.Wrap(err, "failed to create chat completion")
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion has no choices")
	}

	b.log.Debug().Dur("duration", time.Since(start)).Int64("tokens", completion.Usage.TotalTokens).Msg("Completion received")

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func (b *Backend) Stream(ctx context.Context, system, user string, onDelta func(delta string) error) error {
	start := time.Now()

	stream := b.client.Chat.Completions.NewStreaming(ctx, b.params(system, user))
	defer stream.Close()

	chunks := 0
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}

		chunks++
		if err := onDelta(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		return errors.Wrap(err, "chat completion stream failed")
	}

	b.log.Debug().Dur("duration", time.Since(start)).Int("chunks", chunks).Msg("Stream finished")

	return nil
}

// withTrailingSlash makes sure request paths are resolved below the base path
// (e.g. http://localhost:11434/v1/ + chat/completions).
func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
