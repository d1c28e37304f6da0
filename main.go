package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mempirate/brochure/backend"
	"github.com/mempirate/brochure/brochure"
	"github.com/mempirate/brochure/config"
	"github.com/mempirate/brochure/content"
	"github.com/mempirate/brochure/links"
	"github.com/mempirate/brochure/log"
	"github.com/mempirate/brochure/scrape"
	"github.com/mempirate/brochure/slack"
	"github.com/mempirate/brochure/tui"
	"github.com/mempirate/brochure/web"
)

var statusStyle = lipgloss.NewStyle().Faint(true)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		cfg = new(config.Config)

		logLevel      string
		model         string
		contentFormat string
	)

	cmd := &cobra.Command{
		Use:           "brochure",
		Short:         "Generate a company brochure from its website",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}

			// Flags override the environment.
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}
			if model != "" {
				loaded.Model = model
			}
			if contentFormat != "" {
				loaded.ContentFormat = contentFormat
			}

			if err := loaded.Validate(); err != nil {
				return err
			}

			*cfg = *loaded
			log.SetLevel(cfg.LogLevel)

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&model, "model", "", "Model name passed to the chat completion endpoint")
	cmd.PersistentFlags().StringVar(&contentFormat, "content-format", "", "How page bodies are extracted (text, markdown)")

	cmd.AddCommand(serveCmd(cfg), generateCmd(cfg), tuiCmd(cfg))

	return cmd
}

func serveCmd(cfg *config.Config) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI, and the Slack bot when tokens are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			generator := newGenerator(cfg)
			logger := log.NewLogger("main")

			eg, ctx := errgroup.WithContext(ctx)

			eg.Go(func() error {
				return web.NewServer(generator).Run(ctx, cfg.Addr)
			})

			if cfg.SlackEnabled() {
				handler := slack.NewSlackHandler(cfg.SlackAppToken, cfg.SlackBotToken, generator, cfg.SlackUpdateInterval)
				eg.Go(func() error {
					return handler.Start(ctx)
				})
			} else {
				logger.Info().Msg("Slack tokens not set, Slack bot disabled")
			}

			return eg.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default "+config.DefaultAddr+")")

	return cmd
}

func generateCmd(cfg *config.Config) *cobra.Command {
	var name, url string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a brochure and stream it to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return generate(ctx, newGenerator(cfg), name, url, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Company name")
	cmd.Flags().StringVar(&url, "url", "", "Company landing page URL")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

// generate prints each fragment's new suffix. Cleaning can shorten the buffer, in
// which case the remaining text is printed in full at the end.
func generate(ctx context.Context, generator *brochure.Generator, name, url string, out, status io.Writer) error {
	printed := ""

	for ev := range generator.Generate(ctx, name, url) {
		switch ev.Kind {
		case brochure.EventStatus:
			fmt.Fprintln(status, statusStyle.Render(ev.Text))
		case brochure.EventFragment, brochure.EventDone:
			if len(ev.Text) >= len(printed) && ev.Text[:len(printed)] == printed {
				fmt.Fprint(out, ev.Text[len(printed):])
			} else {
				fmt.Fprint(out, "\n"+ev.Text)
			}
			printed = ev.Text

			if ev.Kind == brochure.EventDone {
				fmt.Fprintln(out)
			}
		case brochure.EventError:
			return ev.Err
		}
	}

	return ctx.Err()
}

func tuiCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Console logs would draw over the UI.
			log.SetLevel("disabled")

			return tui.Run(newGenerator(cfg))
		},
	}
}

func newGenerator(cfg *config.Config) *brochure.Generator {
	llm := backend.NewBackend(cfg)

	scraper := scrape.NewScraper(
		scrape.WithUserAgent(cfg.UserAgent),
		scrape.WithTimeout(cfg.FetchTimeout),
		scrape.WithFormat(cfg.ContentFormat),
	)

	aggregator := content.NewAggregator(scraper, links.NewSelector(llm))

	return brochure.NewGenerator(llm, aggregator, llm.Model())
}
