// Package cmd wires the CLI: a recurring tracking loop by default, --once
// for a single pass, --summary for today's digest without scraping.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kilebles/ozon-parser/internal/app"
	"github.com/kilebles/ozon-parser/internal/captcha"
	"github.com/kilebles/ozon-parser/internal/config"
	"github.com/kilebles/ozon-parser/internal/notifications"
	"github.com/kilebles/ozon-parser/internal/parser"
	"github.com/kilebles/ozon-parser/internal/sheets"
	"github.com/kilebles/ozon-parser/internal/tracker"
)

var (
	runOnce     bool
	summaryOnly bool
)

var rootCmd = &cobra.Command{
	Use:           "ozon-parser",
	Short:         "Tracks Ozon search positions for configured queries into Google Sheets",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().BoolVar(&runOnce, "once", false, "run a single tracking pass and exit")
	rootCmd.Flags().BoolVar(&summaryOnly, "summary", false, "send today's aggregate notification without scraping")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := app.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sheetsClient, err := sheets.NewClient(ctx, cfg.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sheets client")
	}

	notifier := notifications.NewClient(
		notifications.DefaultBaseURL,
		cfg.TelegramToken,
		cfg.TelegramChatID,
		config.DefaultResilienceConfig.Notify,
	)

	trk := tracker.New(cfg, sheetsClient, backendFactory(cfg), notifier)

	switch {
	case summaryOnly:
		return trk.SendSummary(ctx)
	case runOnce:
		trk.RunOnce(ctx)
	default:
		trk.RunLoop(ctx)
	}
	return nil
}

// backendFactory defers session startup to the tracker, one session per run.
func backendFactory(cfg *app.Config) tracker.BackendFactory {
	return func() (parser.Backend, error) {
		var solver parser.Solver
		if cfg.RuCaptchaKey != "" {
			solver = captcha.NewAutoSolver(
				captcha.NewClient(cfg.RuCaptchaKey, cfg.CaptchaSolveWait),
				parser.NewManualSolver(cfg.ChallengeWait),
			)
		}
		return parser.New(cfg, solver)
	}
}
