package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/OWASP-BLT/BLT-Hackathons/internal/config"
	"github.com/OWASP-BLT/BLT-Hackathons/internal/gateway"
	"github.com/OWASP-BLT/BLT-Hackathons/internal/logging"
	"github.com/OWASP-BLT/BLT-Hackathons/internal/store"
	"github.com/OWASP-BLT/BLT-Hackathons/internal/usecase"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetches GitHub activity for all configured hackathons and writes snapshots",
	Long: `Fetches pull requests, reviews and issues for every hackathon in the
configuration document, aggregates them into per-event statistics, and
writes one snapshot file per event plus the global summary.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := logging.Setup(verbose)

		settings, err := config.LoadSettings()
		if err != nil {
			logger.Error("failed to load settings", slog.Any("error", err))
			os.Exit(1)
		}

		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			path = settings.ConfigPath
		}

		hackathons, err := config.Load(path)
		if err != nil {
			logger.Error("failed to load config", slog.String("path", path), slog.Any("error", err))
			os.Exit(1)
		}

		if settings.Token == "" {
			logger.Warn("no GITHUB_TOKEN set - API calls will be rate limited to 60/hr")
		}

		githubGateway, err := gateway.NewGitHubGateway(settings.Token, logger)
		if err != nil {
			logger.Error("failed to create GitHub gateway", slog.Any("error", err))
			os.Exit(1)
		}

		snapshots := store.New(settings.OutputDir, settings.SummaryPath, logger)
		runner := usecase.NewRunner(githubGateway, snapshots, logger)
		runner.Run(ctx, hackathons)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().String("config", "", "Path to the hackathons config document (overrides HACKATHONS_CONFIG_PATH)")
}
