package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/calderlab/harvester/internal/anthology"
	"github.com/calderlab/harvester/internal/api"
	"github.com/calderlab/harvester/internal/clock/system"
	"github.com/calderlab/harvester/internal/fetcher"
	uuidgen "github.com/calderlab/harvester/internal/id/uuid"
	"github.com/calderlab/harvester/internal/report"
	"github.com/calderlab/harvester/internal/store"
)

type harvestFlags struct {
	startYear      int
	endYear        int
	maxConferences int
	maxPapers      int
	output         string
}

// newHarvestCmd creates and configures the 'harvest' subcommand, which runs
// the full discovery and extraction pipeline for a year range.
func newHarvestCmd() *cobra.Command {
	flags := &harvestFlags{}
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Runs the proceedings harvest for a year range",
		Long: `Discovers every conference listing for each year in the range, walks
their papers, extracts emails from the PDFs, and writes one CSV row per email
found (or one status row per paper without one).`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvestCommand(cmd, flags)
		},
	}

	cmd.Flags().IntVar(&flags.startYear, "start-year", 0, "first year to harvest (inclusive)")
	cmd.Flags().IntVar(&flags.endYear, "end-year", 0, "last year to harvest (inclusive)")
	cmd.Flags().IntVar(&flags.maxConferences, "max-conferences", 0, "cap on conferences per year (0 = unlimited)")
	cmd.Flags().IntVar(&flags.maxPapers, "max-papers", 0, "cap on papers per conference (0 = unlimited)")
	cmd.Flags().StringVar(&flags.output, "output", "", "CSV output path (default from config)")
	_ = cmd.MarkFlagRequired("start-year")
	_ = cmd.MarkFlagRequired("end-year")

	return cmd
}

func runHarvestCommand(cmd *cobra.Command, flags *harvestFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger

	cfg := anthology.ScrapeConfig{
		StartYear:              flags.startYear,
		EndYear:                flags.endYear,
		MaxConferencesPerYear:  flags.maxConferences,
		MaxPapersPerConference: flags.maxPapers,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid harvest parameters: %w", err)
	}

	session, err := buildSession(cfg, logger)
	if err != nil {
		return err
	}

	if viper.GetBool("metrics.enabled") {
		srv := api.NewServer(viper.GetString("metrics.listen_addr"), logger)
		srv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := srv.Shutdown(ctx); serr != nil {
				logger.Warn("Failed to stop metrics listener", zap.Error(serr))
			}
		}()
	}

	rep, runErr := session.Run(cmd.Context())
	if rep == nil {
		return runErr
	}

	outputPath := flags.output
	if outputPath == "" {
		outputPath = viper.GetString("output.csv_path")
	}
	if err := report.WriteCSV(outputPath, rep); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := persistReport(cmd.Context(), rep, logger); err != nil {
		return err
	}

	logger.Info("Harvest complete",
		zap.String("run_id", rep.RunID),
		zap.String("output", outputPath),
		zap.Int("conferences_visited", rep.ConferencesVisited),
		zap.Int("papers_visited", rep.PapersVisited),
		zap.Int("emails_found", rep.EmailsFound()),
		zap.Any("failures_by_stage", rep.FailuresByStage),
		zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
	)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run harvest: %w", runErr)
	}
	return nil
}

// buildSession wires the pipeline stages from the loaded configuration.
func buildSession(cfg anthology.ScrapeConfig, logger *zap.Logger) (*anthology.Session, error) {
	base, err := url.Parse(viper.GetString("anthology.base_url"))
	if err != nil {
		return nil, fmt.Errorf("parse anthology.base_url: %w", err)
	}

	retry := fetcher.NewRetryPolicy(
		viper.GetInt("fetcher.max_attempts"),
		viper.GetDuration("fetcher.base_backoff"),
		viper.GetDuration("fetcher.max_backoff"),
	)
	client := fetcher.New(fetcher.Config{
		UserAgent: viper.GetString("fetcher.user_agent"),
		Timeout:   viper.GetDuration("fetcher.timeout"),
		MinDelay:  viper.GetDuration("fetcher.min_delay"),
	}, retry, logger)

	classifier := anthology.NewClassifier()
	discovery := anthology.NewDiscovery(base, client, classifier, logger)
	walker := anthology.NewWalker(client, logger)
	extractor := anthology.NewExtractor(client, nil, logger)

	return anthology.NewSession(
		cfg,
		discovery,
		walker,
		extractor,
		system.New(),
		uuidgen.New(),
		logger,
	), nil
}

// persistReport additionally inserts every row into Postgres when a DSN is
// configured. Absent a DSN the store is skipped entirely.
func persistReport(ctx context.Context, rep *anthology.Report, logger *zap.Logger) error {
	dsn := viper.GetString("database.dsn")
	if dsn == "" {
		return nil
	}
	resultStore, err := store.NewResultStore(ctx, store.Config{
		DSN:   dsn,
		Table: viper.GetString("database.table"),
	})
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer resultStore.Close()

	if err := resultStore.StoreReport(ctx, rep, time.Now().UTC()); err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	logger.Info("Results stored", zap.String("run_id", rep.RunID))
	return nil
}
