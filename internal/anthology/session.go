package anthology

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"
)

// Discoverer enumerates the conference listings for one year.
type Discoverer interface {
	Discover(ctx context.Context, year, limit int) ([]Conference, []StageFailure, error)
}

// PaperLister walks the papers of one conference as a lazy sequence.
type PaperLister interface {
	Papers(ctx context.Context, conf Conference, limit int) iter.Seq2[Paper, error]
}

// EmailExtractor resolves one paper into its terminal extraction record.
type EmailExtractor interface {
	Extract(ctx context.Context, paper Paper) Extraction
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Session drives the pipeline across the configured year range. Execution is
// single-threaded and sequential: results land in the report in year,
// conference, paper order, so output is reproducible across runs absent
// upstream content changes.
type Session struct {
	cfg       ScrapeConfig
	discovery Discoverer
	walker    PaperLister
	extractor EmailExtractor
	clock     Clock
	ids       IDGenerator
	logger    *zap.Logger
}

// NewSession wires the pipeline stages into a runnable session.
func NewSession(
	cfg ScrapeConfig,
	discovery Discoverer,
	walker PaperLister,
	extractor EmailExtractor,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) *Session {
	return &Session{
		cfg:       cfg,
		discovery: discovery,
		walker:    walker,
		extractor: extractor,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

// Run executes the whole pipeline and returns the aggregated report. The
// error is non-nil only for invalid configuration or a canceled context;
// per-unit failures are recorded in the report and never abort the run.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scrape config: %w", err)
	}
	runID, err := s.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	report := NewReport(runID, s.clock.Now())

	for year := s.cfg.StartYear; year <= s.cfg.EndYear; year++ {
		s.logger.Info("Starting year", zap.Int("year", year))
		conferences, failures, err := s.discovery.Discover(ctx, year, s.cfg.MaxConferencesPerYear)
		if err != nil {
			report.FinishedAt = s.clock.Now()
			return report, err
		}
		for _, failure := range failures {
			report.RecordStageFailure(failure.Stage)
			stageFailures.WithLabelValues(failure.Stage).Inc()
		}

		for _, conf := range conferences {
			report.ConferencesVisited++
			s.walkConference(ctx, conf, report)
			if ctx.Err() != nil {
				report.FinishedAt = s.clock.Now()
				return report, ctx.Err()
			}
		}
		s.logger.Info("Year complete",
			zap.Int("year", year),
			zap.Int("conferences", len(conferences)),
			zap.Int("emails_so_far", report.EmailsFound()),
		)
	}

	report.FinishedAt = s.clock.Now()
	return report, nil
}

func (s *Session) walkConference(ctx context.Context, conf Conference, report *Report) {
	for paper, err := range s.walker.Papers(ctx, conf, s.cfg.MaxPapersPerConference) {
		if err != nil {
			if errors.Is(err, ErrListingUnavailable) {
				s.logger.Warn("Listing failed",
					zap.String("conference", conf.Venue),
					zap.Int("year", conf.Year),
					zap.Error(err),
				)
				report.RecordListingFailure(conf)
				stageFailures.WithLabelValues("listing").Inc()
				return
			}
			s.logger.Warn("Paper skipped", zap.Error(err))
			report.RecordStageFailure("paper_page")
			stageFailures.WithLabelValues("paper_page").Inc()
			continue
		}
		report.PapersVisited++
		report.Append(s.extractor.Extract(ctx, paper))
		if ctx.Err() != nil {
			return
		}
	}
}
