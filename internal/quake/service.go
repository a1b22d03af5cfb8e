package quake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/quake-monitor/internal/observability"
)

// Window bounds how much of the source one run looks at.
type Window struct {
	Years  int // most recent year directories to visit
	Months int // most recent month pages per year
}

// DefaultWindow is one year, two months.
var DefaultWindow = Window{Years: 1, Months: 2}

// Service orchestrates discovery, parsing and persistence of source events.
type Service struct {
	baseURL  string
	window   Window
	fetcher  PageFetcher
	parser   PageParser
	inserter Inserter
	logger   *zap.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock

	running atomic.Bool

	mu      sync.RWMutex
	last    RunStats
	lastErr error
}

// NewService creates a new Service. baseURL is the source root holding the
// year directories.
func NewService(
	baseURL string,
	window Window,
	fetcher PageFetcher,
	parser PageParser,
	inserter Inserter,
	logger *zap.Logger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
) *Service {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		baseURL:  baseURL,
		window:   window,
		fetcher:  fetcher,
		parser:   parser,
		inserter: inserter,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
	}
}

// Run performs one ingestion pass over the recency window and reports what it
// stored. Only one run may be active at a time; an overlapping call returns
// ErrRunInProgress without touching the source.
func (s *Service) Run(ctx context.Context) (RunStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.Runs.WithLabelValues("overlap").Inc()
		return RunStats{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	s.metrics.RunInProgress.Set(1)
	defer s.metrics.RunInProgress.Set(0)

	stats := RunStats{
		RunID:     uuid.NewString(),
		StartedAt: s.clock.Now().UTC(),
	}
	log := s.logger.With(zap.String("run_id", stats.RunID))
	log.Info("ingestion run started", zap.String("source", s.baseURL))

	err := s.run(ctx, log, &stats)
	stats.Duration = s.clock.Since(stats.StartedAt)
	s.metrics.RunDuration.Observe(stats.Duration.Seconds())

	s.mu.Lock()
	s.last, s.lastErr = stats, err
	s.mu.Unlock()

	if err != nil {
		s.metrics.Runs.WithLabelValues("error").Inc()
		log.Error("ingestion run failed", zap.Error(err), zap.Int("inserted", stats.Inserted))
		return stats, err
	}

	s.metrics.Runs.WithLabelValues("ok").Inc()
	log.Info("ingestion run completed",
		zap.Int("periods", stats.Periods),
		zap.Int("inserted", stats.Inserted),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("skipped", stats.Skipped),
		zap.Int("filtered", stats.Filtered),
		zap.Int("failed_pages", stats.FailedPages),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// LastRun returns the stats and error of the most recent completed run.
func (s *Service) LastRun() (RunStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastErr
}

func (s *Service) run(ctx context.Context, log *zap.Logger, stats *RunStats) error {
	index, err := s.fetcher.Fetch(ctx, s.baseURL)
	if err != nil {
		s.metrics.FetchErrors.WithLabelValues("index").Inc()
		return fmt.Errorf("fetch index: %w", err)
	}
	years, err := s.parser.ListYears(index)
	if err != nil {
		return fmt.Errorf("discover years: %w", err)
	}
	if len(years) == 0 {
		log.Info("no year directories on source; nothing to scrape")
		return nil
	}

	for _, year := range head(years, s.window.Years) {
		if err := ctx.Err(); err != nil {
			return err
		}

		periods, err := s.discoverMonths(ctx, year)
		if err != nil {
			// Keep going with the next year; this one is retried next run.
			stats.FailedPages++
			log.Warn("year discovery failed", zap.String("year", year), zap.Error(err))
			continue
		}

		for _, p := range head(periods, s.window.Months) {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats.Periods++

			if err := s.ingestPeriod(ctx, log, p, stats); err != nil {
				if errors.Is(err, ErrStorageUnavailable) || ctx.Err() != nil {
					return fmt.Errorf("ingest %s: %w", p.Key(), err)
				}
				stats.FailedPages++
				log.Warn("month ingestion failed", zap.String("period", p.Key()), zap.Error(err))
			}
		}
	}
	return nil
}

func (s *Service) discoverMonths(ctx context.Context, year string) ([]Period, error) {
	markup, err := s.fetcher.Fetch(ctx, s.baseURL+year+"/")
	if err != nil {
		s.metrics.FetchErrors.WithLabelValues("year").Inc()
		return nil, err
	}
	return s.parser.ListMonths(markup)
}

// ingestPeriod fetches one month page and offers every candidate to the store.
// Row-level problems are tallied; only fetch, document and storage failures
// are returned.
func (s *Service) ingestPeriod(ctx context.Context, log *zap.Logger, p Period, stats *RunStats) error {
	markup, err := s.fetcher.Fetch(ctx, s.baseURL+p.Path())
	if err != nil {
		s.metrics.FetchErrors.WithLabelValues("month").Inc()
		return err
	}
	rows, err := s.parser.ParseMonth(markup)
	if err != nil {
		return fmt.Errorf("parse month: %w", err)
	}

	var inserted, duplicates int
	for ev, err := range rows {
		switch {
		case errors.Is(err, ErrBelowMagnitudeFloor):
			stats.Filtered++
			s.metrics.RowsFiltered.Inc()
			continue
		case err != nil:
			stats.Skipped++
			s.metrics.RowsSkipped.Inc()
			log.Debug("row skipped", zap.String("period", p.Key()), zap.Error(err))
			continue
		}

		outcome, err := s.inserter.InsertIfAbsent(ctx, ev)
		if err != nil {
			return err
		}
		switch outcome {
		case OutcomeNew:
			inserted++
			stats.Inserted++
			s.metrics.EventsInserted.Inc()
		case OutcomeDuplicate:
			duplicates++
			stats.Duplicates++
			s.metrics.EventsDuplicate.Inc()
		}
	}

	log.Debug("month ingested",
		zap.String("period", p.Key()),
		zap.Int("inserted", inserted),
		zap.Int("duplicates", duplicates),
	)
	return nil
}

// head returns at most n leading elements; n <= 0 means no limit.
func head[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}
