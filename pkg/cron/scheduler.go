// Package cron runs the BoQ pipeline against a watched directory on a
// schedule, using robfig/cron, for deployments that want workbooks
// picked up automatically instead of via one-shot CLI invocations.
package cron

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/boqtools/boq-analyzer/internal/boq/dictionary"
	"github.com/boqtools/boq-analyzer/internal/boq/notify"
	"github.com/boqtools/boq-analyzer/internal/boq/pipeline"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

// Scheduler manages the recurring directory sweep using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	dir       string
	cfg       *config.Config
	aliases   *config.CanonicalAliasTable
	dict      *dictionary.CategoryDictionary
	notifier  *notify.Notifier
	recipient string
	logger    *slog.Logger
}

// NewScheduler creates a job scheduler watching dir. notifier may be nil;
// recipient is ignored when it is.
func NewScheduler(dir string, cfg *config.Config, aliases *config.CanonicalAliasTable, dict *dictionary.CategoryDictionary, notifier *notify.Notifier, recipient string, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		dir:       dir,
		cfg:       cfg,
		aliases:   aliases,
		dict:      dict,
		notifier:  notifier,
		recipient: recipient,
		logger:    logger,
	}
}

// Start registers the sweep under the given 5-field cron schedule.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, s.sweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("boq scheduler started",
		slog.String("dir", s.dir),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for any in-flight sweep.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("boq scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers a sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.sweep()
}

// sweep processes every workbook in dir.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	s.logger.Info("starting workbook sweep")

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.xlsx"))
	if err != nil {
		s.logger.Error("failed to list workbooks", slog.Any("error", err))
		return
	}

	processed := 0
	failed := 0

	for _, path := range matches {
		fm, err := pipeline.Run(ctx, path, s.cfg, s.aliases, s.dict, pipeline.NopObserver{}, s.logger)
		if err != nil {
			s.logger.Warn("failed to process workbook",
				slog.String("path", path),
				slog.Any("error", err),
			)
			failed++
			continue
		}

		s.logger.Debug("processed workbook",
			slog.String("path", path),
			slog.Float64("global_confidence", fm.GlobalConfidence),
			slog.Bool("export_ready", fm.ExportReady),
		)
		processed++

		if s.notifier != nil && s.recipient != "" && (!fm.ExportReady || len(fm.ReviewFlags) > 0) {
			if err := s.notifier.NotifyFileProcessed(s.recipient, *fm); err != nil {
				s.logger.Warn("failed to send review notification", slog.String("path", path), slog.Any("error", err))
			}
		}
	}

	s.logger.Info("workbook sweep completed",
		slog.Int("processed", processed),
		slog.Int("failed", failed),
	)
}
