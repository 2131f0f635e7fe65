package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pokewatch/internal/services/scraping"
)

type Runner interface {
	Run(ctx context.Context) scraping.Summary
}

// Scheduler triggers a run on a cron spec. An empty spec disables it.
type Scheduler struct {
	cron    *cron.Cron
	service Runner
	spec    string
	logger  *zap.Logger
}

func New(spec string, service Runner, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: service,
		spec:    spec,
		logger:  logger.Named("scheduler"),
	}
}

func (s *Scheduler) Enabled() bool {
	return s.spec != ""
}

func (s *Scheduler) Start() error {
	if !s.Enabled() {
		s.logger.Info("scheduler disabled, runs are triggered over HTTP only")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		s.logger.Info("scheduled run triggered")
		summary := s.service.Run(context.Background())
		s.logger.Info("scheduled run finished",
			zap.String("run_id", summary.RunID),
			zap.Bool("success", summary.Success),
			zap.Int("new_links", summary.NewLinks),
		)
	})
	if err != nil {
		return fmt.Errorf("invalid SCRAPE_CRON %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
