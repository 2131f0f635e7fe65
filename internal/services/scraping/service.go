package scraping

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pokewatch/internal/detect"
	"pokewatch/internal/extract"
	"pokewatch/internal/metrics"
	"pokewatch/internal/model"
	"pokewatch/internal/repositories"
)

const (
	SourceNone = "none"
	maxSamples = 5
)

type TargetResult struct {
	Target        string   `json:"target"`
	TotalLinks    int      `json:"total_links"`
	NewLinks      int      `json:"new_links"`
	Source        string   `json:"source"`
	DebugHTML     string   `json:"debug_html,omitempty"`
	Samples       []string `json:"samples,omitempty"`
	Persisted     bool     `json:"persisted"`
	FailedBatches int      `json:"failed_batches,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Summary aggregates one orchestration pass. Source, DebugHTML and Samples
// describe the first target.
type Summary struct {
	RunID      string         `json:"run_id"`
	Success    bool           `json:"success"`
	TotalLinks int            `json:"total_links"`
	NewLinks   int            `json:"new_links"`
	Source     string         `json:"source"`
	DebugHTML  string         `json:"debug_html,omitempty"`
	Samples    []string       `json:"samples,omitempty"`
	Targets    []TargetResult `json:"targets"`
	Error      string         `json:"error,omitempty"`
	Shared     bool           `json:"shared,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
}

type Service struct {
	targets   []model.Target
	providers map[string]Provider
	repo      repositories.SeenRepository
	notifier  Notifier
	snapshots SnapshotSaver
	logger    *zap.Logger

	group singleflight.Group
	now   func() time.Time
}

// NewService wires the orchestrator. providers is keyed by provider name;
// names listed on a target but absent from the map are skipped. snapshots may
// be nil.
func NewService(
	targets []model.Target,
	providers map[string]Provider,
	repo repositories.SeenRepository,
	notifier Notifier,
	snapshots SnapshotSaver,
	logger *zap.Logger,
) *Service {
	return &Service{
		targets:   targets,
		providers: providers,
		repo:      repo,
		notifier:  notifier,
		snapshots: snapshots,
		logger:    logger.Named("scraping"),
		now:       time.Now,
	}
}

func (s *Service) Targets() []model.Target {
	return s.targets
}

// Run performs one pass over every target. A call made while a pass is in
// flight waits for it and receives the same summary with Shared set.
func (s *Service) Run(ctx context.Context) Summary {
	leader := false
	v, _, _ := s.group.Do("run", func() (any, error) {
		leader = true
		return s.run(ctx), nil
	})
	summary := v.(Summary)
	if !leader {
		summary.Shared = true
		s.logger.Info("run already in progress, sharing its result", zap.String("run_id", summary.RunID))
	}
	return summary
}

func (s *Service) run(ctx context.Context) Summary {
	started := s.now()
	summary := Summary{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Source:    SourceNone,
		Targets:   make([]TargetResult, 0, len(s.targets)),
	}
	log := s.logger.With(zap.String("run_id", summary.RunID))
	log.Info("run started", zap.Int("targets", len(s.targets)))

	failed := 0
	for _, target := range s.targets {
		res := s.processTarget(ctx, log.With(zap.String("target", target.Name)), target)
		if res.Error != "" {
			failed++
		}
		summary.TotalLinks += res.TotalLinks
		summary.NewLinks += res.NewLinks
		summary.Targets = append(summary.Targets, res)
	}

	if len(summary.Targets) > 0 {
		first := summary.Targets[0]
		summary.Source = first.Source
		summary.DebugHTML = first.DebugHTML
		summary.Samples = first.Samples
	}

	summary.Success = len(s.targets) == 0 || failed < len(s.targets)
	if !summary.Success {
		summary.Error = fmt.Sprintf("all %d targets failed", failed)
	}

	elapsed := s.now().Sub(started)
	summary.DurationMS = elapsed.Milliseconds()
	metrics.RunDuration.Observe(elapsed.Seconds())
	if summary.Success {
		metrics.RunsTotal.WithLabelValues("success").Inc()
	} else {
		metrics.RunsTotal.WithLabelValues("failure").Inc()
	}

	log.Info("run finished",
		zap.Bool("success", summary.Success),
		zap.Int("total_links", summary.TotalLinks),
		zap.Int("new_links", summary.NewLinks),
		zap.Duration("elapsed", elapsed),
	)
	return summary
}

func (s *Service) processTarget(ctx context.Context, log *zap.Logger, target model.Target) (res TargetResult) {
	res = TargetResult{Target: target.Name, Source: SourceNone}

	defer func() {
		if r := recover(); r != nil {
			log.Error("target panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res.Error = fmt.Sprintf("panic: %v", r)
			res.Persisted = false
		}
	}()

	fresh, source, debugName := s.fetch(ctx, log, target)
	res.Source = source
	res.DebugHTML = debugName
	res.TotalLinks = fresh.Len()
	metrics.LinksFound.WithLabelValues(target.Name).Set(float64(fresh.Len()))

	sorted := fresh.Sorted()
	if len(sorted) > maxSamples {
		sorted = sorted[:maxSamples]
	}
	if len(sorted) > 0 {
		res.Samples = sorted
	}

	if fresh.Len() == 0 {
		return res
	}

	seen := s.loadSeen(ctx, log, target.Name)
	added, merged := detect.Diff(fresh, seen)
	res.NewLinks = added.Len()
	log.Info("diff computed",
		zap.Int("found", fresh.Len()), zap.Int("seen", seen.Len()), zap.Int("new", added.Len()))

	if added.Len() == 0 {
		return res
	}
	metrics.NewLinksTotal.WithLabelValues(target.Name).Add(float64(added.Len()))

	for _, batch := range s.notifier.Notify(ctx, added.Sorted()) {
		if batch.Err != nil {
			res.FailedBatches++
			metrics.NotifyBatchesTotal.WithLabelValues("failed").Inc()
			continue
		}
		metrics.NotifyBatchesTotal.WithLabelValues("sent").Inc()
	}
	if res.FailedBatches > 0 {
		log.Warn("some notification batches failed", zap.Int("failed_batches", res.FailedBatches))
	}

	if err := s.repo.Save(ctx, target.Name, merged.Sorted()); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("save").Inc()
		log.Error("persisting seen links failed", zap.Error(err))
		return res
	}
	res.Persisted = true
	return res
}

// fetch walks the target's provider chain and returns the first non-empty
// link set together with the name of the provider that produced it.
func (s *Service) fetch(ctx context.Context, log *zap.Logger, target model.Target) (model.LinkSet, string, string) {
	var (
		attempted int
		failures  int
		empty     *model.Content
	)

	for _, name := range target.Providers {
		provider, ok := s.providers[name]
		if !ok {
			log.Debug("provider not available, skipping", zap.String("provider", name))
			continue
		}
		attempted++
		plog := log.With(zap.String("provider", name))

		content, err := provider.Fetch(ctx, target)
		if err != nil {
			failures++
			metrics.ProviderFetchTotal.WithLabelValues(target.Name, name, "error").Inc()
			plog.Warn("provider failed", zap.Error(err))
			continue
		}
		if content.Provider == "" {
			content.Provider = name
		}

		links, err := extract.Links(content, target)
		if err != nil {
			failures++
			metrics.ProviderFetchTotal.WithLabelValues(target.Name, name, "error").Inc()
			plog.Warn("extraction failed", zap.Error(err))
			continue
		}
		if links.Len() == 0 {
			metrics.ProviderFetchTotal.WithLabelValues(target.Name, name, "empty").Inc()
			plog.Info("provider returned no product links")
			if empty == nil {
				c := content
				empty = &c
			}
			continue
		}

		metrics.ProviderFetchTotal.WithLabelValues(target.Name, name, "links").Inc()
		plog.Info("product links found", zap.Int("links", links.Len()))
		return links, name, ""
	}

	switch {
	case attempted == 0:
		log.Warn("no providers configured for target")
	case failures == attempted:
		log.Warn("all providers failed", zap.Int("attempted", attempted))
	default:
		log.Info("no products found", zap.Int("attempted", attempted))
	}

	debugName := ""
	if empty != nil && s.snapshots != nil {
		debugName = s.snapshots.Save(target.Name, *empty)
	}
	return model.NewLinkSet(), SourceNone, debugName
}

// loadSeen degrades to an empty set when the store cannot be read, accepting
// duplicate notifications over a failed run.
func (s *Service) loadSeen(ctx context.Context, log *zap.Logger, target string) model.LinkSet {
	links, err := s.repo.Load(ctx, target)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("load").Inc()
		if errors.Is(err, repositories.ErrCorrupt) {
			log.Warn("seen store is corrupt, treating as empty", zap.Error(err))
		} else {
			log.Warn("loading seen links failed, treating as empty", zap.Error(err))
		}
		return model.NewLinkSet()
	}
	return model.NewLinkSet(links...)
}
