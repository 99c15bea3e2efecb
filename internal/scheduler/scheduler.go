package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
)

const defaultJobTimeout = 30 * time.Second

// Aggregator is the part of the evidence service the warm-up job drives.
type Aggregator interface {
	Aggregate(ctx context.Context, req evidence.AggregateRequest) (evidence.EvidencePack, error)
}

// Scheduler periodically aggregates configured profiles so that the
// payload cache is fresh before user requests arrive.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	service    Aggregator
	profiles   []evidence.Profile
	interval   time.Duration
	jobTimeout time.Duration
	logger     *slog.Logger
}

// New creates a new Scheduler.
func New(profiles []evidence.Profile, interval time.Duration, service Aggregator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(evidence.KST),
		service:    service,
		profiles:   profiles,
		interval:   interval,
		jobTimeout: defaultJobTimeout,
		logger:     logger,
	}
}

// Start schedules the warm-up job and starts the underlying scheduler.
// It is a no-op when the interval is zero or no profiles are configured.
func (s *Scheduler) Start() error {
	if s.interval <= 0 || len(s.profiles) == 0 {
		s.logger.Info("scheduler: cache warm-up disabled", "interval", s.interval.String(), "profiles", len(s.profiles))
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce aggregates every profile concurrently and reports how many succeeded.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.logger.Info("scheduler: running cache warm-up", "profiles", len(s.profiles))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, p := range s.profiles {
		wg.Add(1)
		go func(p evidence.Profile) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
			defer cancel()

			if _, err := s.service.Aggregate(ctx, evidence.AggregateRequest{Profile: p}); err != nil {
				s.logger.Warn("scheduler: warm-up failed", "region", p.Region, "crop", p.Crop, "error", err)
				return
			}
			mu.Lock()
			ok++
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	s.logger.Info("scheduler: completed cache warm-up", "ok", ok, "failed", len(s.profiles)-ok)
	return ok
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
