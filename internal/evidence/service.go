package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/agri-evidence-aggregation/internal/observability"
)

const (
	defaultSourceTimeout  = 10 * time.Second
	defaultDeadlineMargin = 2 * time.Second
)

type state string

const (
	stateResolving   state = "RESOLVING"
	stateFetching    state = "FETCHING"
	stateNormalizing state = "NORMALIZING"
	stateMerging     state = "MERGING"
	stateHinting     state = "HINTING"
	stateAssembled   state = "ASSEMBLED"
)

// Config tunes the orchestrator.
type Config struct {
	Policy      Policy
	HorizonDays int
	HourlyHours int
	// Timeouts bounds each source fetch; missing entries use 10s.
	Timeouts map[SourceName]time.Duration
	// DeadlineMargin is added to the longest source timeout to form the
	// request deadline.
	DeadlineMargin time.Duration
	SoftHints      SoftHintCalculator
}

// Service assembles evidence packs from the configured sources.
type Service struct {
	resolver Resolver
	sources  []Source
	cache    PayloadCache
	cfg      Config
	merger   Merger
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService wires the orchestrator. cache may be nil, in which case every
// request goes upstream.
func NewService(resolver Resolver, sources []Source, cache PayloadCache, cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HorizonDays <= 0 || cfg.HorizonDays > DefaultHorizonDays {
		cfg.HorizonDays = DefaultHorizonDays
	}
	if cfg.HourlyHours <= 0 || cfg.HourlyHours > DefaultHourlyHours {
		cfg.HourlyHours = DefaultHourlyHours
	}
	if cfg.DeadlineMargin <= 0 {
		cfg.DeadlineMargin = defaultDeadlineMargin
	}
	if cfg.SoftHints == (SoftHintCalculator{}) {
		cfg.SoftHints = DefaultSoftHints
	}
	return &Service{
		resolver: resolver,
		sources:  sources,
		cache:    cache,
		cfg:      cfg,
		merger:   Merger{Policy: cfg.Policy, HorizonDays: cfg.HorizonDays, HourlyHours: cfg.HourlyHours},
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

type fetchResult struct {
	source  SourceName
	payload SourcePayload
	outcome FetchOutcome
	err     error
}

// requestLog carries the per-request diagnostic fields.
type requestLog struct {
	id       string
	req      AggregateRequest
	start    time.Time
	outcomes map[SourceName]FetchOutcome
	dropped  int
}

// Aggregate builds one evidence pack. It fails only with an
// *AggregationFailedError (unknown profile or every source unavailable) or
// the caller's context error.
func (s *Service) Aggregate(ctx context.Context, req AggregateRequest) (EvidencePack, error) {
	rl := &requestLog{
		id:       uuid.NewString(),
		req:      req,
		start:    s.clock.Now(),
		outcomes: map[SourceName]FetchOutcome{},
	}

	if req.Demo {
		return s.aggregateDemo(rl)
	}

	s.transition(rl, stateResolving)
	id, err := s.resolver.Resolve(req.Region, req.Crop)
	if err != nil {
		return EvidencePack{}, s.fail(rl, ReasonUnknownProfile, err)
	}

	s.transition(rl, stateFetching)
	results := s.fetchAll(ctx, id)

	s.transition(rl, stateNormalizing)
	normalized := map[SourceName]NormalizedSource{}
	var errs []error
	for _, r := range results {
		rl.outcomes[r.source] = r.outcome
		if r.err != nil {
			errs = append(errs, r.err)
			s.logger.Warn("source unavailable", "req_id", rl.id, "source", r.source, "error", r.err)
			continue
		}
		n, err := Normalize(r.payload)
		s.recordDropped(rl, n)
		if err != nil {
			rl.outcomes[r.source] = FetchUnavailable
			errs = append(errs, Unavailable(r.source, err))
			s.logger.Warn("source payload unusable", "req_id", rl.id, "source", r.source, "error", err)
			continue
		}
		normalized[r.source] = n
	}
	for _, r := range results {
		s.countFetch(r.source, rl.outcomes[r.source])
	}

	if len(normalized) == 0 {
		if err := ctx.Err(); err != nil {
			s.logFailure(rl, "canceled", err)
			return EvidencePack{}, err
		}
		return EvidencePack{}, s.fail(rl, ReasonAllSourcesUnavailable,
			fmt.Errorf("%w: %w", ErrAllSourcesUnavailable, errors.Join(errs...)))
	}

	pack, ok := s.assemble(rl, normalized)
	if !ok {
		return EvidencePack{}, s.fail(rl, ReasonAllSourcesUnavailable,
			fmt.Errorf("%w: sources returned no usable records", ErrAllSourcesUnavailable))
	}
	s.logCompleted(rl, "ok")
	return pack, nil
}

func (s *Service) aggregateDemo(rl *requestLog) (EvidencePack, error) {
	normalized, ok := DemoSources(rl.req.Region, rl.req.Crop)
	if !ok {
		return EvidencePack{}, s.fail(rl, ReasonUnknownProfile, &UnknownProfileError{Region: rl.req.Region, Crop: rl.req.Crop})
	}
	for name := range normalized {
		rl.outcomes[name] = FetchDemo
	}
	pack, _ := s.assemble(rl, normalized)
	s.logCompleted(rl, "demo")
	return pack, nil
}

// assemble runs merge and hinting. It reports false when nothing usable
// remains, so an empty pack is never handed out.
func (s *Service) assemble(rl *requestLog, normalized map[SourceName]NormalizedSource) (EvidencePack, bool) {
	anchor := s.issuedAt(normalized)

	s.transition(rl, stateMerging)
	merged := s.merger.Merge(normalized, anchor)

	s.transition(rl, stateHinting)
	climate := merged.Climate
	pack := EvidencePack{
		Profile:  rl.req.Profile,
		IssuedAt: anchor,
		Climate:  climate,
		Pest: PestSection{
			Crop:         rl.req.Crop,
			Bulletins:    merged.Bulletins,
			Observations: merged.Observations,
			Provenance:   merged.PestProvenance,
		},
		PestHints: ComputePestHints(merged.Observations),
		SoftHints: s.cfg.SoftHints.Compute(climate.Daily, climate.Hourly, climate.Warnings),
		Trends:    ComputeTrends(climate.Daily),
	}
	s.transition(rl, stateAssembled)

	empty := len(climate.Daily) == 0 && len(climate.Hourly) == 0 && len(climate.Warnings) == 0 &&
		len(merged.Bulletins) == 0 && len(merged.Observations) == 0 && len(merged.PestProvenance) == 0
	return pack, !empty
}

// issuedAt is the latest climate issuance, else the pest issuance, else now.
func (s *Service) issuedAt(normalized map[SourceName]NormalizedSource) time.Time {
	var latest time.Time
	for _, name := range climateSources {
		if n, ok := normalized[name]; ok && n.IssuedAt.After(latest) {
			latest = n.IssuedAt
		}
	}
	if latest.IsZero() {
		latest = normalized[SourcePestBulletin].IssuedAt
	}
	if latest.IsZero() {
		latest = s.clock.Now()
	}
	return latest.In(KST)
}

// fetchAll runs every source concurrently under the request deadline.
func (s *Service) fetchAll(ctx context.Context, id Identity) []fetchResult {
	ctx, cancel := context.WithTimeout(ctx, s.requestDeadline())
	defer cancel()

	results := make([]fetchResult, len(s.sources))
	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = s.fetchOne(ctx, src, id)
		}(i, src)
	}
	wg.Wait()
	return results
}

func (s *Service) fetchOne(ctx context.Context, src Source, id Identity) fetchResult {
	name := src.Name()
	timeout := s.timeout(name)
	window := Window{Days: s.cfg.HorizonDays, Hours: s.cfg.HourlyHours}

	// Unusable payloads are rejected here so they never enter the cache.
	fetch := func(fctx context.Context) (SourcePayload, error) {
		fctx, cancel := context.WithTimeout(fctx, timeout)
		defer cancel()
		p, err := src.Fetch(fctx, id, window)
		if err != nil {
			return nil, Unavailable(name, err)
		}
		if _, err := Normalize(p); err != nil {
			return nil, Unavailable(name, err)
		}
		return p, nil
	}

	var (
		payload SourcePayload
		outcome = FetchOK
		err     error
	)
	if s.cache != nil {
		payload, outcome, err = s.cache.GetOrFetch(ctx, name, id, fetch)
	} else {
		payload, err = fetch(ctx)
	}
	if err != nil {
		return fetchResult{source: name, outcome: FetchUnavailable, err: Unavailable(name, err)}
	}
	return fetchResult{source: name, payload: payload, outcome: outcome}
}

func (s *Service) timeout(name SourceName) time.Duration {
	if d, ok := s.cfg.Timeouts[name]; ok && d > 0 {
		return d
	}
	return defaultSourceTimeout
}

func (s *Service) requestDeadline() time.Duration {
	longest := time.Duration(0)
	for _, src := range s.sources {
		longest = max(longest, s.timeout(src.Name()))
	}
	if longest == 0 {
		longest = defaultSourceTimeout
	}
	return longest + s.cfg.DeadlineMargin
}

func (s *Service) transition(rl *requestLog, st state) {
	s.logger.Debug("aggregate.state", "req_id", rl.id, "state", string(st))
}

func (s *Service) recordDropped(rl *requestLog, n NormalizedSource) {
	if len(n.Dropped) == 0 {
		return
	}
	rl.dropped += len(n.Dropped)
	for _, d := range n.Dropped {
		s.logger.Warn("record dropped", "req_id", rl.id, "source", n.Source, "detail", d)
	}
	if s.metrics != nil {
		s.metrics.DroppedRecords.WithLabelValues(string(n.Source)).Add(float64(len(n.Dropped)))
	}
}

func (s *Service) countFetch(name SourceName, outcome FetchOutcome) {
	if s.metrics != nil {
		s.metrics.SourceFetches.WithLabelValues(string(name), string(outcome)).Inc()
	}
}

func (s *Service) fail(rl *requestLog, reason string, err error) error {
	s.logFailure(rl, reason, err)
	return &AggregationFailedError{Reason: reason, Err: err}
}

func (s *Service) diagnosticAttrs(rl *requestLog) []any {
	var fetched, outcomes []any
	for _, name := range AllSources {
		outcome, ok := rl.outcomes[name]
		if !ok {
			outcome = FetchUnavailable
		}
		fetched = append(fetched, string(name), outcome != FetchUnavailable)
		outcomes = append(outcomes, string(name), string(outcome))
	}
	duration := s.clock.Since(rl.start)
	return []any{
		"req_id", rl.id,
		"region", rl.req.Region,
		"crop", rl.req.Crop,
		"demo", rl.req.Demo,
		slog.Group("fetched", fetched...),
		slog.Group("outcomes", outcomes...),
		"dropped_records", rl.dropped,
		"duration_ms", duration.Milliseconds(),
	}
}

func (s *Service) logCompleted(rl *requestLog, result string) {
	s.logger.Info("aggregate.completed", s.diagnosticAttrs(rl)...)
	s.observe(rl, result)
}

func (s *Service) logFailure(rl *requestLog, reason string, err error) {
	attrs := append(s.diagnosticAttrs(rl), "reason", reason, "error", err)
	s.logger.Warn("aggregate.failed", attrs...)
	s.observe(rl, reason)
}

func (s *Service) observe(rl *requestLog, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Aggregations.WithLabelValues(result).Inc()
	s.metrics.AggregationDuration.Observe(s.clock.Since(rl.start).Seconds())
}
