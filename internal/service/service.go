package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"propwatch/internal/alerting"
	"propwatch/internal/config"
	"propwatch/internal/fetcher"
	"propwatch/internal/logging"
	"propwatch/internal/observability"
	"propwatch/internal/propagation"
	"propwatch/internal/storage"
)

// Gateway is the cached upstream access the cycle depends on.
type Gateway interface {
	Fetch(ctx context.Context, url string, now time.Time) fetcher.Result
	RequestsLastHour(now time.Time) int
	LastFetchUTC() *time.Time
}

// PayloadWriter receives the document emitted by each cycle.
type PayloadWriter interface {
	SavePayload(payload storage.Payload) error
}

// Runner drives ticks until the context ends.
type Runner interface {
	Run(ctx context.Context, tick func(ctx context.Context, at time.Time) error) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles the collaborators of a Service. Scheduler, Notifier, Metrics
// and Clock are optional.
type Deps struct {
	Gateway   Gateway
	State     storage.StateStore
	Payloads  PayloadWriter
	Notifier  alerting.Notifier
	Scheduler Runner
	Metrics   *observability.Metrics
	Clock     clockwork.Clock
}

// Service orchestrates fetching, evaluation, persistence and alerting.
type Service struct {
	engine   propagation.Config
	query    fetcher.QueryOptions
	anchors  []string
	window   int
	channels []string
	alertsOn bool
	lockKey  int64

	gateway   Gateway
	state     storage.StateStore
	payloads  PayloadWriter
	notifier  alerting.Notifier
	scheduler Runner
	metrics   *observability.Metrics
	clock     clockwork.Clock
	locker    storage.AdvisoryLocker
	logger    zerolog.Logger

	mu     sync.RWMutex
	latest *storage.Payload
}

// New constructs the evaluation service.
func New(cfg *config.Config, engine propagation.Config, deps Deps, logger zerolog.Logger) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var locker storage.AdvisoryLocker
	if l, ok := deps.State.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		engine: engine,
		query: fetcher.QueryOptions{
			BaseURL:       cfg.Upstream.BaseURL,
			WindowMinutes: cfg.Propagation.WindowMinutes,
			ReportLimit:   cfg.Upstream.ReportLimit,
			AppContact:    cfg.Upstream.AppContact,
		},
		anchors:   append([]string(nil), cfg.Propagation.Anchors...),
		window:    cfg.Propagation.WindowMinutes,
		channels:  cfg.Alerting.Channels,
		alertsOn:  cfg.Alerting.Enabled,
		lockKey:   cfg.Database.AdvisoryLockKey,
		gateway:   deps.Gateway,
		state:     deps.State,
		payloads:  deps.Payloads,
		notifier:  deps.Notifier,
		scheduler: deps.Scheduler,
		metrics:   deps.Metrics,
		clock:     clock,
		locker:    locker,
		logger:    logging.Component(logger, "service"),
	}
}

// Run begins the scheduled evaluation loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket 执行单个时间桶的评估逻辑。
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.RunCycle(ctx, bucket)
	return err
}

// RunCycle performs one evaluation at now: fetch every anchor, evaluate both
// categories, then write the payload followed by the new state. Upstream
// problems degrade the result; only persistence failures are returned.
func (s *Service) RunCycle(ctx context.Context, now time.Time) (storage.Payload, error) {
	started := s.clock.Now()
	payload, err := s.runCycle(ctx, now.UTC())
	s.metrics.ObserveCycle(s.clock.Since(started), err)
	return payload, err
}

func (s *Service) runCycle(ctx context.Context, now time.Time) (storage.Payload, error) {
	var (
		records   []propagation.ReceptionRecord
		notes     []string
		reporting int
		upstream  bool
	)

	for _, anchor := range s.anchors {
		url := fetcher.BuildQueryURL(s.query, anchor)
		res := s.fetch(ctx, url, now)
		if res.Err != nil {
			notes = append(notes, fmt.Sprintf("%s: %v", anchor, res.Err))
		}
		if !res.HasBody() {
			continue
		}
		upstream = true
		parsed := propagation.ParseReports(res.Body, now, s.engine)
		if len(parsed) > 0 {
			reporting++
		}
		records = append(records, parsed...)
		s.logger.Debug().
			Str("anchor", anchor).
			Str("provenance", string(res.Provenance)).
			Int("records", len(parsed)).
			Msg("anchor processed")
	}

	deduped := propagation.Dedupe(records)
	nvisRecords, mainlandRecords := propagation.Classify(deduped, s.engine)

	previous := s.loadState(ctx)
	lastFetch := s.lastFetch()
	nvis, mainland := propagation.Summarize(nvisRecords, mainlandRecords, previous.Previous(), propagation.Evidence{
		AnchorsReporting: reporting,
		LastFetch:        lastFetch,
		Now:              now,
	}, s.engine)

	timestamp := storage.FormatUTC(now)
	payload := storage.Payload{
		TimestampUTC:  timestamp,
		WindowMinutes: s.window,
		NVIS:          storage.NewCategoryPayload(nvis),
		Mainland:      storage.NewCategoryPayload(mainland),
		Sources: storage.Sources{
			Upstream: storage.UpstreamSource{
				OK:               upstream,
				LastFetchUTC:     formatOptional(lastFetch),
				RequestsLastHour: s.requestsLastHour(now),
			},
			Notes: strings.Join(notes, "; "),
		},
	}

	if s.payloads != nil {
		if err := s.payloads.SavePayload(payload); err != nil {
			return payload, fmt.Errorf("write payload: %w", err)
		}
	}
	if s.state != nil {
		next := storage.NewPersistedState(nvis.Status, mainland.Status, timestamp)
		if err := s.state.SaveState(ctx, next); err != nil {
			return payload, fmt.Errorf("write state: %w", err)
		}
	}

	s.setLatest(payload)
	for _, summary := range []propagation.IndicatorSummary{nvis, mainland} {
		s.metrics.ObserveIndicator(string(summary.Category), summary.Status, summary.Score, summary.VaraScore, summary.RecordsTotal)
	}

	s.logger.Info().
		Int("records", len(deduped)).
		Int("anchors_reporting", reporting).
		Str("nvis", nvis.Status).
		Int("nvis_score", nvis.Score).
		Str("mainland", mainland.Status).
		Int("mainland_score", mainland.Score).
		Bool("upstream_ok", upstream).
		Msg("cycle complete")

	s.notifyTransition(ctx, now, previous.Previous().NVIS, nvis)
	s.notifyTransition(ctx, now, previous.Previous().Mainland, mainland)
	return payload, nil
}

// LatestPayload returns the payload of the last successful cycle, or nil.
func (s *Service) LatestPayload() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil
	}
	return *s.latest
}

// CheckReadiness reports ready once a cycle has completed and the state
// database, when used, answers.
func (s *Service) CheckReadiness(ctx context.Context) error {
	s.mu.RLock()
	done := s.latest != nil
	s.mu.RUnlock()
	if !done {
		return errors.New("no cycle completed yet")
	}
	if p, ok := s.state.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, url string, now time.Time) fetcher.Result {
	if s.gateway == nil {
		return fetcher.Result{Provenance: fetcher.ProvenanceUnavailable, Err: errors.New("upstream gateway not configured")}
	}
	return s.gateway.Fetch(ctx, url, now)
}

func (s *Service) lastFetch() *time.Time {
	if s.gateway == nil {
		return nil
	}
	return s.gateway.LastFetchUTC()
}

func (s *Service) requestsLastHour(now time.Time) int {
	if s.gateway == nil {
		return 0
	}
	return s.gateway.RequestsLastHour(now)
}

func (s *Service) loadState(ctx context.Context) storage.PersistedState {
	if s.state == nil {
		return storage.PersistedState{}
	}
	state, err := s.state.LoadState(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrStateCorrupt) {
			s.logger.Warn().Err(err).Msg("state unreadable, evaluating without hysteresis")
		} else {
			s.logger.Error().Err(err).Msg("failed to load state, evaluating without hysteresis")
		}
		return storage.PersistedState{}
	}
	return state
}

func (s *Service) setLatest(payload storage.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &payload
}

func (s *Service) notifyTransition(ctx context.Context, now time.Time, previous string, summary propagation.IndicatorSummary) {
	if !s.alertsOn || s.notifier == nil {
		return
	}
	if previous == "" || previous == summary.Status {
		return
	}
	note := alerting.Notification{
		Timestamp:  now,
		Category:   string(summary.Category),
		Previous:   previous,
		Current:    summary.Status,
		Score:      summary.Score,
		Confidence: summary.Confidence,
		VaraClass:  summary.VaraClass,
		VaraScore:  summary.VaraScore,
		Explain:    summary.Explain,
		Channels:   s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("category", note.Category).Msg("failed to dispatch alert")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := storage.FormatUTC(*t)
	return &s
}
