package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"propwatch/internal/logging"
	"propwatch/internal/observability"
	"propwatch/internal/storage"
)

const ledgerWindow = time.Hour

// Provenance tags where a gateway result came from.
type Provenance string

const (
	ProvenanceNetwork     Provenance = "network"
	ProvenanceCache       Provenance = "cache"
	ProvenanceStale       Provenance = "stale"
	ProvenanceUnavailable Provenance = "unavailable"
)

// Result is the outcome of one gateway call. Err is set for the stale and
// unavailable cases.
type Result struct {
	Body       []byte
	Provenance Provenance
	Err        error
}

// FromCache reports whether the body was served without a fresh fetch.
func (r Result) FromCache() bool {
	return r.Provenance == ProvenanceCache || r.Provenance == ProvenanceStale
}

// HasBody reports whether there is any content to parse.
func (r Result) HasBody() bool {
	return len(r.Body) > 0
}

type cacheDocument struct {
	Requests     []ledgerEntry             `json:"requests"`
	Responses    map[string]cachedResponse `json:"responses"`
	LastFetchUTC *string                   `json:"last_fetch_utc"`
}

type ledgerEntry struct {
	TSUTC string `json:"ts_utc"`
}

type cachedResponse struct {
	FetchedUTC string `json:"fetched_utc"`
	Content    string `json:"content"`
}

func emptyCacheDocument() cacheDocument {
	return cacheDocument{Requests: []ledgerEntry{}, Responses: map[string]cachedResponse{}}
}

// GatewayOptions parameterise the caching gateway.
type GatewayOptions struct {
	CachePath          string
	MinRefetchInterval time.Duration
	RequestsPerSecond  float64
	BreakerFailures    uint32
	BreakerCooldown    time.Duration
}

// Gateway serves upstream documents through a JSON file cache and keeps a
// rolling ledger of real network requests. The cache file is read and
// rewritten in full on every call; concurrent processes must not share it.
type Gateway struct {
	opts      GatewayOptions
	transport Transport
	clock     clockwork.Clock
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	metrics   *observability.Metrics
	logger    zerolog.Logger

	mu      sync.Mutex
	session Session
}

// NewGateway constructs a gateway around transport.
func NewGateway(opts GatewayOptions, transport Transport, clock clockwork.Clock, metrics *observability.Metrics, logger zerolog.Logger) *Gateway {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.MinRefetchInterval < 0 {
		opts.MinRefetchInterval = 0
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	g := &Gateway{
		opts:      opts,
		transport: transport,
		clock:     clock,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logging.Component(logger, "gateway"),
	}

	if opts.BreakerFailures > 0 {
		settings := gobreaker.Settings{
			Name:    "pskreporter",
			Timeout: opts.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= opts.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
				g.metrics.SetBreakerOpen(to == gobreaker.StateOpen)
			},
		}
		g.breaker = gobreaker.NewCircuitBreaker(settings)
	}
	return g
}

// Fetch returns the document at url. A cached copy younger than the minimum
// re-fetch interval is served without touching the network. On a network
// failure the last cached copy is returned as stale; with nothing cached the
// result is unavailable.
func (g *Gateway) Fetch(ctx context.Context, url string, now time.Time) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	doc := g.load()
	doc.Requests = pruneLedger(doc.Requests, now)

	if body, ok := freshEntry(doc.Responses, url, now, g.opts.MinRefetchInterval); ok {
		g.save(doc)
		g.metrics.ObserveFetch(string(ProvenanceCache), 0)
		g.metrics.SetRequestsLastHour(len(doc.Requests))
		g.logger.Debug().Str("url", logging.RedactURL(url)).Msg("served from cache")
		return Result{Body: []byte(body), Provenance: ProvenanceCache}
	}

	start := g.clock.Now()
	body, err := g.fetchNetwork(ctx, url, now)
	elapsed := g.clock.Since(start)
	if err != nil {
		g.save(doc)
		g.metrics.SetRequestsLastHour(len(doc.Requests))
		if fallback := doc.Responses[url].Content; fallback != "" {
			g.metrics.ObserveFetch(string(ProvenanceStale), elapsed)
			g.logger.Warn().Err(err).Str("url", logging.RedactURL(url)).Msg("upstream fetch failed, serving stale cache")
			return Result{Body: []byte(fallback), Provenance: ProvenanceStale, Err: err}
		}
		g.metrics.ObserveFetch(string(ProvenanceUnavailable), elapsed)
		g.logger.Error().Err(err).Str("url", logging.RedactURL(url)).Msg("upstream fetch failed, nothing cached")
		return Result{Provenance: ProvenanceUnavailable, Err: err}
	}

	stamp := storage.FormatUTC(now)
	doc.Responses[url] = cachedResponse{FetchedUTC: stamp, Content: string(body)}
	doc.Requests = append(doc.Requests, ledgerEntry{TSUTC: stamp})
	doc.LastFetchUTC = &stamp
	g.save(doc)

	g.metrics.ObserveFetch(string(ProvenanceNetwork), elapsed)
	g.metrics.SetRequestsLastHour(len(doc.Requests))
	g.logger.Info().Str("url", logging.RedactURL(url)).Int("bytes", len(body)).Dur("elapsed", elapsed).Msg("upstream fetch complete")
	return Result{Body: body, Provenance: ProvenanceNetwork}
}

// RequestsLastHour prunes the ledger and returns how many network fetches
// happened in the trailing hour.
func (g *Gateway) RequestsLastHour(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	doc := g.load()
	doc.Requests = pruneLedger(doc.Requests, now)
	g.save(doc)
	g.metrics.SetRequestsLastHour(len(doc.Requests))
	return len(doc.Requests)
}

// LastFetchUTC returns the time of the most recent successful network fetch.
func (g *Gateway) LastFetchUTC() *time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	doc := g.load()
	if doc.LastFetchUTC == nil {
		return nil
	}
	t, err := storage.ParseUTC(*doc.LastFetchUTC)
	if err != nil {
		return nil
	}
	return &t
}

func (g *Gateway) fetchNetwork(ctx context.Context, url string, now time.Time) ([]byte, error) {
	if g.transport == nil {
		return nil, errors.New("no upstream transport configured")
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	if !g.session.Valid(now) {
		session, err := g.transport.Warmup(ctx, now)
		if err != nil {
			g.logger.Debug().Err(err).Msg("warmup failed")
		} else {
			g.session = session
		}
	}

	if g.breaker == nil {
		return g.transport.Fetch(ctx, url)
	}
	out, err := g.breaker.Execute(func() (any, error) {
		return g.transport.Fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (g *Gateway) load() cacheDocument {
	doc := emptyCacheDocument()
	if err := storage.ReadJSONFile(g.opts.CachePath, &doc); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			g.logger.Warn().Err(err).Str("path", g.opts.CachePath).Msg("cache unreadable, starting empty")
		}
		return emptyCacheDocument()
	}
	if doc.Responses == nil {
		doc.Responses = map[string]cachedResponse{}
	}
	if doc.Requests == nil {
		doc.Requests = []ledgerEntry{}
	}
	return doc
}

func (g *Gateway) save(doc cacheDocument) {
	if err := storage.WriteJSONFile(g.opts.CachePath, doc); err != nil {
		g.logger.Error().Err(err).Str("path", g.opts.CachePath).Msg("failed to write cache")
	}
}

func pruneLedger(entries []ledgerEntry, now time.Time) []ledgerEntry {
	cutoff := now.Add(-ledgerWindow)
	kept := make([]ledgerEntry, 0, len(entries))
	for _, e := range entries {
		ts, err := storage.ParseUTC(e.TSUTC)
		if err != nil {
			continue
		}
		if !ts.Before(cutoff) {
			kept = append(kept, ledgerEntry{TSUTC: storage.FormatUTC(ts)})
		}
	}
	return kept
}

func freshEntry(responses map[string]cachedResponse, url string, now time.Time, maxAge time.Duration) (string, bool) {
	entry, ok := responses[url]
	if !ok || entry.FetchedUTC == "" {
		return "", false
	}
	fetched, err := storage.ParseUTC(entry.FetchedUTC)
	if err != nil {
		return "", false
	}
	if now.Sub(fetched) > maxAge {
		return "", false
	}
	return entry.Content, true
}
