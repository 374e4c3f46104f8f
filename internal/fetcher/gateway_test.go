package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propwatch/internal/observability"
)

var gatewayNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type fakeTransport struct {
	mu       sync.Mutex
	body     []byte
	err      error
	calls    int
	warmups  int
	lastURL  string
	sessionT time.Duration
}

func (f *fakeTransport) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastURL = url
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func (f *fakeTransport) Warmup(_ context.Context, now time.Time) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warmups++
	ttl := f.sessionT
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return Session{Obtained: now, Expires: now.Add(ttl)}, nil
}

func (f *fakeTransport) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newTestGateway(t *testing.T, transport Transport, opts GatewayOptions) (*Gateway, *observability.Metrics) {
	t.Helper()
	if opts.CachePath == "" {
		opts.CachePath = filepath.Join(t.TempDir(), "cache.json")
	}
	if opts.MinRefetchInterval == 0 {
		opts.MinRefetchInterval = 5 * time.Minute
	}
	metrics := observability.NewMetricsForTesting()
	return NewGateway(opts, transport, clockwork.NewFakeClockAt(gatewayNow), metrics, noopLogger()), metrics
}

const testURL = "https://retrieve.pskreporter.info/query?callsign=BL&modify=grid"

func TestGateway_CacheHitWithinInterval(t *testing.T) {
	transport := &fakeTransport{body: []byte(sampleXML)}
	gw, metrics := newTestGateway(t, transport, GatewayOptions{})

	first := gw.Fetch(context.Background(), testURL, gatewayNow)
	require.NoError(t, first.Err)
	assert.Equal(t, ProvenanceNetwork, first.Provenance)
	assert.False(t, first.FromCache())

	second := gw.Fetch(context.Background(), testURL, gatewayNow.Add(4*time.Minute))
	require.NoError(t, second.Err)
	assert.Equal(t, ProvenanceCache, second.Provenance)
	assert.True(t, second.FromCache())
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, 1, transport.calls, "cache hit must not touch the network")

	third := gw.Fetch(context.Background(), testURL, gatewayNow.Add(6*time.Minute))
	assert.Equal(t, ProvenanceNetwork, third.Provenance)
	assert.Equal(t, 2, transport.calls)

	assert.Equal(t, 2, gw.RequestsLastHour(gatewayNow.Add(6*time.Minute)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FetchTotal.WithLabelValues("cache")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.FetchTotal.WithLabelValues("network")))
}

func TestGateway_ExactBoundaryIsStillFresh(t *testing.T) {
	transport := &fakeTransport{body: []byte(sampleXML)}
	gw, _ := newTestGateway(t, transport, GatewayOptions{})

	gw.Fetch(context.Background(), testURL, gatewayNow)
	res := gw.Fetch(context.Background(), testURL, gatewayNow.Add(5*time.Minute))
	assert.Equal(t, ProvenanceCache, res.Provenance)
	assert.Equal(t, 1, transport.calls)
}

func TestGateway_DifferentURLMisses(t *testing.T) {
	transport := &fakeTransport{body: []byte(sampleXML)}
	gw, _ := newTestGateway(t, transport, GatewayOptions{})

	gw.Fetch(context.Background(), testURL, gatewayNow)
	res := gw.Fetch(context.Background(), testURL+"&callsign=BK", gatewayNow.Add(time.Minute))
	assert.Equal(t, ProvenanceNetwork, res.Provenance)
	assert.Equal(t, 2, transport.calls)
}

func TestGateway_LedgerPrunesAfterAnHour(t *testing.T) {
	transport := &fakeTransport{body: []byte(sampleXML)}
	gw, _ := newTestGateway(t, transport, GatewayOptions{})

	gw.Fetch(context.Background(), testURL, gatewayNow)
	gw.Fetch(context.Background(), testURL, gatewayNow.Add(30*time.Minute))

	assert.Equal(t, 2, gw.RequestsLastHour(gatewayNow.Add(59*time.Minute)))
	assert.Equal(t, 1, gw.RequestsLastHour(gatewayNow.Add(61*time.Minute)))
	assert.Equal(t, 0, gw.RequestsLastHour(gatewayNow.Add(91*time.Minute)))
}

func TestGateway_StaleFallback(t *testing.T) {
	transport := &fakeTransport{body: []byte(sampleXML)}
	gw, metrics := newTestGateway(t, transport, GatewayOptions{})

	gw.Fetch(context.Background(), testURL, gatewayNow)
	transport.setErr(errors.New("connection reset"))

	res := gw.Fetch(context.Background(), testURL, gatewayNow.Add(10*time.Minute))
	assert.Equal(t, ProvenanceStale, res.Provenance)
	assert.True(t, res.FromCache())
	assert.True(t, res.HasBody())
	assert.EqualError(t, res.Err, "connection reset")
	assert.Equal(t, []byte(sampleXML), res.Body)
	assert.Equal(t, 1, gw.RequestsLastHour(gatewayNow.Add(10*time.Minute)), "failed fetches are not ledgered")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FetchTotal.WithLabelValues("stale")))
}

func TestGateway_Unavailable(t *testing.T) {
	transport := &fakeTransport{err: errors.New("dns failure")}
	gw, _ := newTestGateway(t, transport, GatewayOptions{})

	res := gw.Fetch(context.Background(), testURL, gatewayNow)
	assert.Equal(t, ProvenanceUnavailable, res.Provenance)
	assert.False(t, res.HasBody())
	assert.Error(t, res.Err)
	assert.Nil(t, gw.LastFetchUTC())
}

func TestGateway_LastFetchUTC(t *testing.T) {
	transport := &fakeTransport{body: []byte(sampleXML)}
	gw, _ := newTestGateway(t, transport, GatewayOptions{})
	assert.Nil(t, gw.LastFetchUTC())

	gw.Fetch(context.Background(), testURL, gatewayNow.Add(1500*time.Millisecond))
	last := gw.LastFetchUTC()
	require.NotNil(t, last)
	assert.True(t, last.Equal(gatewayNow.Add(time.Second)), "stored with second precision, got %s", last)
}

func TestGateway_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	transport := &fakeTransport{body: []byte(sampleXML)}

	gw, _ := newTestGateway(t, transport, GatewayOptions{CachePath: path})
	gw.Fetch(context.Background(), testURL, gatewayNow)

	other, _ := newTestGateway(t, transport, GatewayOptions{CachePath: path})
	res := other.Fetch(context.Background(), testURL, gatewayNow.Add(time.Minute))
	assert.Equal(t, ProvenanceCache, res.Provenance)
	assert.Equal(t, 1, transport.calls)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"fetched_utc": "2026-03-14T18:00:00Z"`)
	assert.Contains(t, string(raw), `"last_fetch_utc": "2026-03-14T18:00:00Z"`)
}

func TestGateway_CorruptCacheStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("[[["), 0o644))
	transport := &fakeTransport{body: []byte(sampleXML)}
	gw, _ := newTestGateway(t, transport, GatewayOptions{CachePath: path})

	res := gw.Fetch(context.Background(), testURL, gatewayNow)
	assert.Equal(t, ProvenanceNetwork, res.Provenance)
	assert.Equal(t, 1, gw.RequestsLastHour(gatewayNow))
}

func TestGateway_WarmupReusedWhileSessionValid(t *testing.T) {
	transport := &fakeTransport{body: []byte(sampleXML), sessionT: 20 * time.Minute}
	gw, _ := newTestGateway(t, transport, GatewayOptions{MinRefetchInterval: time.Minute})

	gw.Fetch(context.Background(), testURL, gatewayNow)
	gw.Fetch(context.Background(), testURL, gatewayNow.Add(10*time.Minute))
	assert.Equal(t, 1, transport.warmups)

	gw.Fetch(context.Background(), testURL, gatewayNow.Add(25*time.Minute))
	assert.Equal(t, 2, transport.warmups)
}

func TestGateway_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	transport := &fakeTransport{err: errors.New("upstream down")}
	gw, metrics := newTestGateway(t, transport, GatewayOptions{
		BreakerFailures: 2,
		BreakerCooldown: 10 * time.Minute,
	})

	gw.Fetch(context.Background(), testURL, gatewayNow)
	gw.Fetch(context.Background(), testURL, gatewayNow.Add(time.Minute))
	assert.Equal(t, 2, transport.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BreakerOpen))

	res := gw.Fetch(context.Background(), testURL, gatewayNow.Add(2*time.Minute))
	assert.Equal(t, ProvenanceUnavailable, res.Provenance)
	assert.ErrorIs(t, res.Err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, transport.calls, "open breaker must short-circuit")
}

func TestGateway_NilTransport(t *testing.T) {
	gw, _ := newTestGateway(t, nil, GatewayOptions{})
	res := gw.Fetch(context.Background(), testURL, gatewayNow)
	assert.Equal(t, ProvenanceUnavailable, res.Provenance)
	assert.Error(t, res.Err)
}
