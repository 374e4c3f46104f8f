package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"propwatch/internal/fetcher"
	"propwatch/internal/service"
	"propwatch/internal/storage"
)

// Replay evaluates saved upstream XML documents without touching the network.
// Each file stands in for one anchor, named after the file. Without Persist
// the stored state is read for hysteresis but neither state nor payload is
// written.
func (a *App) Replay(ctx context.Context, opts ReplayOptions) (storage.Payload, error) {
	if len(opts.Files) == 0 {
		return storage.Payload{}, errors.New("replay 需要至少一个 XML 文件")
	}
	if err := a.engine.Validate(); err != nil {
		return storage.Payload{}, err
	}

	bodies := make(map[string][]byte, len(opts.Files))
	anchors := make([]string, 0, len(opts.Files))
	for _, path := range opts.Files {
		body, err := os.ReadFile(path)
		if err != nil {
			return storage.Payload{}, fmt.Errorf("read replay file: %w", err)
		}
		anchor := replayAnchor(path)
		if _, dup := bodies[anchor]; dup {
			return storage.Payload{}, fmt.Errorf("replay 文件名重复: %s", anchor)
		}
		bodies[anchor] = body
		anchors = append(anchors, anchor)
	}

	now := a.Clock.Now().UTC()
	if opts.Now != nil {
		now = opts.Now.UTC()
	}

	state, closeState, err := a.openState(ctx)
	if err != nil {
		return storage.Payload{}, err
	}
	defer closeState()

	deps := service.Deps{
		Gateway: &replayGateway{bodies: bodies, fetched: now},
		State:   state,
		Clock:   a.Clock,
	}
	if opts.Persist {
		deps.Payloads = storage.NewFilePayloadStore(a.Config.Propagation.OutputPath)
	} else {
		a.Logger.Warn().Msg("replay dry-run：不会写入 state 与 payload")
		deps.State = readOnlyState{StateStore: state}
	}

	cfg := *a.Config
	cfg.Propagation.Anchors = anchors
	cfg.Alerting.Enabled = false
	svc := service.New(&cfg, a.engine, deps, a.Logger)

	payload, err := svc.RunCycle(ctx, now)
	if err != nil {
		return storage.Payload{}, err
	}
	a.Logger.Info().Int("files", len(opts.Files)).Msg("replay 完成")
	return payload, nil
}

func replayAnchor(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

// replayGateway serves file contents keyed by the callsign query parameter.
type replayGateway struct {
	bodies  map[string][]byte
	fetched time.Time
}

func (g *replayGateway) Fetch(_ context.Context, rawURL string, _ time.Time) fetcher.Result {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fetcher.Result{Provenance: fetcher.ProvenanceUnavailable, Err: err}
	}
	body, ok := g.bodies[u.Query().Get("callsign")]
	if !ok {
		return fetcher.Result{Provenance: fetcher.ProvenanceUnavailable, Err: errors.New("no replay file")}
	}
	return fetcher.Result{Body: body, Provenance: fetcher.ProvenanceCache}
}

func (g *replayGateway) RequestsLastHour(time.Time) int { return 0 }

func (g *replayGateway) LastFetchUTC() *time.Time {
	t := g.fetched
	return &t
}

// readOnlyState reads hysteresis input but discards writes.
type readOnlyState struct {
	storage.StateStore
}

func (readOnlyState) SaveState(context.Context, storage.PersistedState) error { return nil }

var _ service.Gateway = (*replayGateway)(nil)
