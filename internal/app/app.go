package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"propwatch/internal/alerting"
	"propwatch/internal/config"
	"propwatch/internal/fetcher"
	"propwatch/internal/logging"
	"propwatch/internal/observability"
	"propwatch/internal/propagation"
	"propwatch/internal/scheduler"
	"propwatch/internal/service"
	"propwatch/internal/storage"
	"propwatch/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Clock  clockwork.Clock

	engine propagation.Config
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logging.Component(logger, "app"),
		Clock:  clockwork.NewRealClock(),
		engine: propagation.DefaultConfig(),
	}
}

func (a *App) newGateway(metrics *observability.Metrics) *fetcher.Gateway {
	up := a.Config.Upstream
	userAgent := up.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	client := fetcher.NewClient(fetcher.ClientOptions{
		WarmupURL:  up.WarmupURL,
		UserAgent:  userAgent,
		Timeout:    up.RequestTimeout,
		SessionTTL: up.SessionTTL,
	}, a.Logger)

	return fetcher.NewGateway(fetcher.GatewayOptions{
		CachePath:          a.Config.Propagation.CachePath,
		MinRefetchInterval: up.MinRefetchInterval,
		RequestsPerSecond:  up.RequestsPerSecond,
		BreakerFailures:    up.BreakerFailures,
		BreakerCooldown:    up.BreakerCooldown,
	}, client, a.Clock, metrics, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

// openState returns the PostgreSQL store when a DSN is configured and the
// state file otherwise.
func (a *App) openState(ctx context.Context) (storage.StateStore, func(), error) {
	store, err := storage.Open(ctx, a.Config.Database)
	if errors.Is(err, storage.ErrNotConfigured) {
		return storage.NewFileStateStore(a.Config.Propagation.StatePath), func() {}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	a.Logger.Info().Msg("using postgres state store")
	return store, store.Close, nil
}

func (a *App) newService(ctx context.Context, sched service.Runner, metrics *observability.Metrics) (*service.Service, func(), error) {
	if err := a.engine.Validate(); err != nil {
		return nil, nil, err
	}
	state, closeState, err := a.openState(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc := service.New(a.Config, a.engine, service.Deps{
		Gateway:   a.newGateway(metrics),
		State:     state,
		Payloads:  storage.NewFilePayloadStore(a.Config.Propagation.OutputPath),
		Notifier:  a.newNotifier(),
		Scheduler: sched,
		Metrics:   metrics,
		Clock:     a.Clock,
	}, a.Logger)
	return svc, closeState, nil
}

// Run executes the long-running evaluation service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		Cron:         a.Config.Scheduler.Cron,
	}, a.Clock, a.Logger)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	svc, closeState, err := a.newService(ctx, sched, metrics)
	if err != nil {
		return err
	}
	defer closeState()

	if addr := a.Config.Metrics.Addr; addr != "" {
		srv := observability.NewServer(addr, svc, svc, a.Logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error().Err(err).Msg("http server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	a.Logger.Info().
		Strs("anchors", a.Config.Propagation.Anchors).
		Str("version", version.Version).
		Msg("starting propagation service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("propagation service stopped")
	return nil
}

// OnceOptions configure a single evaluation cycle.
type OnceOptions struct {
	Now *time.Time
}

// Once runs one evaluation cycle, as a cron job or CI step would.
func (a *App) Once(ctx context.Context, opts OnceOptions) (storage.Payload, error) {
	svc, closeState, err := a.newService(ctx, nil, nil)
	if err != nil {
		return storage.Payload{}, err
	}
	defer closeState()

	now := a.Clock.Now().UTC()
	if opts.Now != nil {
		now = opts.Now.UTC()
	}
	if err := svc.ProcessBucket(ctx, now); err != nil {
		return storage.Payload{}, err
	}
	payload, ok := svc.LatestPayload().(storage.Payload)
	if !ok {
		return storage.Payload{}, errors.New("evaluation skipped: advisory lock held by another process")
	}
	return payload, nil
}

// ExportOptions hold parameters for exporting the latest payload.
type ExportOptions struct {
	PNGPath string
	CSVPath string
}

// ReplayOptions configure an offline evaluation of saved responses.
type ReplayOptions struct {
	Files   []string
	Now     *time.Time
	Persist bool
}
