package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/fitspace/morphsync/internal/avatarstore"
	"github.com/fitspace/morphsync/internal/backend"
	"github.com/fitspace/morphsync/internal/bridge"
	"github.com/fitspace/morphsync/internal/broker"
	"github.com/fitspace/morphsync/internal/classify"
	"github.com/fitspace/morphsync/internal/drafts"
	"github.com/fitspace/morphsync/internal/envstruct"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/logging"
	"github.com/fitspace/morphsync/internal/metrics"
	"github.com/fitspace/morphsync/internal/morph"
	"github.com/fitspace/morphsync/internal/pprofserver"
	"github.com/fitspace/morphsync/internal/sqlite"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type application struct {
	logger         *slog.Logger
	cfg            config
	sessionManager *scs.SessionManager
	catalog        *morph.Catalog
	classifier     *classify.Classifier
	bridge         *bridge.Bridge
	workspaces     *workspaces
	events         *broker.ChannelBroker[string, avatarstore.Event]
	registry       *prometheus.Registry
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"MORPHSYNC_ADDR" envDefault:"localhost:4000"`
	// SqliteURL holds the drafts and the web sessions. Use ":memory:" for an in-memory database.
	SqliteURL string `env:"MORPHSYNC_SQLITE_URL" envDefault:"./morphsync.sqlite3"`
	// BackendURL is the base URL of the avatar REST backend.
	BackendURL    string `env:"MORPHSYNC_BACKEND_URL"`
	BackendAPIKey string `env:"MORPHSYNC_BACKEND_API_KEY" envDefault:""`
	// AutosaveDelay is how long edits must settle before they are saved. A negative delay disables autosave.
	AutosaveDelay   time.Duration `env:"MORPHSYNC_AUTOSAVE_DELAY" envDefault:"600ms"`
	SessionLifetime time.Duration `env:"MORPHSYNC_SESSION_LIFETIME" envDefault:"12h"`
	// WorkspaceIdleTimeout evicts avatar stores nobody has used for that long.
	WorkspaceIdleTimeout time.Duration `env:"MORPHSYNC_WORKSPACE_IDLE_TIMEOUT" envDefault:"30m"`
	// PprofPort enables the pprof server on the loopback interface when set.
	PprofPort     string `env:"MORPHSYNC_PPROF_PORT" envDefault:""`
	SecureCookies bool   `env:"MORPHSYNC_SECURE_COOKIES" envDefault:"true"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		err error
		cfg config
		db  *sqlite.Database
	)
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.PprofPort != "" {
		pprofserver.Launch(ctx, cfg.PprofPort, logger)
	}

	if db, err = sqlite.NewDatabase(ctx, cfg.SqliteURL, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(closeErr))
		}
	}()

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, 24*time.Hour) //nolint:mnd // daily
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Cookie.Secure = cfg.SecureCookies
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	saveMetrics := metrics.NewSaveCollector(registry)

	events := broker.NewChannelBroker[string, avatarstore.Event]()
	go events.Start()
	defer events.Stop()

	catalog := morph.Default()
	classifier := classify.Default()
	morphBridge := bridge.New(catalog, classifier, bridge.DefaultSlopes)
	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendAPIKey, &http.Client{Timeout: backendTimeout}, logger)
	draftStore := drafts.NewSQLiteStore(db, logger)

	newStore := func(workspaceID string) *avatarstore.Store {
		return avatarstore.New(avatarstore.Config{
			Catalog:       catalog,
			Bridge:        morphBridge,
			Backend:       backendClient,
			Drafts:        draftStore,
			DraftScope:    workspaceID,
			AutosaveDelay: cfg.AutosaveDelay,
			Publisher: avatarstore.PublisherFunc(func(event avatarstore.Event) {
				events.Publish(workspaceID, event)
			}),
			Metrics: saveMetrics,
		}, logger)
	}
	ws := newWorkspaces(newStore, events, metrics.NewWorkspaceGauge(registry), cfg.WorkspaceIdleTimeout, logger)
	defer ws.closeAll()
	go ws.startJanitor(ctx, time.Minute)

	app := application{
		logger:         logger,
		cfg:            cfg,
		sessionManager: sessionManager,
		catalog:        catalog,
		classifier:     classifier,
		bridge:         morphBridge,
		workspaces:     ws,
		events:         events,
		registry:       registry,
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func main() {
	ctx := context.Background()
	logger := slog.New(logging.NewContextHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))

	// A missing .env is fine, the environment may be configured by other means.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failed to load .env", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
