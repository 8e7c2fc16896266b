// Command opsledgerd runs the opsledger node: per-tenant stores, the audit
// chain, the sync queue and worker, and the REST/WebSocket API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opsledger/opsledger/internal/api"
	"github.com/opsledger/opsledger/internal/config"
	"github.com/opsledger/opsledger/internal/domain"
	"github.com/opsledger/opsledger/internal/service"
	"github.com/opsledger/opsledger/internal/store"
	"github.com/opsledger/opsledger/internal/transport"
	"github.com/opsledger/opsledger/internal/ws"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration failed")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("opsledgerd exited")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	registry := store.NewRegistry(cfg.DataDir, log)
	defer registry.CloseAll()

	base := store.Base{Registry: registry}
	entities := store.NewEntityStore(base)
	audit := store.NewAuditStore(base)
	queue := store.NewQueueStore(base)
	mutations := store.NewMutationStore(base)

	tp, err := buildTransport(ctx, cfg, log)
	if err != nil {
		return err
	}
	if pg, ok := tp.(*transport.PostgresTransport); ok {
		defer pg.Close()
	}

	syncer := service.NewSyncer(queue, entities, registry, tp, cfg.MaxRetryAttempts, cfg.DeliveryTimeout, cfg.CacheTTL, log)
	worker := service.NewSyncWorker(syncer, cfg.SyncInterval, cfg.SyncDebounce, log)

	notifier := service.NewNotifier(log)
	orchestrator := service.NewOrchestrator(mutations, notifier, worker, cfg.Retention, log)
	chain := service.NewChainService(audit, log)

	hub := ws.NewHub(log)

	// Bridge committed mutations into the websocket hub. Wildcard
	// subscription: every tenant, every collection.
	unsubscribe := notifier.Subscribe("", "", hub.BroadcastChange)
	defer unsubscribe()

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:         log,
		Registry:    registry,
		Hub:         hub,
		Mutator:     orchestrator,
		Entities:    entities,
		Chain:       chain,
		Syncer:      syncer,
		SyncControl: worker,
		CORSOrigins: cfg.CORSOrigins,
		Version:     version,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)

		return nil
	})

	g.Go(func() error {
		worker.Run(gctx)

		return nil
	})

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"version": version,
		}).Info("opsledgerd listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	// A configured transport means the node intends to be connected; start
	// online so the first pass drains anything queued while down.
	if tp != nil {
		worker.SetOnline(true)
	}

	return g.Wait()
}

// buildTransport selects the outbound delivery mechanism from config. Both
// remote settings empty means the node runs local-only.
func buildTransport(ctx context.Context, cfg *config.Config, log *logrus.Logger) (domain.Transport, error) {
	switch {
	case cfg.RemoteURL != "":
		log.WithField("remote_url", cfg.RemoteURL).Info("using HTTP sync transport")

		return transport.NewHTTPTransport(cfg.RemoteURL, transport.WithAPIKey(cfg.RemoteAPIKey.Value())), nil

	case cfg.RemoteDatabaseURL.Value() != "":
		log.Info("using Postgres sync transport")

		pg, err := transport.NewPostgresTransport(ctx, cfg.RemoteDatabaseURL.Value())
		if err != nil {
			return nil, err
		}

		return pg, nil

	default:
		log.Info("no sync transport configured, running local-only")

		return nil, nil
	}
}
