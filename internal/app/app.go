// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/stakepool-price/internal/blockchain/solbc"
	bcrpc "github.com/rovshanmuradov/stakepool-price/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/stakepool-price/internal/config"
	"github.com/rovshanmuradov/stakepool-price/internal/depeg"
	"github.com/rovshanmuradov/stakepool-price/internal/monitor"
	"github.com/rovshanmuradov/stakepool-price/internal/storage"
	"github.com/rovshanmuradov/stakepool-price/internal/storage/postgres"
	"github.com/rovshanmuradov/stakepool-price/internal/utils/metrics"
)

// App wires the RPC client, the price monitor and the optional metrics and storage.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   *solbc.Client
	service  *monitor.Service
	metrics  *metrics.Collector
	store    storage.Storage
	shutdown *ShutdownHandler
}

// New wires every component described by cfg. Storage is connected and
// migrated only when postgres_url is set.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	precision, err := cfg.PrecisionValue()
	if err != nil {
		return nil, err
	}
	owners, err := cfg.AllowedOwners()
	if err != nil {
		return nil, err
	}
	pools, err := BuildPools(cfg.StakePools, precision)
	if err != nil {
		return nil, err
	}

	client, err := solbc.NewClient(cfg.RPCList, logger, bcrpc.Options{
		Timeout:    cfg.RPCTimeout(),
		MaxRetries: cfg.Retries,
		RetryDelay: bcrpc.RetryDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}

	service, err := monitor.NewService(client, pools, monitor.Options{
		Precision:     precision,
		VerifyOwner:   cfg.VerifyOwner,
		AllowedOwners: owners,
		HistorySize:   cfg.HistorySize,
	}, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		service:  service,
		shutdown: NewShutdownHandler(logger, 10*time.Second),
	}

	if cfg.MetricsAddr != "" {
		a.metrics = metrics.NewCollector()
		service.SetMetrics(a.metrics)
		client.Pool().SetObserver(a.metrics)
	}

	if cfg.PostgresURL != "" {
		store, err := postgres.NewStorage(cfg.PostgresURL, logger)
		if err != nil {
			return nil, err
		}
		if err := store.RunMigrations(); err != nil {
			_ = store.Close()
			return nil, err
		}
		a.store = store
		service.SetRecorder(store)
		a.shutdown.Add("storage", store)
	}

	return a, nil
}

// BuildPools turns configured pools into price sources sharing one precision.
func BuildPools(pools []config.StakePool, precision *uint256.Int) ([]monitor.PoolSource, error) {
	out := make([]monitor.PoolSource, 0, len(pools))
	for _, p := range pools {
		addr, err := solana.PublicKeyFromBase58(p.Address)
		if err != nil {
			return nil, fmt.Errorf("stake pool %s: %w", p.Name, err)
		}
		t, err := depeg.ParseType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("stake pool %s: %w", p.Name, err)
		}
		src, err := depeg.NewSource(t, precision)
		if err != nil {
			return nil, fmt.Errorf("stake pool %s: %w", p.Name, err)
		}
		out = append(out, monitor.PoolSource{
			Pool:   monitor.Pool{Name: p.Name, Address: addr},
			Source: src,
		})
	}
	return out, nil
}

// Service returns the price monitor.
func (a *App) Service() *monitor.Service { return a.service }

// Metrics returns the collector, nil when metrics are disabled.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Storage returns the snapshot store, nil when postgres_url is not set.
func (a *App) Storage() storage.Storage { return a.store }

// History returns snapshots observed since the given time, oldest first.
// With storage configured the rows come from Postgres, limited to limit per
// pool (0 means no limit); otherwise the in-memory history is used.
func (a *App) History(ctx context.Context, since time.Time, limit int) ([]monitor.Snapshot, error) {
	if a.store == nil {
		return a.service.History().Snapshots(since, time.Time{}), nil
	}

	var out []monitor.Snapshot
	for _, p := range a.cfg.StakePools {
		rows, err := a.store.ListSnapshots(ctx, p.Address, since, limit)
		if err != nil {
			return nil, err
		}
		snaps, err := postgres.FromModels(rows)
		if err != nil {
			return nil, err
		}
		// ListSnapshots returns newest first
		for i := len(snaps) - 1; i >= 0; i-- {
			out = append(out, snaps[i])
		}
	}
	a.logger.Debug("Loaded stored history", zap.Int("snapshots", len(out)), zap.Time("since", since))
	return out, nil
}

// Refresh reads every pool once.
func (a *App) Refresh(ctx context.Context) ([]monitor.Snapshot, error) {
	start := time.Now()
	snaps, err := a.service.Refresh(ctx)
	a.logger.Debug("Refresh finished",
		zap.Int("pools", len(snaps)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return snaps, err
}

// Run starts the metrics endpoint when configured and polls prices until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.metrics != nil {
		a.StartMetricsServer(ctx)
	}
	return a.service.Run(ctx, a.cfg.PollInterval())
}

// StartMetricsServer serves /metrics on metrics_addr in the background and
// registers the server for shutdown.
func (a *App) StartMetricsServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	a.shutdown.AddFunc("metrics_server", func() error {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

// Close releases every registered service.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdown.timeout)
	defer cancel()
	return errors.Join(a.shutdown.Shutdown(ctx)...)
}
