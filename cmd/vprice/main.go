package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/stakepool-price/internal/app"
	"github.com/rovshanmuradov/stakepool-price/internal/config"
	"github.com/rovshanmuradov/stakepool-price/internal/depeg"
	"github.com/rovshanmuradov/stakepool-price/internal/export"
	"github.com/rovshanmuradov/stakepool-price/internal/monitor"
	"github.com/rovshanmuradov/stakepool-price/internal/utils/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to config file")
	watch := flag.Bool("watch", false, "Poll prices until interrupted")
	exportFormat := flag.String("export", "", "Export history on exit: csv or json (from Postgres when postgres_url is set)")
	since := flag.Duration("since", 0, "Export only history newer than this, e.g. 24h")
	limit := flag.Int("limit", 0, "Maximum stored snapshots per pool to export (0 = all)")
	outDir := flag.String("out", "exports", "Directory for exported files")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address (overrides metrics_addr)")
	file := flag.String("file", "", "Compute the price of a raw stake pool account dump and exit")
	precision := flag.String("precision", "", "Fixed-point scale, e.g. 1000000 (overrides config precision)")
	decimals := flag.Int("decimals", -1, "Fixed-point scale as 10^decimals (alternative to -precision)")
	flag.Parse()

	scale, err := precisionOverride(*precision, *decimals)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *file != "" {
		if err := priceFromFile(*file, scale); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if scale != nil {
		cfg.Precision = scale.Dec()
	}

	appLogger, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
		Console:     os.Stderr,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()

	a, err := app.New(cfg, appLogger.WithComponent("vprice"))
	if err != nil {
		appLogger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			appLogger.Error("Shutdown finished with errors", zap.Error(err))
		}
	}()

	if *watch {
		appLogger.Info("Starting price monitor", zap.Int("pools", len(cfg.StakePools)))
		if err := a.Run(rootCtx); err != nil {
			appLogger.Error("Monitor stopped", zap.Error(err))
		}
	} else {
		done := appLogger.TrackPerformance("refresh")
		snaps, err := a.Refresh(rootCtx)
		done()
		if err != nil {
			appLogger.Error("Refresh failed", zap.Error(err))
			return
		}
		for _, s := range snaps {
			if !s.Available {
				appLogger.WithPool(s.Pool.Name, s.Pool.Address.String()).
					Warn("No virtual price", zap.String("reason", s.Reason))
			}
		}
		printSnapshots(snaps)
	}

	if *exportFormat != "" {
		var from time.Time
		if *since > 0 {
			from = time.Now().Add(-*since)
		}
		if err := exportHistory(rootCtx, a, *exportFormat, *outDir, from, *limit, appLogger.Logger); err != nil {
			appLogger.Error("Export failed", zap.Error(err))
		}
	}
}

func exportHistory(ctx context.Context, a *app.App, format, outDir string, from time.Time, limit int, lg *zap.Logger) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	// in watch mode rootCtx is already cancelled by Ctrl+C
	snaps, err := a.History(context.WithoutCancel(ctx), from, limit)
	if err != nil {
		return err
	}
	path, err := export.NewSnapshotExporter(lg).ExportSnapshots(snaps, export.ExportOptions{
		Format:    f,
		StartTime: from,
		OutputDir: outDir,
	})
	if err != nil {
		return err
	}
	fmt.Println("exported", path)
	return nil
}

func printSnapshots(snaps []monitor.Snapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POOL\tADDRESS\tPRICE\tRAW\tSLOT\tSTATUS")
	for _, s := range snaps {
		price := "-"
		if s.Available {
			price = s.Decimal.String()
		}
		status := "ok"
		switch {
		case !s.Available:
			status = "unavailable (" + s.Reason + ")"
		case s.Stale:
			status = "stale (" + s.Reason + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", s.Pool.Name, s.Pool.Address, price, s.Price, s.Slot, status)
	}
	_ = w.Flush()
}

// precisionOverride returns the scale given on the command line, or nil when
// neither -precision nor -decimals is set.
func precisionOverride(precision string, decimals int) (*uint256.Int, error) {
	switch {
	case precision != "" && decimals >= 0:
		return nil, errors.New("use either -precision or -decimals")
	case precision != "":
		return depeg.ParsePrecision(precision)
	case decimals > math.MaxUint8:
		return nil, fmt.Errorf("%w: 10^%d exceeds 128 bits", depeg.ErrInvalidPrecision, decimals)
	case decimals >= 0:
		return depeg.PrecisionFromDecimals(uint8(decimals))
	}
	return nil, nil
}

func priceFromFile(path string, precision *uint256.Int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if precision == nil {
		precision = depeg.NewPrecision(depeg.DefaultPrecision)
	}
	src, err := depeg.NewSource(depeg.TypeSplStake, precision)
	if err != nil {
		return err
	}
	price, err := src.Compute(data)
	if err != nil {
		return fmt.Errorf("no virtual price for %s: %w", path, err)
	}
	fmt.Printf("%d\t%s\n", price, depeg.ToDecimal(price, precision))
	return nil
}
