package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/stakepool-price/internal/app"
	"github.com/rovshanmuradov/stakepool-price/internal/config"
	"github.com/rovshanmuradov/stakepool-price/internal/export"
	"github.com/rovshanmuradov/stakepool-price/internal/monitor"
	"github.com/rovshanmuradov/stakepool-price/internal/ui"
	"github.com/rovshanmuradov/stakepool-price/internal/utils/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to config file")
	outDir := flag.String("out", "exports", "Directory for exported files")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// консоль занята TUI, логи пишутся только в файл
	appLogger, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
		NoConsole:   true,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()

	appLogger.Info("Starting stake pool price TUI")

	a, err := app.New(cfg, appLogger.WithComponent("tui"))
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		_ = a.Close()
	}()

	updates := make(chan tea.Msg, 1)
	throttler := monitor.NewPriceThrottler(cfg.PriceThrottle(), updates, appLogger.Logger)
	a.Service().SetThrottler(throttler)

	exporter := export.NewSnapshotExporter(appLogger.Logger)
	exportFn := func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		snaps, err := a.History(ctx, time.Time{}, 0)
		if err != nil {
			return "", err
		}
		return exporter.ExportSnapshots(snaps, export.ExportOptions{
			Format:    export.FormatCSV,
			OutputDir: *outDir,
		})
	}

	monitorCtx, cancelMonitor := context.WithCancel(rootCtx)
	defer cancelMonitor()
	go func() {
		if err := a.Run(monitorCtx); err != nil {
			appLogger.Error("Monitor stopped", zap.Error(err))
		}
	}()

	recovery := ui.NewRecoveryHandler(appLogger.Logger, func() (tea.Model, []tea.ProgramOption) {
		model := ui.NewModel(a.Refresh, exportFn)
		return ui.NewSafeUIWrapper(model, appLogger.Logger), []tea.ProgramOption{
			tea.WithAltScreen(),
			tea.WithContext(rootCtx),
		}
	})
	go recovery.Forward(monitorCtx, updates)
	if err := recovery.RunWithRecovery(rootCtx); err != nil {
		appLogger.Error("TUI application failed", zap.Error(err))
	}

	sent, throttled := throttler.GetStats()
	appLogger.Info("Shutting down TUI application",
		zap.Uint64("updates_sent", sent),
		zap.Uint64("updates_throttled", throttled),
		zap.Int("ui_restarts", recovery.GetRestartCount()))
}
