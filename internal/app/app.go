// Package app wires up and runs the application services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/skobkin/nputop-web/internal/config"
	"github.com/skobkin/nputop-web/internal/httpserver"
	"github.com/skobkin/nputop-web/internal/i18n"
	"github.com/skobkin/nputop-web/internal/ingest"
	"github.com/skobkin/nputop-web/internal/monitor"
	"github.com/skobkin/nputop-web/internal/npu"
	"github.com/skobkin/nputop-web/internal/tab"
	"github.com/skobkin/nputop-web/internal/units"
)

const shutdownTimeout = 10 * time.Second

var _ monitor.Forgetter = (*ingest.Store)(nil)

// Run bootstraps the application lifecycle.
func Run(ctx context.Context, baseLogger *slog.Logger, cfg config.Config) error {
	appLogger := baseLogger.With("component", "app")

	translator, err := i18n.New(cfg.Locale.Locale, cfg.Locale.CatalogPath)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}
	appLogger.Info("locale selected", "locale", translator.Tag().String())

	store := ingest.NewStore(cfg.Ingest.StaleAfter)

	devices, err := discoverDevices(cfg, baseLogger)
	if err != nil {
		return err
	}
	appLogger.Info("discovered NPUs", "count", len(devices))

	var replay ingest.File
	if cfg.ReplayFile != "" {
		replay, err = loadReplay(cfg.ReplayFile, store, appLogger)
		if err != nil {
			return err
		}
		devices = mergeDevices(devices, replay.Devices)
		appLogger.Info("replay file loaded", "path", cfg.ReplayFile, "devices", len(replay.Devices), "snapshots", len(replay.Snapshots))
	}

	var rescan func() ([]tab.Device, error)
	if cfg.RescanInterval > 0 {
		rescan = func() ([]tab.Device, error) {
			found, err := discoverDevices(cfg, baseLogger)
			if err != nil {
				return nil, err
			}
			return mergeDevices(found, replay.Devices), nil
		}
	}

	monitorManager, err := monitor.NewManager(store, monitor.Options{
		Interval:       cfg.RefreshInterval,
		ChartPoints:    cfg.ChartPoints(),
		RescanInterval: cfg.RescanInterval,
		Rescan:         rescan,
		Localizer:      translator,
		Units:          units.Formatter{TempUnit: cfg.Locale.TemperatureUnit},
		Logger:         baseLogger,
	})
	if err != nil {
		return fmt.Errorf("init monitor: %w", err)
	}
	defer func() {
		if err := monitorManager.Close(); err != nil {
			appLogger.Warn("monitor close", "err", err)
		}
	}()

	for _, dev := range devices {
		if _, err := monitorManager.Add(dev); err != nil {
			appLogger.Warn("failed to set up tab", "device_key", dev.DeviceKey(), "err", err)
		}
	}
	if len(devices) == 0 {
		appLogger.Warn("no NPUs to present", "reason", "nothing discovered and no replay devices")
	}

	monitorCtx, monitorCancel := context.WithCancel(ctx)
	defer monitorCancel()

	monitorErrCh := make(chan error, 1)
	go func() {
		monitorErrCh <- monitorManager.Run(monitorCtx)
	}()

	srv := httpserver.New(cfg, baseLogger.With("component", "http"), monitorManager, store)

	appLogger.Info("starting HTTP server", "listen_addr", cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	for {
		select {
		case err := <-errCh:
			monitorCancel()
			if err != nil {
				return err
			}
			if monitorErrCh != nil {
				if monitorErr := <-monitorErrCh; monitorErr != nil && !errors.Is(monitorErr, context.Canceled) {
					return monitorErr
				}
			}
			return nil
		case err := <-monitorErrCh:
			monitorErrCh = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		case <-ctx.Done():
			appLogger.Info("shutdown initiated", "reason", ctx.Err())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("http shutdown: %w", err)
			}

			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			monitorCancel()
			if monitorErrCh != nil {
				if monitorErr := <-monitorErrCh; monitorErr != nil && !errors.Is(monitorErr, context.Canceled) {
					return monitorErr
				}
			}

			appLogger.Info("shutdown complete")
			return nil
		}
	}
}

func discoverDevices(cfg config.Config, baseLogger *slog.Logger) ([]tab.Device, error) {
	infos, err := npu.Discover(cfg.SysfsRoot, baseLogger.With("component", "npu_discovery"))
	if err != nil {
		return nil, fmt.Errorf("discover npus: %w", err)
	}
	return npu.Devices(infos), nil
}

// loadReplay reads a replay file and seeds the store with its snapshots. Seeded
// snapshots keep their recorded timestamps but never expire.
func loadReplay(path string, store *ingest.Store, logger *slog.Logger) (ingest.File, error) {
	replay, err := ingest.LoadFile(path)
	if err != nil {
		return ingest.File{}, fmt.Errorf("load replay file: %w", err)
	}
	if _, err := store.Seed(ingest.Batch{Snapshots: replay.Snapshots}); err != nil {
		logger.Warn("replay snapshots partially rejected", "err", err)
	}
	return replay, nil
}

// mergeDevices appends extra devices whose keys were not discovered.
func mergeDevices(discovered, extra []tab.Device) []tab.Device {
	seen := make(map[string]struct{}, len(discovered))
	out := make([]tab.Device, 0, len(discovered)+len(extra))
	for _, dev := range discovered {
		seen[dev.DeviceKey()] = struct{}{}
		out = append(out, dev)
	}
	for _, dev := range extra {
		if _, ok := seen[dev.DeviceKey()]; ok {
			continue
		}
		seen[dev.DeviceKey()] = struct{}{}
		out = append(out, dev)
	}
	return out
}
