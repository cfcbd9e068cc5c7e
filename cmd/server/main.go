package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chuanjin/BaahBridge/internal/ble"
	"github.com/chuanjin/BaahBridge/internal/bridge"
	"github.com/chuanjin/BaahBridge/internal/config"
	"github.com/chuanjin/BaahBridge/internal/hub"
	"github.com/chuanjin/BaahBridge/internal/logger"
	"github.com/chuanjin/BaahBridge/internal/mcp"
	"github.com/chuanjin/BaahBridge/internal/profile"
	"github.com/chuanjin/BaahBridge/internal/sensor"
	"github.com/chuanjin/BaahBridge/internal/serialsrc"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(flags, ".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Debug, "baahbridge"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Exiting", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// 1. Profiles: stored layouts and seeds, then the configured default on top
	mgr := profile.NewManager(cfg.ProfilesDir, cfg.SeedsDir)
	loaded, err := mgr.LoadSavedProfiles()
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	if err := mgr.AddProfile(profile.Profile{Name: cfg.DefaultProfile, Layout: cfg.Offsets}); err != nil {
		return fmt.Errorf("default profile: %w", err)
	}
	logger.Info("Profiles loaded", zap.Int("stored", len(loaded)), zap.String("default", cfg.DefaultProfile))

	// 2. Routing and scaling
	dispatcher := profile.NewDispatcher(mgr, cfg.DefaultProfile)
	skipped, err := dispatcher.Restore()
	if err != nil {
		return fmt.Errorf("restore manifest: %w", err)
	}
	if len(skipped) > 0 {
		logger.Warn("Manifest entries without a loaded profile", zap.Strings("characteristics", skipped))
	}

	processor, err := sensor.NewProcessor(dispatcher, cfg.Difficulty.Factor)
	if err != nil {
		return err
	}
	if err := processor.SetLimits(cfg.Difficulty.Min, cfg.Difficulty.Max); err != nil {
		return err
	}

	// 3. Game-facing websocket hub
	var sink sensor.Sink = sensor.Discard
	if cfg.WSAddr != "" {
		h := hub.NewHub()
		broadcaster := hub.NewBroadcaster(h)
		go broadcaster.Run(ctx)
		sink = broadcaster

		wsServer := hub.NewServer(h, processor, cfg.WSAddr)
		go func() {
			if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("WebSocket hub stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := wsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("WebSocket hub shutdown", zap.Error(err))
			}
		}()
	}

	// 4. Frame source
	logger.Info("Starting", zap.String("mode", string(cfg.Mode)), zap.Float64("factor", processor.Factor()))
	switch cfg.Mode {
	case config.ModeTCP:
		return bridge.NewTCPServer(cfg.TCPAddr, cfg.BLE.Characteristic, processor, sink).ListenAndServe(ctx)

	case config.ModeMCP:
		return mcp.NewServer(dispatcher, mgr, processor).Run(ctx)

	case config.ModeBLE:
		central := ble.NewCentral(ble.Config{
			DeviceName:     cfg.BLE.Device,
			Service:        cfg.BLE.Service,
			Characteristic: cfg.BLE.Characteristic,
		}, processor, sink)
		return central.Run(ctx)

	case config.ModeSerial:
		p, err := dispatcher.Resolve(cfg.BLE.Characteristic)
		if err != nil {
			return err
		}
		src, err := serialsrc.NewSource(cfg.BLE.Characteristic, p.Layout.Size(), processor, sink)
		if err != nil {
			return err
		}
		return src.Run(ctx, serialsrc.Config{Device: cfg.Serial.Port, Baud: cfg.Serial.Baud})
	}
	return fmt.Errorf("unknown mode %q", cfg.Mode)
}
