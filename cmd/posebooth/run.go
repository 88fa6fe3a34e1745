package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/posebooth/internal/app"
	"github.com/ayusman/posebooth/internal/config"
	"github.com/ayusman/posebooth/internal/logfields"
	"github.com/ayusman/posebooth/internal/metrics"
	"github.com/ayusman/posebooth/internal/server"
	"github.com/ayusman/posebooth/internal/store"
	"github.com/ayusman/posebooth/internal/tray"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Tray bool `help:"Show the operator tray icon"`
}

func (r *RunCmd) Run(root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	recorder := metrics.NewPrometheusRecorder(nil)
	kiosk := app.New(app.Options{
		Config:  cfg,
		Store:   st,
		Metrics: recorder,
		Logger:  slog.Default(),
	})
	defer kiosk.Close()

	// A failed start leaves the server up so an operator can retry.
	if err := kiosk.Start(ctx); err != nil {
		slog.Error("kiosk not started; POST /api/retry once fixed", logfields.Error(err))
	}

	staticDir := findWebDir(cfg.Server.StaticDir)
	if staticDir != "" {
		slog.Info("serving static files", logfields.Path(staticDir))
	}
	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Kiosk:     kiosk,
		Metrics:   recorder.Handler(),
		Logger:    slog.Default(),
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", logfields.Addr(cfg.Server.Addr))
		errCh <- srv.ListenAndServe(ctx, cfg.Server.Addr)
	}()

	if r.Tray {
		runTray(ctx, cancel, kiosk, cfg.Server.Addr)
	}

	select {
	case err = <-errCh:
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		err = <-errCh
	}
	cancel()

	if stopErr := kiosk.Stop(); stopErr != nil {
		slog.Warn("kiosk stop reported errors", logfields.Error(stopErr))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// runTray blocks on the tray until Quit is chosen or ctx ends.
func runTray(ctx context.Context, cancel context.CancelFunc, k *app.App, addr string) {
	t := tray.New()
	t.OnReset(func() {
		if err := k.Reset(); err != nil {
			slog.Warn("reset from tray failed", logfields.Error(err))
		}
	})
	t.OnOpen(func() {
		slog.Info("kiosk page", slog.String("url", "http://"+addr+"/"))
	})
	t.OnQuit(cancel)

	go t.Watch(ctx, k.Snapshot, 250*time.Millisecond)
	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

// findWebDir resolves the static directory, trying the configured path and
// then the usual locations relative to the working directory.
func findWebDir(configured string) string {
	candidates := []string{configured}
	if !filepath.IsAbs(configured) {
		candidates = append(candidates, filepath.Join("..", configured), filepath.Join("..", "..", configured))
	}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
