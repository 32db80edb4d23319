package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/dialogue-overlay/internal/audio"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator"
	"github.com/GriffinCanCode/dialogue-overlay/internal/overlay"
	"github.com/GriffinCanCode/dialogue-overlay/internal/provider"
	"github.com/GriffinCanCode/dialogue-overlay/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve overlay sessions over HTTP and WebSocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	printBanner()

	script, err := loadScript(ctx)
	if err != nil {
		return err
	}
	if problems := script.Validate(); len(problems) > 0 {
		slog.Warn("script has questionable lines; run `overlayd script validate`", "count", len(problems))
	}

	text, translator, closeProviders, err := providers()
	if err != nil {
		return err
	}
	defer closeProviders()

	if _, err := overlay.NewTypeface(cfg.Overlay.FontPath); err != nil {
		slog.Warn("font load failed, using the built-in face", "path", cfg.Overlay.FontPath, "error", err)
	}
	renderOpts := overlay.Options{
		InitialFontSize: cfg.Overlay.FontSize,
		Margin:          cfg.Overlay.Margin,
		HeightBudget:    cfg.Overlay.HeightBudget,
	}
	shared := orchestrator.Shared{
		Script:     script,
		Text:       text,
		Translator: translator,
		// Each session measures text with its own face cache.
		NewRenderer: func() *overlay.Renderer {
			return overlay.NewRenderer(sessionFace(), renderOpts)
		},
	}
	if strings.EqualFold(cfg.Recognition.Kind, provider.KindLocal) {
		// A worker process per session; one slow recognition never stalls another session.
		shared.NewText = func() (provider.TextProvider, error) {
			return provider.NewTextProvider(cfg.Recognition)
		}
	}

	if cfg.Cue.Enabled {
		player, err := audio.NewDevicePlayer(cfg.Cue.SampleRate)
		if err != nil {
			slog.Warn("audio output unavailable; voice cues disabled", "error", err)
		} else {
			defer func() { _ = player.Close() }()
			shared.Player = player
			shared.Clips = audio.NewLibrary(cfg.Cue.Dir)
		}
	}

	mgr := orchestrator.NewManager(cfg, shared)
	defer mgr.Close()

	srv := server.New(mgr, cfg)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("overlay server starting", "http", cfg.HTTPAddr, "recognition", cfg.Recognition.Kind, "translation", cfg.Translation.Kind, "lines", script.Len())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	slog.Info("shutdown complete")
	return nil
}

func sessionFace() *overlay.Typeface {
	face, err := overlay.NewTypeface(cfg.Overlay.FontPath)
	if err != nil {
		face, _ = overlay.NewTypeface("")
	}
	return face
}
