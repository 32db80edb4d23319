package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimiro1/banner"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/dialogue-overlay/internal/config"
	"github.com/GriffinCanCode/dialogue-overlay/internal/dialogue"
	"github.com/GriffinCanCode/dialogue-overlay/internal/provider"
)

// Version is the application version.
const Version = "0.3.0"

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "overlayd",
	Short:         "Live dialogue recognition and translation overlay",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
		return nil
	},
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (YAML, TOML or JSON); OVERLAY_* environment variables override it")
}

func printBanner() {
	tpl := "{{ .Title \"overlayd\" \"\" 0 }}\nVersion: " + Version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

// loadScript reads the script from the database when one is configured,
// otherwise from script_path. An empty script disables matching.
func loadScript(ctx context.Context) (*dialogue.Script, error) {
	if cfg.DatabaseURL != "" {
		store, err := dialogue.OpenStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to script database: %w", err)
		}
		defer store.Close(context.Background())
		return store.Load(ctx, cfg.ScriptName)
	}
	if cfg.ScriptPath == "" {
		slog.Warn("no script configured; matching is disabled")
		return dialogue.NewScript(nil), nil
	}
	return dialogue.LoadScript(cfg.ScriptPath)
}

// providers builds the configured text provider and translator. The returned
// func closes whichever of them hold processes or connections.
func providers() (provider.TextProvider, provider.Translator, func(), error) {
	text, err := provider.NewTextProvider(cfg.Recognition)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("text provider: %w", err)
	}
	translator, err := provider.NewTranslator(cfg.Translation)
	if err != nil {
		closeProvider(text)
		return nil, nil, nil, fmt.Errorf("translator: %w", err)
	}
	return text, translator, func() {
		closeProvider(text)
		closeProvider(translator)
	}, nil
}

func closeProvider(p any) {
	if c, ok := p.(provider.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("provider close failed", "error", err)
		}
	}
}
