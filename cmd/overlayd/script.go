package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/dialogue-overlay/internal/dialogue"
	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator"
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Inspect, import and pre-translate the dialogue script",
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Report script lines that cannot match or shadow each other",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			script *dialogue.Script
			err    error
		)
		if len(args) == 1 {
			script, err = dialogue.LoadScript(args[0])
		} else {
			script, err = loadScript(cmd.Context())
		}
		if err != nil {
			return err
		}

		problems := script.Validate()
		if len(problems) == 0 {
			fmt.Printf("%d lines, no problems found.\n", script.Len())
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tSPEAKER\tPROBLEM")
		fmt.Fprintln(w, "--\t-------\t-------")
		for _, p := range problems {
			e, _ := script.Get(p.ID)
			fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, e.Speaker, p.Reason)
		}
		w.Flush()
		return fmt.Errorf("%d of %d lines have problems", len(problems), script.Len())
	},
}

var importName string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a JSON script into the script database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("database_url is not set")
		}
		script, err := dialogue.LoadScript(args[0])
		if err != nil {
			return err
		}
		name := importName
		if name == "" {
			name = cfg.ScriptName
		}

		ctx := cmd.Context()
		store, err := dialogue.OpenStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer store.Close(ctx)

		if err := store.Import(ctx, name, script); err != nil {
			return fmt.Errorf("import script: %w", err)
		}
		n, err := store.Count(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d lines into script %q.\n", n, name)
		return nil
	},
}

var warmNamespace string

var pretranslateCmd = &cobra.Command{
	Use:   "pretranslate <frames-dir>",
	Short: "Recognize and translate captured frames to fill a cache namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frames, err := framePaths(args[0])
		if err != nil {
			return err
		}
		if len(frames) == 0 {
			return fmt.Errorf("no .png or .jpg frames in %s", args[0])
		}

		ctx := cmd.Context()
		script, err := loadScript(ctx)
		if err != nil {
			return err
		}
		text, translator, closeProviders, err := providers()
		if err != nil {
			return err
		}
		defer closeProviders()

		w, err := orchestrator.NewWarmer(ctx, cfg, orchestrator.Shared{
			Script:     script,
			Text:       text,
			Translator: translator,
		}, warmNamespace)
		if err != nil {
			return err
		}
		defer w.Close()

		bar := progressbar.NewOptions(len(frames),
			progressbar.OptionSetDescription("Pre-translating"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		var committed, matched int
		for _, path := range frames {
			if ctx.Err() != nil {
				break
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			img, err := imageutil.Decode(data)
			if err != nil {
				_ = bar.Add(1)
				continue
			}
			if st, ok := w.Feed(ctx, img); ok {
				committed++
				if len(st.Matches) > 0 {
					matched++
				}
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()
		fmt.Fprintf(os.Stderr, "\n%d frames, %d scenes, %d matched the script.\n", len(frames), committed, matched)
		return ctx.Err()
	},
}

func framePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}

func init() {
	importCmd.Flags().StringVar(&importName, "name", "", "script name (default: script_name from config)")
	pretranslateCmd.Flags().StringVar(&warmNamespace, "namespace", orchestrator.DefaultNamespace, "cache namespace to fill")

	scriptCmd.AddCommand(validateCmd, importCmd, pretranslateCmd)
	rootCmd.AddCommand(scriptCmd)
}
