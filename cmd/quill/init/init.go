// Package initcmder provides the init command for initializing a local .quill
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .quill/ directory in the current working directory.

Creates a local .quill/ directory that takes precedence over ~/.quill/ for
configuration, credentials and generation history. With --preset, also
writes a config.toml pointing at that provider's API and a model that
streams well for creative writing.

Presets: deepseek, groq, openai, openrouter

Examples:
  quill init
  quill init --preset deepseek`

const initShortDesc string = "Initialize a local .quill/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			return runInit(cmd.OutOrStdout(), cwd, preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Write config.toml for a provider preset ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(out io.Writer, cwd, preset string) error {
	var cfg *config.Config
	if preset != "" {
		var err error
		if cfg, err = config.PresetConfig(preset); err != nil {
			return err
		}
	}

	dir := filepath.Join(cwd, dotdir.DirName)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
	case err == nil || !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%s exists and is not a directory", dir)
	default:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .quill directory: %w", err)
		}
		fmt.Fprintf(out, "Initialized .quill directory: %s\n", dir)
	}

	if cfg == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Wrote %s preset to %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(preset),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
	fmt.Fprintf(out, "  Store the API key with 'quill auth %s'.\n", cfg.Upstream.Provider)
	return nil
}
