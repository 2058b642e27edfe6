// Package initcmder provides the init command for initializing a local .spool
// directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/config"
)

const (
	dirName = ".spool"

	remoteTimeout = 10 * time.Second
	maxRemoteSize = 1 << 20
)

const initLongDesc string = `Initialize a new .spool/ directory in the current working directory.

Creates a local .spool/ directory that takes precedence over the default
~/.spool/ directory for configuration, credentials, recorded tapes and the
last dispatch record, and writes a config.toml.

The --preset flag picks the vendor defaults written to config.toml. It takes
a preset name (openai, anthropic, gemini, ollama) or an http(s) URL serving a
config.toml. Re-running init with a preset overwrites config.toml.

Examples:
  spool init
  spool init --preset anthropic
  spool init --preset https://example.com/team/config.toml`

const initShortDesc string = "Initialize a local .spool/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Vendor preset name or URL of a config.toml")

	return cmd
}

func runInit(ctx context.Context, w io.Writer, preset string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, statErr := os.Stat(dir)
	existed := statErr == nil && info.IsDir()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .spool directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, cfgErr := os.Stat(cfger.GetTarget())
	hasConfig := cfgErr == nil

	switch {
	case preset != "":
		cfg, err := resolvePreset(ctx, preset)
		if err != nil {
			return err
		}
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s preset to %s\n", preset, cfger.GetTarget())

	case !hasConfig:
		if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
			return err
		}
	}

	if existed {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	}

	fmt.Fprintf(w, "Initialized .spool directory: %s\n", dir)
	return nil
}

func resolvePreset(ctx context.Context, preset string) (*config.Config, error) {
	if strings.HasPrefix(preset, "http://") || strings.HasPrefix(preset, "https://") {
		return fetchRemoteConfig(ctx, preset)
	}
	return config.PresetConfig(preset)
}

// fetchRemoteConfig downloads and validates a config.toml.
func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize))
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
