// Package replaycmder provides the replay command, which re-parses a
// recorded tape offline.
package replaycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/dotdir"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/tape"
)

const replayLongDesc string = `Replay a recorded tape.

The tape's raw frames are run through a fresh parser for its vendor, so a
replay reflects the current parsers and the current strict/lenient policy.
Without an id the last dispatch started by "spool generate" is replayed.

Examples:
  spool replay
  spool replay 6f1c1f0e-7c9b-4c55-a0a4-5d1d3c1f9c1e
  spool replay --strict --sqlite ./spool.db <id>`

const replayShortDesc string = "Replay a recorded tape"

var flags = []string{
	config.FlagEnvironment,
	config.FlagStrict,
	config.FlagSQLite,
	config.FlagPostgres,
}

type replayCommander struct {
	environment string
	strict      bool
	sqlitePath  string
	postgresDSN string
	markdown    bool

	debug     bool
	configDir string
	viper     *viper.Viper
	out       io.Writer
	logger    *slog.Logger
}

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{}

	cmd := &cobra.Command{
		Use:   "replay [tape-id]",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, flags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.out = cmd.OutOrStdout()

			level := slog.LevelWarn
			if cmder.debug {
				level = slog.LevelDebug
			}
			cmder.logger = logger.New(logger.WithLevel(level), logger.WithPretty(true), logger.WithWriter(cmd.ErrOrStderr()))

			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return cmder.run(cmd.Context(), id)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagEnvironment, &cmder.environment)
	config.AddBoolFlag(cmd, config.Registry, config.FlagStrict, &cmder.strict)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgres, &cmder.postgresDSN)
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render the replayed text as markdown")

	return cmd
}

func (c *replayCommander) run(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if id == "" {
		last, err := dotdir.NewManager().LoadLastDispatch(c.configDir)
		if err != nil {
			return err
		}
		if last == nil {
			return errors.New("no tape id given and no previous dispatch recorded")
		}
		id = last.ID
	}

	settings, err := wiring.FromViper(c.viper)
	if err != nil {
		return err
	}

	store, err := settings.OpenStore(ctx, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	actions, err := tape.Replay(ctx, t, settings.Policy(c.logger))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s %s %s\n\n",
		cliui.IDStyle.Render(t.ID),
		cliui.NameStyle.Render(t.Vendor),
		cliui.DimStyle.Render(t.StartedAt.Local().Format("2006-01-02 15:04:05")),
	)

	printer := cliui.NewActionPrinter(c.out)
	printer.Quiet = c.markdown
	for _, a := range actions {
		printer.Print(a)
	}
	if c.markdown {
		rendered, _ := cliui.RenderMarkdown(printer.Text())
		fmt.Fprint(c.out, rendered)
	}
	printer.Summary()

	if n := printer.Issues(); n > 0 {
		return fmt.Errorf("replay of %s produced %d issue(s)", t.ID, n)
	}
	return nil
}
