// Package tapescmder provides the tapes command and its list, show and
// browse subcommands for inspecting recorded dispatches.
package tapescmder

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/tape"
)

const tapesLongDesc string = `Inspect recorded tapes.

Every dispatch started through "spool generate" or the API server is recorded
as a tape holding its raw upstream frames. Use the subcommands to list the
most recent tapes or print one in full.`

const tapesShortDesc string = "Inspect recorded tapes"

var flags = []string{
	config.FlagSQLite,
	config.FlagPostgres,
}

// storeCommander holds the store flags shared by the subcommands.
type storeCommander struct {
	sqlitePath  string
	postgresDSN string

	configDir string
	viper     *viper.Viper
	out       io.Writer
	logger    *slog.Logger
}

func NewTapesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tapes",
		Short: tapesShortDesc,
		Long:  tapesLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newBrowseCmd())

	return cmd
}

func (c *storeCommander) addFlags(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &c.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgres, &c.postgresDSN)
}

func (c *storeCommander) preRun(cmd *cobra.Command, _ []string) error {
	c.configDir, _ = cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, config.Registry, flags)
	c.viper = v

	debug, _ := cmd.Flags().GetBool("debug")
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	c.logger = logger.New(logger.WithLevel(level), logger.WithPretty(true), logger.WithWriter(cmd.ErrOrStderr()))
	c.out = cmd.OutOrStdout()
	return nil
}

func (c *storeCommander) settings() (wiring.Settings, error) {
	return wiring.FromViper(c.viper)
}

func (c *storeCommander) open(ctx context.Context) (tape.Recorder, error) {
	settings, err := c.settings()
	if err != nil {
		return nil, err
	}
	return settings.OpenStore(ctx, c.configDir, c.logger)
}
