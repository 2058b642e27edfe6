// Package configcmder provides the config command for managing persistent
// spool configuration stored in the .spool/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent spool configuration.

Configuration is stored as config.toml in the .spool/ directory and provides
default values for command flags. CLI flags and SPOOL_* environment variables
always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  dispatch.environment, dispatch.strict_parsing,
  dispatch.idle_timeout, dispatch.request_timeout, dispatch.queue_size,
  server.listen,
  storage.sqlite_path, storage.postgres_dsn,
  vendor.default, vendor.endpoint

Use subcommands to get, set, or list configuration values:
  spool config set <key> <value>    Set a configuration value
  spool config get <key>            Get a configuration value
  spool config list                 List all configuration values

Examples:
  spool config set vendor.default anthropic
  spool config set dispatch.environment development
  spool config get vendor.default
  spool config list`

const configShortDesc string = "Manage persistent spool configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
