// Package spoolcmder assembles the spool root command.
package spoolcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/spool/cmd/spool/auth"
	configcmder "github.com/papercomputeco/spool/cmd/spool/config"
	generatecmder "github.com/papercomputeco/spool/cmd/spool/generate"
	initcmder "github.com/papercomputeco/spool/cmd/spool/init"
	replaycmder "github.com/papercomputeco/spool/cmd/spool/replay"
	servecmder "github.com/papercomputeco/spool/cmd/spool/serve"
	tapescmder "github.com/papercomputeco/spool/cmd/spool/tapes"
	vendorscmder "github.com/papercomputeco/spool/cmd/spool/vendors"
	versioncmder "github.com/papercomputeco/spool/cmd/version"
)

const spoolLongDesc string = `Spool streams chat generations from any LLM vendor as one
normalized sequence of actions, and records every dispatch as a replayable tape.

Common commands:
  spool generate request.json   Stream a generation to the terminal
  spool serve                   Run the dispatch API server
  spool replay                  Replay the last recorded dispatch
  spool tapes                   List recorded tapes`

const spoolShortDesc string = "Spool - vendor-agnostic LLM streaming"

func NewSpoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spool",
		Short:         spoolShortDesc,
		Long:          spoolLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .spool/ directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(generatecmder.NewGenerateCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(tapescmder.NewTapesCmd())
	cmd.AddCommand(vendorscmder.NewVendorsCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
