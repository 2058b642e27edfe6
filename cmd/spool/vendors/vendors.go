// Package vendorscmder provides the vendors command, which lists the vendors
// the dispatch layer can talk to.
package vendorscmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/credentials"
	"github.com/papercomputeco/spool/pkg/llm/provider"
)

const vendorsLongDesc string = `List supported vendors.

For each vendor the wire dialect, the response framing and whether an API key
is required are shown. Vendors that need a key also show the environment
variable consulted when no key is stored, and whether a key is available.

Examples:
  spool vendors`

const vendorsShortDesc string = "List supported vendors"

func NewVendorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendors",
		Short: vendorsShortDesc,
		Long:  vendorsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runVendors(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runVendors(w io.Writer, configDir string) error {
	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s\n", cliui.HeaderStyle.Render("Vendors"))
	for _, name := range provider.SupportedVendors() {
		v, _ := provider.Lookup(name)

		key := cliui.DimStyle.Render("no key")
		if v.RequiresKey {
			key = cliui.DimStyle.Render(credentials.EnvVarForProvider(name))
			if k, err := creds.Resolve(name); err == nil && k != "" {
				key = cliui.SuccessMark + " " + key
			} else {
				key = cliui.FailMark + " " + key
			}
		}

		fmt.Fprintf(w, "  %s %s %s %s\n",
			cliui.NameStyle.Render(fmt.Sprintf("%-11s", name)),
			cliui.KeyStyle.Render(fmt.Sprintf("%-10s", v.Dialect)),
			cliui.ValueStyle.Render(fmt.Sprintf("%-7s", v.Framing)),
			key,
		)
	}
	return nil
}
