package tapescmder

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/tape"
	"github.com/papercomputeco/spool/pkg/utils"
)

const showLongDesc string = `Show one recorded tape.

Prints the tape's metadata followed by its raw frames. Long frames are
truncated unless --full is given; --json prints the tape as stored.

Examples:
  spool tapes show 6f1c1f0e-7c9b-4c55-a0a4-5d1d3c1f9c1e
  spool tapes show --json <id> | jq .frames`

const framePreviewLen = 96

type showCommander struct {
	storeCommander
	full   bool
	asJSON bool
}

func newShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:     "show <tape-id>",
		Short:   "Show a recorded tape",
		Long:    showLongDesc,
		Args:    cobra.ExactArgs(1),
		PreRunE: cmder.preRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), args[0])
		},
	}

	cmder.addFlags(cmd)
	cmd.Flags().BoolVar(&cmder.full, "full", false, "Print frames without truncation")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the tape as JSON")

	return cmd
}

func (c *showCommander) run(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}

	c.field("ID", cliui.IDStyle.Render(t.ID))
	c.field("Vendor", cliui.NameStyle.Render(t.Vendor))
	if t.Model != "" {
		c.field("Model", cliui.ValueStyle.Render(t.Model))
	}
	c.field("Started", cliui.ValueStyle.Render(t.StartedAt.Local().Format("2006-01-02 15:04:05")))
	c.field("Duration", cliui.ValueStyle.Render(cliui.FormatDuration(t.Duration())))
	c.field("Outcome", outcome(t.Outcome))
	if s := t.Metadata.Stats; s.InTokens != nil || s.OutTokens != nil {
		c.field("Tokens", cliui.ValueStyle.Render(tokens(s.InTokens)+" in / "+tokens(s.OutTokens)+" out"))
	}

	fmt.Fprintf(c.out, "\n  %s\n", cliui.HeaderStyle.Render(fmt.Sprintf("Frames (%d)", len(t.Frames))))
	for i, f := range t.Frames {
		data := f.Data
		if !c.full {
			data = utils.Truncate(data, framePreviewLen)
		}
		name := ""
		if f.Name != "" {
			name = cliui.KeyStyle.Render(f.Name) + " "
		}
		fmt.Fprintf(c.out, "  %s %s%s\n", cliui.DimStyle.Render(fmt.Sprintf("%3d.", i+1)), name, data)
	}
	return nil
}

func (c *showCommander) field(key, value string) {
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-9s", key+":")), value)
}

func tokens(n *int) string {
	if n == nil || *n < 0 {
		return "?"
	}
	return strconv.Itoa(*n)
}

// outcome renders OutcomeOK as a check mark and any issue symbol in red.
func outcome(o string) string {
	if o == tape.OutcomeOK {
		return cliui.SuccessMark
	}
	return cliui.ErrorStyle.Render(o)
}
