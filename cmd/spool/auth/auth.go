// Package authcmder provides the auth command for storing API credentials.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/credentials"
)

const authLongDesc string = `Store API credentials for LLM vendors.

Credentials are stored in credentials.toml in the .spool/ directory. When a
dispatch needs a key, a stored credential wins over the vendor's environment
variable (e.g. ANTHROPIC_API_KEY), and an "Authorization: Bearer" header sent
to "spool serve" wins over both.

Examples:
  spool auth openai              Prompt for OpenAI API key
  spool auth anthropic           Prompt for Anthropic API key
  spool auth --list              List stored credentials
  spool auth --remove openai     Remove stored OpenAI credentials
  echo $KEY | spool auth groq    Pipe API key from stdin`

const authShortDesc string = "Store API credentials for LLM vendors"

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string

	cmd := &cobra.Command{
		Use:   "auth [vendor]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			w := cmd.OutOrStdout()

			switch {
			case listFlag:
				return runList(w, configDir)
			case removeFlag != "":
				return runRemove(w, removeFlag, configDir)
			default:
				if len(args) == 0 {
					return fmt.Errorf("vendor argument required\n\nSupported vendors: %s",
						strings.Join(credentials.SupportedProviders(), ", "))
				}
				return runAuth(w, cmd.InOrStdin(), args[0], configDir)
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.SupportedProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored credentials")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove stored credentials for a vendor")

	return cmd
}

func runAuth(w io.Writer, in io.Reader, vendor, configDir string) error {
	vendor = strings.ToLower(strings.TrimSpace(vendor))

	if !credentials.IsSupportedProvider(vendor) {
		return fmt.Errorf("unsupported vendor: %q\n\nSupported vendors: %s",
			vendor, strings.Join(credentials.SupportedProviders(), ", "))
	}

	apiKey, err := readAPIKey(w, in, vendor)
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetKey(vendor, apiKey); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Stored %s credentials %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(vendor),
		cliui.DimStyle.Render("(overrides "+credentials.EnvVarForProvider(vendor)+")"),
	)
	return nil
}

func runList(w io.Writer, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	vendors, err := mgr.ListVendors()
	if err != nil {
		return err
	}

	if len(vendors) == 0 {
		fmt.Fprintf(w, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(w, "  Use 'spool auth <vendor>' to store credentials.\n")
		fmt.Fprintf(w, "  Supported vendors: %s\n\n", strings.Join(credentials.SupportedProviders(), ", "))
		return nil
	}

	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored credentials"))
	for _, v := range vendors {
		if envVar := credentials.EnvVarForProvider(v); envVar != "" {
			fmt.Fprintf(w, "  %s  %s  %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(v),
				cliui.DimStyle.Render("overrides "+envVar),
			)
		} else {
			fmt.Fprintf(w, "  %s  %s\n", cliui.SuccessMark, cliui.NameStyle.Render(v))
		}
	}
	fmt.Fprintln(w)

	return nil
}

func runRemove(w io.Writer, vendor, configDir string) error {
	vendor = strings.ToLower(strings.TrimSpace(vendor))

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveKey(vendor); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Removed %s credentials.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(vendor))

	return nil
}

// readAPIKey reads an API key from in. A terminal gets a hidden prompt;
// anything else is read up to the first newline.
func readAPIKey(w io.Writer, in io.Reader, vendor string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(w, "Enter API key for %s (%s): ", vendor, credentials.EnvVarForProvider(vendor))

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(keyBytes), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
