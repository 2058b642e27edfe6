// Package generatecmder provides the generate command, which streams one
// generation from a vendor to the terminal.
package generatecmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/sqlitepath"
	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/dispatch"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/credentials"
	"github.com/papercomputeco/spool/pkg/dotdir"
	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/tape"
)

const generateLongDesc string = `Stream one generation to the terminal.

The request body is the vendor's own JSON request, read from a file or from
stdin ("-"). When --vendor is not given the vendor is guessed from the body
and falls back to vendor.default from config.toml.

Every completed dispatch is recorded as a tape in the .spool/ directory
(or the configured storage) and can be replayed with "spool replay".

Examples:
  spool generate request.json
  spool generate --vendor anthropic request.json
  cat request.json | spool generate --vendor openai -
  spool generate --vendor gemini --model gemini-2.0-flash request.json
  spool generate --vendor azure --endpoint https://me.openai.azure.com --option api_version=2024-10-21 req.json`

const generateShortDesc string = "Stream a generation to the terminal"

var flags = []string{
	config.FlagVendor,
	config.FlagEndpoint,
	config.FlagEnvironment,
	config.FlagStrict,
	config.FlagIdleTimeout,
	config.FlagRequestTimeout,
	config.FlagQueueSize,
	config.FlagSQLite,
	config.FlagPostgres,
}

type generateCommander struct {
	vendor         string
	endpoint       string
	environment    string
	strict         bool
	idleTimeout    string
	requestTimeout string
	queueSize      uint
	sqlitePath     string
	postgresDSN    string

	model    string
	headers  map[string]string
	options  map[string]string
	markdown bool
	noRecord bool

	debug     bool
	configDir string
	viper     *viper.Viper

	vendorChanged   bool
	endpointChanged bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

func NewGenerateCmd() *cobra.Command {
	cmder := &generateCommander{}

	cmd := &cobra.Command{
		Use:   "generate [request.json|-]",
		Short: generateShortDesc,
		Long:  generateLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, flags)
			cmder.viper = v
			cmder.vendorChanged = cmd.Flags().Changed("vendor")
			cmder.endpointChanged = cmd.Flags().Changed("endpoint")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			return cmder.run(cmd.Context(), source)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagVendor, &cmder.vendor)
	config.AddStringFlag(cmd, config.Registry, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Registry, config.FlagEnvironment, &cmder.environment)
	config.AddBoolFlag(cmd, config.Registry, config.FlagStrict, &cmder.strict)
	config.AddStringFlag(cmd, config.Registry, config.FlagIdleTimeout, &cmder.idleTimeout)
	config.AddStringFlag(cmd, config.Registry, config.FlagRequestTimeout, &cmder.requestTimeout)
	config.AddUintFlag(cmd, config.Registry, config.FlagQueueSize, &cmder.queueSize)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgres, &cmder.postgresDSN)

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model identifier (defaults to the body's \"model\" field)")
	cmd.Flags().StringToStringVarP(&cmder.headers, "header", "H", nil, "Extra upstream header, e.g. -H OpenAI-Organization=org-123")
	cmd.Flags().StringToStringVar(&cmder.options, "option", nil, "Vendor option, e.g. --option api_version=2024-10-21")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render the finished text as markdown")
	cmd.Flags().BoolVar(&cmder.noRecord, "no-record", false, "Do not record a tape")

	return cmd
}

func (c *generateCommander) run(ctx context.Context, source string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level := slog.LevelWarn
	if c.debug {
		level = slog.LevelDebug
	}
	c.logger = logger.New(logger.WithLevel(level), logger.WithPretty(true), logger.WithWriter(c.errOut))

	settings, err := wiring.FromViper(c.viper)
	if err != nil {
		return err
	}

	body, err := c.readBody(source)
	if err != nil {
		return err
	}

	access, req, err := c.request(body)
	if err != nil {
		return err
	}

	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if access.APIKey, err = creds.Resolve(access.Vendor); err != nil {
		return fmt.Errorf("resolving API key: %w", err)
	}

	var rec tape.Recorder
	if !c.noRecord {
		if settings.SQLitePath == "" && settings.PostgresDSN == "" {
			if settings.SQLitePath, err = sqlitepath.DefaultPath(c.configDir); err != nil {
				return err
			}
		}
		if rec, err = settings.OpenRecorder(ctx, c.logger); err != nil {
			return err
		}
		defer rec.Close()
	}

	d, err := dispatch.New(settings.DispatchConfig(rec), settings.Policy(c.logger), c.logger)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream, err := d.Dispatch(ctx, access, req)
	if err != nil {
		d.Close()
		return err
	}
	defer stream.Close()

	printer := cliui.NewActionPrinter(c.out)
	printer.Quiet = c.markdown
	for a := range stream.All() {
		printer.Print(a)
	}

	// Drains the recording queue before the store is closed.
	d.Close()

	if c.markdown {
		rendered, err := cliui.RenderMarkdown(printer.Text())
		if err != nil {
			c.logger.Warn("rendering markdown", "error", err)
		}
		fmt.Fprint(c.out, rendered)
	}
	printer.Summary()

	if ctx.Err() != nil {
		return fmt.Errorf("dispatch %s cancelled", stream.ID())
	}

	if rec != nil {
		model := printer.Metadata().Model
		if model == "" {
			model = req.Model
		}
		last := &dotdir.LastDispatch{ID: stream.ID(), Vendor: access.Vendor, Model: model, At: time.Now().UTC()}
		if err := dotdir.NewManager().SaveLastDispatch(last, c.configDir); err != nil {
			c.logger.Warn("saving last dispatch", "error", err)
		}
	}

	if n := printer.Issues(); n > 0 {
		return fmt.Errorf("dispatch %s finished with %d issue(s)", stream.ID(), n)
	}
	return nil
}

func (c *generateCommander) readBody(source string) ([]byte, error) {
	var (
		body []byte
		err  error
	)

	if source == "-" {
		if f, ok := c.in.(*os.File); ok {
			if info, statErr := f.Stat(); statErr == nil && info.Mode()&os.ModeCharDevice != 0 {
				return nil, errors.New("request body required: pass a file or pipe JSON on stdin")
			}
		}
		body, err = io.ReadAll(c.in)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	if !json.Valid(body) {
		return nil, errors.New("request body is not valid JSON")
	}
	return body, nil
}

// request builds the dispatch inputs. The vendor comes from --vendor, then
// the body's shape, then vendor.default. A configured endpoint only applies
// to the configured vendor.
func (c *generateCommander) request(body []byte) (llm.Access, llm.GenerateRequest, error) {
	configured := c.viper.GetString("vendor.default")

	vendor := configured
	switch {
	case c.vendorChanged:
		vendor = c.vendor
	case provider.Detect(body) != "":
		vendor = provider.Detect(body)
	}
	vendor = strings.ToLower(strings.TrimSpace(vendor))
	if vendor == "" {
		return llm.Access{}, llm.GenerateRequest{}, errors.New("no vendor: pass --vendor or set vendor.default")
	}

	access := llm.Access{
		Vendor:  vendor,
		Headers: c.headers,
		Options: c.options,
	}
	if c.endpointChanged || vendor == configured {
		access.Endpoint = c.viper.GetString("vendor.endpoint")
	}

	model := c.model
	if model == "" {
		var probe struct {
			Model string `json:"model"`
		}
		_ = json.Unmarshal(body, &probe)
		model = probe.Model
	}

	return access, llm.GenerateRequest{Model: model, Body: body}, nil
}
