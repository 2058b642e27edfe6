// Package servecmder provides the serve command, which runs the dispatch API
// server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/api"
	mcpapi "github.com/papercomputeco/spool/api/mcp"
	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/dispatch"
	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/credentials"
	"github.com/papercomputeco/spool/pkg/logger"
)

const serveLongDesc string = `Run the spool API server.

The server accepts dispatches over HTTP and streams the resulting actions back
as NDJSON. Every dispatch is recorded as a tape in the configured store, which
the /v1/tapes routes expose for listing, inspection and replay. The same
tape tools are served to MCP clients at /mcp. With --kafka-brokers set, a
"spool.tape.recorded" event is published per tape.

API keys are taken from the client's Authorization header, then from keys
stored with "spool auth", then from the vendor's environment variable.

Examples:
  spool serve
  spool serve --listen :9000 --sqlite ./spool.db
  spool serve --postgres "postgres://spool@localhost/spool" --log-json
  spool serve --log-file ~/.spool/serve.log`

const serveShortDesc string = "Run the spool API server"

var flags = []string{
	config.FlagListen,
	config.FlagEnvironment,
	config.FlagStrict,
	config.FlagIdleTimeout,
	config.FlagRequestTimeout,
	config.FlagQueueSize,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

type serveCommander struct {
	listen         string
	environment    string
	strict         bool
	idleTimeout    string
	requestTimeout string
	queueSize      uint
	sqlitePath     string
	postgresDSN    string
	kafkaBrokers   string
	kafkaTopic     string
	logJSON        bool
	logFile        string
	noMCP          bool

	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *slog.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
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
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			log, closeLog, err := cmder.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()
			cmder.logger = log

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			listen := cmder.viper.GetString("server.listen")
			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", listen, err)
			}
			return cmder.serve(ctx, ln)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Registry, config.FlagEnvironment, &cmder.environment)
	config.AddBoolFlag(cmd, config.Registry, config.FlagStrict, &cmder.strict)
	config.AddStringFlag(cmd, config.Registry, config.FlagIdleTimeout, &cmder.idleTimeout)
	config.AddStringFlag(cmd, config.Registry, config.FlagRequestTimeout, &cmder.requestTimeout)
	config.AddUintFlag(cmd, config.Registry, config.FlagQueueSize, &cmder.queueSize)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Registry, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Registry, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().BoolVar(&cmder.logJSON, "log-json", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not serve the MCP endpoint at /mcp")

	return cmd
}

// newLogger builds the console logger and, with --log-file, tees every
// record as JSON to the file as well. The returned func closes the file.
func (c *serveCommander) newLogger(console io.Writer) (*slog.Logger, func() error, error) {
	log := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(c.logJSON),
		logger.WithPretty(!c.logJSON),
		logger.WithWriter(console),
	)
	if c.logFile == "" {
		return log, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	fileLog := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(log, fileLog), f.Close, nil
}

// serve runs the API server on ln until ctx is done or the server fails,
// then drains in-flight recordings and closes the tape store.
func (c *serveCommander) serve(ctx context.Context, ln net.Listener) error {
	settings, err := wiring.FromViper(c.viper)
	if err != nil {
		ln.Close()
		return err
	}

	rec, err := settings.OpenRecorder(ctx, c.logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer rec.Close()

	pub, err := settings.OpenPublisher(c.logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer pub.Close()

	dispatchConfig := settings.DispatchConfig(rec)
	dispatchConfig.Publisher = pub

	d, err := dispatch.New(dispatchConfig, settings.Policy(c.logger), c.logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer d.Close()

	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		ln.Close()
		return err
	}

	var mcpHandler http.Handler
	if !c.noMCP {
		mcpServer, err := mcpapi.NewServer(mcpapi.Config{
			Recorder: rec,
			Policy:   d.Policy(),
			Logger:   c.logger,
		})
		if err != nil {
			ln.Close()
			return fmt.Errorf("creating MCP server: %w", err)
		}
		mcpHandler = mcpServer.Handler()
	}

	server := api.NewServer(api.Config{
		ListenAddr: ln.Addr().String(),
		MCPHandler: mcpHandler,
	}, d, rec, creds, c.logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.RunWithListener(ln)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down API server: %w", err)
		}
		if err := <-errChan; err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	}
}
