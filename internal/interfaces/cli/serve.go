package cli

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/KeyIP-Analytics/internal/app"
	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/KeyIP-Analytics/internal/interfaces/http"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

func newServeCmd() *cobra.Command {
	var (
		host  string
		port  int
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the SQL, MCP and status API over HTTP",
		Long: "Serve the HTTP adapter until SIGINT or SIGTERM.\n" +
			"--watch reloads the configuration file on change and swaps in a freshly\n" +
			"built application; the listen address is fixed at startup.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cliCtx.Config.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cliCtx.Config.Server.Port = port
			}
			if watch && cliCtx.ConfigPath == "" {
				return errors.InvalidArguments("--watch needs a configuration file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := cliCtx.App(ctx)
			if err != nil {
				return err
			}
			if !watch {
				defer func() {
					if cerr := cliCtx.Close(); cerr != nil {
						cliCtx.Logger.Warn("failed to release resources", logging.Err(cerr))
					}
				}()
				return a.Server().Run(ctx)
			}

			// The swap handler owns the application from here on.
			cliCtx.app = nil
			h := newSwapHandler(a, cliCtx.Logger)
			defer h.close()
			err = config.Watch(cliCtx.ConfigPath,
				func(cfg *config.Config) { h.reload(ctx, cliCtx, cfg) },
				func(err error) { cliCtx.Logger.Warn("ignoring invalid configuration", logging.Err(err)) })
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidArguments, "watch configuration")
			}
			return httpapi.NewServer(a.Config.Server, h, cliCtx.Logger).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the configuration file on change")
	return cmd
}

// swapHandler routes every request to the router of the current application.
// The Server built from the first application keeps its listener; only the
// handler behind it changes on reload.
type swapHandler struct {
	mu      sync.Mutex
	current atomic.Pointer[served]
	logger  logging.Logger
}

type served struct {
	app     *app.App
	handler http.Handler
}

func newSwapHandler(a *app.App, logger logging.Logger) *swapHandler {
	h := &swapHandler{logger: logger}
	h.current.Store(&served{app: a, handler: a.Router()})
	return h
}

func (h *swapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.current.Load().handler.ServeHTTP(w, r)
}

// reload builds an application from cfg and swaps it in. The previous one is
// closed once its in-flight requests have had the write timeout to finish. A
// failed build keeps the running application.
func (h *swapHandler) reload(ctx context.Context, cliCtx *CLIContext, cfg *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.current.Load()
	cfg.Server = prev.app.Config.Server
	next, err := cliCtx.factory(ctx, cfg, cliCtx.Logger)
	if err != nil {
		h.logger.Error("configuration reload failed, keeping the running application", logging.Err(err))
		return
	}
	h.current.Store(&served{app: next, handler: next.Router()})
	h.logger.Info("configuration reloaded", logging.Strings("databases", next.Catalog.Names()))

	grace := cfg.Server.WriteTimeout
	if grace <= 0 {
		grace = 30 * time.Second
	}
	time.AfterFunc(grace, func() {
		if err := prev.app.Close(); err != nil {
			h.logger.Warn("failed to close replaced application", logging.Err(err))
		}
	})
}

// close releases the current application.
func (h *swapHandler) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.current.Load().app.Close(); err != nil {
		h.logger.Warn("failed to release resources", logging.Err(err))
	}
}
