package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Twixes/mcpolice/internal/api"
	"github.com/Twixes/mcpolice/internal/mcp"
	"github.com/Twixes/mcpolice/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Serve starts the HTTP server:
- POST /mcp           JSON-RPC tool calls (initialize, tools/list, tools/call)
- /api/...            REST endpoints for reporting and querying violations
- GET /metrics        Prometheus metrics
- GET /health         liveness

Example:
  mcpolice serve
  mcpolice serve --addr :9000 --store redis
  MCPOLICE_STORE_BACKEND=nats mcpolice serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8787)")
	serveCmd.Flags().String("store", "", "store backend: memory, disk, layered, nats, redis, postgres")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("store.backend", serveCmd.Flags().Lookup("store"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := a.server(ctx)
	if err != nil {
		return err
	}

	a.logger.Info("Starting mcpolice",
		"version", Version,
		"store", a.cfg.Store.Backend,
		"statutes", len(a.service.Statutes()),
		"llm", a.cfg.LLM.Provider)

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// llmCheckTimeout bounds the startup reachability check of the LLM provider
const llmCheckTimeout = 5 * time.Second

// server wires the tool-call handler, limiter and digester into the HTTP server
func (a *app) server(ctx context.Context) (*api.Server, error) {
	rpc := mcp.NewHandler(a.service,
		mcp.WithLogger(a.logger),
		mcp.WithObserver(a.metrics),
		mcp.WithServerInfo(a.cfg.Protocol.ServerName, Version, a.cfg.Protocol.Version))

	opts := []api.Option{
		api.WithLogger(a.logger),
		api.WithMetrics(a.metrics),
		api.WithRPC(rpc),
		api.WithConfig(a.cfg.Server),
		api.WithVersion(Version),
	}

	if a.cfg.RateLimiting.RequestsPerSecond > 0 {
		limiter := worker.NewLimiter(a.cfg.RateLimiting.RequestsPerSecond, a.cfg.RateLimiting.BurstSize)
		a.metrics.TrackClients(limiter.Clients)
		opts = append(opts, api.WithLimiter(limiter))
	}

	digester, err := a.digester()
	if err != nil {
		return nil, fmt.Errorf("configure llm: %w", err)
	}
	if digester != nil {
		// Serve anyway; the provider may come up later
		checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
		if !digester.Available(checkCtx) {
			a.logger.Warn("LLM provider is not reachable, digests will fail until it is", "provider", digester.Provider())
		}
		cancel()
		opts = append(opts, api.WithDigester(digester))
	}

	return api.NewServer(a.service, opts...), nil
}
