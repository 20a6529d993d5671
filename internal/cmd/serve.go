package cmd

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/pomgen/internal/health"
	"github.com/felixgeelhaar/pomgen/internal/server"
	"github.com/felixgeelhaar/pomgen/internal/version"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP",
		Long: `Serve stage invocations over HTTP so several agents can drive one
project and share its registry.

Endpoints:
  POST /v1/invoke            run one stage request
  POST /v1/run               run a plan
  GET  /v1/status            pipeline state and drift report
  GET  /v1/components        registered components
  GET  /v1/components/{name} one component
  GET  /health/live, /health/ready, /health/startup

The server drains in-flight requests on SIGINT or SIGTERM.`,
		Example: `  pomgen serve
  pomgen serve --addr :9000 --retries 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ws, err := cc.OpenWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			addr := ws.Config.Server.Address
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				addr = v
			}
			retries, _ := cmd.Flags().GetInt("retries")

			probes := health.NewProbeManager(version.GetInfo().Short())
			probes.AddChecker(health.NewRegistryChecker(ws.Registry))
			probes.AddChecker(health.NewContractChecker(ws.Contract))
			probes.AddChecker(health.NewWorkspaceChecker(cc.Root))

			srv := server.NewServer(ws.Coordinator, probes, server.Config{
				Address:         addr,
				ShutdownTimeout: ws.Config.Server.ShutdownTimeout,
				Retries:         retries,
				Logger:          ws.Logger,
				Telemetry:       ws.Telemetry,
			})

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				if err := srv.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				return srv.Shutdown(context.WithoutCancel(ctx))
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.address in the config)")
	cmd.Flags().Int("retries", 2, "retries for invocations that lost the registry race")
	return cmd
}
