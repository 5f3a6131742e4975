package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/example/galley/internal/logging"
	"github.com/example/galley/internal/version"
	"github.com/example/galley/internal/wire"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dispatch REST API",
		Long: `Serve the REST API used by the operations and branch portals.
Requires JWT_SECRET. The store is chosen by store.driver (sqlite, postgres, memory).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Set Gin mode based on environment
			if os.Getenv("GIN_MODE") == "" {
				gin.SetMode(gin.ReleaseMode)
			}

			router, err := wire.Router()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = wire.Config().Server.Addr
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				fields := logging.Fields(version.Fields())
				fields["addr"] = addr
				fields["store"] = wire.Config().Store.Driver
				logging.Info("starting server", fields)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logging.Info("shutting down server", nil)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default server.addr)")

	return cmd
}
