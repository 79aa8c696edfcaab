package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roverlab/traverse/internal/api"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner and record store over HTTP",
		Long: `Serve the planner and record store over HTTP.

The server exposes the planning pipeline at POST /api/v1/plan and the path
record store under /api/v1/records. It shuts down gracefully on SIGINT and
SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore()
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			defer st.Close(cmd.Context())

			runner, err := c.newRunner(noCache, st)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(runner, st, c.Logger).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					c.Logger.Error("shutdown failed", "error", err)
				}
			}()

			c.Logger.Info("serving", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable result caching")

	return cmd
}
