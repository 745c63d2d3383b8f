package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderinc/ig2ghost/internal/web"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var host, port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only preview of pending posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			db, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			var searcher web.Searcher
			idx, err := ctx.openIndex()
			if err != nil {
				logger.Warn("caption index unavailable, search disabled", slog.String("error", err.Error()))
			} else {
				defer idx.Close()
				searcher = idx
			}

			server, err := web.NewServer(db, searcher, logger)
			if err != nil {
				return err
			}

			addr := net.JoinHostPort(host, port)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- httpServer.ListenAndServe()
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Preview available at http://%s\n", addr)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serve: %w", err)
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "Host to bind to")
	cmd.Flags().StringVar(&port, "port", "6893", "Port to listen on")
	return cmd
}
