package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-federation/federation/source/httpsource"
)

// NewServeCommand creates the serve command
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name string
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a configured source over the HTTP source protocol",
		Long: `Serve a configured source so other fedquery configurations can reach it
as a source of type http.

Example:
  fedquery serve --source people --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := openEnvironment(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()
			backend, err := env.source(name)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           httpsource.NewHandler(backend),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Printf("serving %s on %s", name, addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&name, "source", "", "name of the source to serve")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
