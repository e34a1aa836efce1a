package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/tablesync/internal/api"
	"github.com/mcoot/tablesync/internal/factory"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local view API for a frontend",
		Long: `Connect to the hub and expose the client's view as a JSON API with a
server-sent event stream under /api/v1. Binds to loopback by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := connect(ctx, app); err != nil {
				return err
			}
			return serve(ctx, app)
		},
	}

	cmd.Flags().StringVar(&cfg.Listen, "listen", cfg.Listen, "Local API address (env: TSYNC_LISTEN)")
	cmd.Flags().StringVar(&cfg.APIToken, "api-token", cfg.APIToken, "Bearer token required by the local API (env: TSYNC_API_TOKEN)")

	return cmd
}

// serve runs the view API and its event hub until ctx is done or the
// hub connection is lost for good
func serve(ctx context.Context, app *factory.App) error {
	detach := app.Broadcaster.Attach(app.Navigator)
	defer detach()

	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Navigator:   app.Navigator,
		Hub:         app.Events,
		Broadcaster: app.Broadcaster,
		Token:       cfg.APIToken,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Addr = cfg.Listen
	server := api.NewServer(router, serverConfig, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Events.Run()
		return nil
	})
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		app.Events.Close()
		return server.Shutdown(context.Background())
	})

	if app.Transport != nil {
		lost := make(chan error, 1)
		sub := app.Transport.OnClosed(func(err error) {
			select {
			case lost <- err:
			default:
			}
		})
		defer sub.Off()
		g.Go(func() error {
			select {
			case err := <-lost:
				if err == nil {
					err = errors.New("hub connection closed")
				}
				logger.Error("hub connection lost", slog.String("error", err.Error()))
				return err
			case <-gctx.Done():
				return nil
			}
		})
	}

	return g.Wait()
}
