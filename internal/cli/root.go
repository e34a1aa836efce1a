package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mcoot/tablesync/internal/factory"
	"github.com/mcoot/tablesync/internal/loghandler"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/auth"
	redisstorage "github.com/mcoot/tablesync/internal/storage/redis"
	"github.com/mcoot/tablesync/internal/storage/sealed"
	"github.com/mcoot/tablesync/internal/transport"
)

var (
	cfg    *Config
	logger *slog.Logger
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	// A missing .env is fine; the environment and flags still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %s\n", err)
	}
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "tsync",
		Short: "Client for the table game hub",
		Long: `tsync connects to the game server's real-time hub and keeps a local
view of the lobby, the active game and its betting table.

It can play interactively, run embedded inside a host shell, or serve the
view as a local JSON and SSE API for a frontend.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = newLogger(cfg)
			slog.SetDefault(logger)

			// Load token from file if not provided via flag/env
			return cfg.LoadToken()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Game server REST URL (env: TSYNC_SERVER)")
	flags.StringVar(&cfg.HubURL, "hub", cfg.HubURL, "Game hub WebSocket URL (env: TSYNC_HUB)")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "Session token (env: TSYNC_TOKEN)")
	flags.StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: TSYNC_TOKEN_FILE)")
	flags.StringVar(&cfg.Storage, "storage", cfg.Storage, "Local storage: memory, redis (env: TSYNC_STORAGE)")
	flags.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL (env: TSYNC_REDIS_URL)")
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text, json")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newRoomsCmd())
	rootCmd.AddCommand(newPlayCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		NewOutput(cfg.Output).PrintError(err)
		os.Exit(1)
	}
}

// newLogger writes logs to stderr so stdout stays free for output and
// the host bridge
func newLogger(c *Config) *slog.Logger {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(loghandler.NewCompactHandler(os.Stderr, level))
}

// newApp wires the application from the CLI configuration. A token given
// by flag, env or token file is stored as the current session.
func newApp(ctx context.Context) (*factory.App, error) {
	fc := factory.Config{
		ServerURL:   cfg.ServerURL,
		Logger:      logger,
		StorageType: cfg.Storage,
	}

	tc := transport.DefaultConfig()
	tc.URL = cfg.HubURL
	fc.Transport = tc

	if cfg.Storage == factory.StorageTypeRedis {
		rc := redisstorage.DefaultConfig()
		rc.URL = cfg.RedisURL
		fc.RedisConfig = &rc
	}

	if cfg.StoreKey != "" {
		key, err := sealed.ParseKey(cfg.StoreKey)
		if err != nil {
			return nil, err
		}
		fc.StoreKey = key
	}

	app, err := factory.New(fc)
	if err != nil {
		return nil, err
	}

	if cfg.Token != "" {
		if err := adoptToken(ctx, app, cfg.Token); err != nil {
			_ = app.Close()
			return nil, err
		}
	}
	return app, nil
}

// adoptToken stores token as the current session unless it already is.
// Username and display name come from the token's claims.
func adoptToken(ctx context.Context, app *factory.App, token string) error {
	if current, err := app.AuthService.Current(ctx); err == nil && current.Token == token {
		return nil
	}
	_, err := app.AuthService.Adopt(ctx, auth.Session{Token: token})
	return err
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// connect dials the hub and waits for the server to confirm the identity
func connect(ctx context.Context, app *factory.App) error {
	confirmed := make(chan struct{})
	cancel := app.Identity.OnConfirmed(func(model.PlayerIdentity) {
		select {
		case <-confirmed:
		default:
			close(confirmed)
		}
	})
	defer cancel()

	if err := app.Connect(ctx); err != nil {
		return err
	}

	select {
	case <-confirmed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
