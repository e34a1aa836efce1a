package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mcoot/tablesync/internal/api/sse"
	"github.com/mcoot/tablesync/internal/dependencies/clock"
	"github.com/mcoot/tablesync/internal/dependencies/random"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/restclient"
	"github.com/mcoot/tablesync/internal/services/auth"
	"github.com/mcoot/tablesync/internal/services/identity"
	"github.com/mcoot/tablesync/internal/services/navigator"
	"github.com/mcoot/tablesync/internal/services/wallet"
	"github.com/mcoot/tablesync/internal/storage"
	"github.com/mcoot/tablesync/internal/storage/memory"
	redisstorage "github.com/mcoot/tablesync/internal/storage/redis"
	"github.com/mcoot/tablesync/internal/storage/sealed"
	"github.com/mcoot/tablesync/internal/transport"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Hub is the connection every service listens on. Transport is the
	// same hub when it is a real WebSocket session, and nil in tests.
	Hub       transport.Hub
	Transport *transport.Session

	// Services
	AuthService *auth.Service
	Wallet      *wallet.Wallet
	Identity    *identity.Binder
	Navigator   *navigator.Navigator

	// Local view events
	Events      *sse.Hub
	Broadcaster *sse.Broadcaster

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// ServerURL is the base URL of the game server's REST API
	ServerURL string
	// Transport holds hub connection settings (optional)
	// If URL is empty, defaults to transport.DefaultConfig()
	Transport transport.Config
	// Navigator holds screen and scope settings (optional)
	// If zero value, defaults to navigator.DefaultConfig()
	Navigator navigator.Config
	// AuthConfig holds the auth endpoint paths (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// StoreKey seals stored tokens when set
	StoreKey []byte
}

// New creates a new application with all dependencies wired. The hub
// is not dialed; call Connect once a token is stored.
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	authCfg := cfg.AuthConfig
	if authCfg.LoginPath == "" {
		authCfg = auth.DefaultConfig()
	}
	authService := auth.New(restclient.New(cfg.ServerURL, ""), store, clk, authCfg, logger)

	transportCfg := cfg.Transport
	if transportCfg.URL == "" {
		transportCfg = transport.DefaultConfig()
	}
	session := transport.NewSession(transportCfg, authService.TokenProvider(), clk, rnd, logger)

	app := newWithDependencies(store, session, clk, rnd, authService, navigatorConfig(cfg.Navigator), logger)
	app.Transport = session
	return app, nil
}

func newStorage(cfg Config) (storage.Storage, error) {
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	if len(cfg.StoreKey) == 0 {
		return store, nil
	}
	return sealed.New(store, cfg.StoreKey)
}

func navigatorConfig(cfg navigator.Config) navigator.Config {
	if cfg.EndedReturnDelay == 0 {
		return navigator.DefaultConfig()
	}
	return cfg
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	hub transport.Hub,
	clk clock.Clock,
	rnd random.Random,
	authService *auth.Service,
	navCfg navigator.Config,
	logger *slog.Logger,
) *App {
	w := wallet.New(logger)
	binder := identity.NewBinder(rememberedName(store), w, logger)
	nav := navigator.New(hub, binder, w, store, clk, navCfg, logger)
	events := sse.NewHub(logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		Hub:         hub,
		AuthService: authService,
		Wallet:      w,
		Identity:    binder,
		Navigator:   nav,
		Events:      events,
		Broadcaster: sse.NewBroadcaster(events, logger),
		logger:      logger,
	}
}

// rememberedName is the display name of the last stored profile, shown
// until the server confirms the identity
func rememberedName(store storage.Storage) model.DisplayName {
	profile, err := store.GetLastProfile(context.Background())
	if err != nil {
		return ""
	}
	return profile.DisplayName
}

// Connect opens the lobby and dials the hub. Subscriptions are made
// before dialing so the UserData sent on connect is not missed.
func (a *App) Connect(ctx context.Context) error {
	a.Navigator.Start(ctx)
	if a.Transport == nil {
		return nil
	}
	if err := a.Transport.Connect(ctx); err != nil {
		return err
	}
	if err := a.Navigator.Lobby().Refresh(ctx); err != nil {
		a.logger.Warn("initial room list refresh failed", slog.String("error", err.Error()))
	}
	return nil
}

// Close tears down the navigator, the hub connection and storage
func (a *App) Close() error {
	a.Navigator.Close()
	a.Events.Close()

	var errs []error
	if a.Transport != nil {
		errs = append(errs, a.Transport.Close())
	}
	if closer, ok := a.Storage.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}
