package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mcoot/tablesync/internal/dependencies/clock"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/restclient"
	"github.com/mcoot/tablesync/internal/storage"
	"github.com/mcoot/tablesync/internal/transport"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingFields      = errors.New("username and password are required")
	ErrRegistration       = errors.New("registration failed")
)

// Session is the result of a successful login
type Session struct {
	Token       string            `json:"token"`
	Username    model.Username    `json:"username"`
	DisplayName model.DisplayName `json:"fullName"`
	Balance     model.Amount      `json:"balance"`
}

// RegisterRequest holds new account details
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// Config holds the auth endpoint paths
type Config struct {
	LoginPath    string
	RegisterPath string
	MePath       string
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		LoginPath:    "/api/Auths/login",
		RegisterPath: "/api/Auths/register",
		MePath:       "/api/Auths/me",
	}
}

// Service logs in against the game server and remembers the session
type Service struct {
	client *restclient.Client
	store  storage.Storage
	clock  clock.Clock
	cfg    Config
	logger *slog.Logger
}

// New creates a new auth Service
func New(client *restclient.Client, store storage.Storage, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		store:  store,
		clock:  clk,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "auth")),
	}
}

// Login exchanges credentials for a session token and stores the profile
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, model.Precondition("login", ErrMissingFields)
	}

	var sess Session
	body := map[string]string{"username": username, "password": password}
	if err := s.client.Post(ctx, s.cfg.LoginPath, body, &sess); err != nil {
		switch restclient.StatusOf(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
			return nil, model.Precondition("login", ErrInvalidCredentials)
		case 0:
			return nil, model.Connection("login", err)
		}
		return nil, model.Rejection("login", err.Error())
	}
	if sess.Username == "" {
		sess.Username = model.Username(username)
	}
	return s.remember(ctx, &sess)
}

// Register creates an account and logs it in
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, model.Precondition("register", ErrMissingFields)
	}

	var sess Session
	if err := s.client.Post(ctx, s.cfg.RegisterPath, req, &sess); err != nil {
		var se *restclient.StatusError
		if errors.As(err, &se) {
			return nil, model.Rejection("register", se.Message)
		}
		return nil, model.Connection("register", err)
	}
	if sess.Token == "" {
		// some deployments only create the account
		return s.Login(ctx, req.Username, req.Password)
	}
	if sess.Username == "" {
		sess.Username = model.Username(req.Username)
	}
	if sess.DisplayName == "" {
		sess.DisplayName = model.DisplayName(req.FullName)
	}
	return s.remember(ctx, &sess)
}

// Me fetches the account behind the stored token
func (s *Service) Me(ctx context.Context) (*Session, error) {
	profile, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	s.client.SetToken(profile.Token)
	var sess Session
	if err := s.client.Get(ctx, s.cfg.MePath, &sess); err != nil {
		if restclient.StatusOf(err) == http.StatusUnauthorized {
			return nil, model.Fatal("me", model.ErrTokenExpired)
		}
		return nil, model.Connection("me", err)
	}
	sess.Token = profile.Token
	if sess.Username == "" {
		sess.Username = profile.Username
	}
	return s.remember(ctx, &sess)
}

// Adopt stores a session handed over by a host shell
func (s *Service) Adopt(ctx context.Context, sess Session) (*Session, error) {
	if sess.Token == "" {
		return nil, model.Precondition("adopt", model.ErrNoToken)
	}
	return s.remember(ctx, &sess)
}

// remember fills gaps from the token claims and saves the profile
func (s *Service) remember(ctx context.Context, sess *Session) (*Session, error) {
	if claims, err := ParseClaims(sess.Token); err == nil {
		if sess.Username == "" {
			sess.Username = claims.Username
		}
		if sess.DisplayName == "" {
			sess.DisplayName = claims.DisplayName
		}
	} else {
		s.logger.Debug("session token has no readable claims", slog.String("error", err.Error()))
	}

	profile := &model.Profile{
		Username:    sess.Username,
		DisplayName: sess.DisplayName,
		Token:       sess.Token,
		Balance:     sess.Balance,
		SavedAt:     s.clock.Now(),
	}
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Info("session saved", slog.String("username", string(sess.Username)))
	return sess, nil
}

// Current returns the stored profile, failing if its token has expired
func (s *Service) Current(ctx context.Context) (*model.Profile, error) {
	profile, err := s.store.GetLastProfile(ctx)
	if err != nil {
		if errors.Is(err, model.ErrProfileNotFound) {
			return nil, model.Precondition("session", model.ErrNoToken)
		}
		return nil, err
	}
	if claims, err := ParseClaims(profile.Token); err == nil && claims.Expired(s.clock.Now()) {
		return nil, model.Fatal("session", model.ErrTokenExpired)
	}
	return profile, nil
}

// Logout forgets the stored profile
func (s *Service) Logout(ctx context.Context) error {
	profile, err := s.store.GetLastProfile(ctx)
	if errors.Is(err, model.ErrProfileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.DeleteProfile(ctx, profile.Username)
}

// TokenProvider reads the stored token on every dial, so a reconnect
// picks up a token refreshed in the meantime
func (s *Service) TokenProvider() transport.TokenProvider {
	return func(ctx context.Context) (string, error) {
		profile, err := s.Current(ctx)
		if err != nil {
			if model.IsKind(err, model.KindFatal) {
				return "", err
			}
			return "", model.Fatal("connect", model.ErrNoToken)
		}
		return profile.Token, nil
	}
}
