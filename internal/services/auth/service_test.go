package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tablesync/internal/dependencies/mocks"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/restclient"
	"github.com/mcoot/tablesync/internal/storage/memory"
	"github.com/mcoot/tablesync/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signToken(claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return token
}

type ServiceSuite struct {
	suite.Suite
	server  *httptest.Server
	mux     *http.ServeMux
	store   *memory.Storage
	clock   *mocks.MockClock
	service *Service
	token   string
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	s.store = memory.New()
	s.clock = mocks.NewMockClock(testNow)
	s.token = signToken(jwt.MapClaims{
		"unique_name": "alice42",
		"name":        "Alice Smith",
		"exp":         testNow.Add(time.Hour).Unix(),
	})
	s.service = New(restclient.New(s.server.URL, ""), s.store, s.clock, DefaultConfig(), testutil.NopLogger())
}

func (s *ServiceSuite) TearDownTest() {
	s.server.Close()
}

func (s *ServiceSuite) handleLogin(status int, body any) {
	s.mux.HandleFunc("POST /api/Auths/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

func (s *ServiceSuite) TestLoginStoresProfile() {
	s.handleLogin(http.StatusOK, map[string]any{
		"token":    s.token,
		"username": "alice42",
		"fullName": "Alice",
		"balance":  250,
	})

	sess, err := s.service.Login(context.Background(), " alice42 ", "pw")

	s.Require().NoError(err)
	s.Equal(model.Username("alice42"), sess.Username)
	s.Equal(model.DisplayName("Alice"), sess.DisplayName)
	s.Equal(model.Amount(250), sess.Balance)

	profile, err := s.store.GetLastProfile(context.Background())
	s.Require().NoError(err)
	s.Equal(s.token, profile.Token)
	s.Equal(testNow, profile.SavedAt)
}

func (s *ServiceSuite) TestLoginFillsGapsFromClaims() {
	s.handleLogin(http.StatusOK, map[string]any{"token": s.token})

	sess, err := s.service.Login(context.Background(), "alice42", "pw")

	s.Require().NoError(err)
	s.Equal(model.Username("alice42"), sess.Username)
	s.Equal(model.DisplayName("Alice Smith"), sess.DisplayName)
}

func (s *ServiceSuite) TestLoginBadCredentials() {
	s.handleLogin(http.StatusUnauthorized, map[string]any{"message": "nope"})

	_, err := s.service.Login(context.Background(), "alice42", "wrong")

	s.ErrorIs(err, ErrInvalidCredentials)
	s.True(model.IsKind(err, model.KindPrecondition))
	_, err = s.store.GetLastProfile(context.Background())
	s.ErrorIs(err, model.ErrProfileNotFound)
}

func (s *ServiceSuite) TestLoginMissingFields() {
	_, err := s.service.Login(context.Background(), "  ", "pw")
	s.ErrorIs(err, ErrMissingFields)
}

func (s *ServiceSuite) TestLoginServerUnreachable() {
	s.server.Close()

	_, err := s.service.Login(context.Background(), "alice42", "pw")

	s.True(model.IsKind(err, model.KindConnection))
}

func (s *ServiceSuite) TestRegisterWithoutTokenLogsIn() {
	var registered RegisterRequest
	s.mux.HandleFunc("POST /api/Auths/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&registered)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	})
	s.handleLogin(http.StatusOK, map[string]any{"token": s.token, "username": "alice42"})

	sess, err := s.service.Register(context.Background(), RegisterRequest{
		Username: "alice42",
		Email:    "alice@example.com",
		Password: "pw",
		FullName: "Alice",
	})

	s.Require().NoError(err)
	s.Equal("alice@example.com", registered.Email)
	s.Equal(s.token, sess.Token)
}

func (s *ServiceSuite) TestRegisterRejected() {
	s.mux.HandleFunc("POST /api/Auths/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Username already exists"}`))
	})

	_, err := s.service.Register(context.Background(), RegisterRequest{Username: "alice42", Password: "pw"})

	s.True(model.IsKind(err, model.KindServerRejection))
	s.Equal("Username already exists", model.UserMessage(err))
}

func (s *ServiceSuite) TestMeUsesStoredToken() {
	var gotAuth string
	s.mux.HandleFunc("GET /api/Auths/me", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"username":"alice42","fullName":"Alice","balance":90}`))
	})
	_, err := s.service.Adopt(context.Background(), Session{Token: s.token, Username: "alice42"})
	s.Require().NoError(err)

	sess, err := s.service.Me(context.Background())

	s.Require().NoError(err)
	s.Equal("Bearer "+s.token, gotAuth)
	s.Equal(model.Amount(90), sess.Balance)
	s.Equal(s.token, sess.Token)
}

func (s *ServiceSuite) TestMeWithoutLogin() {
	_, err := s.service.Me(context.Background())
	s.ErrorIs(err, model.ErrNoToken)
}

func (s *ServiceSuite) TestCurrentExpired() {
	_, err := s.service.Adopt(context.Background(), Session{Token: s.token, Username: "alice42"})
	s.Require().NoError(err)

	s.clock.Advance(2 * time.Hour)
	_, err = s.service.Current(context.Background())

	s.ErrorIs(err, model.ErrTokenExpired)
	s.True(model.IsKind(err, model.KindFatal))
}

func (s *ServiceSuite) TestTokenProviderReadsStoreEachCall() {
	provider := s.service.TokenProvider()

	_, err := provider(context.Background())
	s.ErrorIs(err, model.ErrNoToken)
	s.True(model.IsKind(err, model.KindFatal))

	_, err = s.service.Adopt(context.Background(), Session{Token: s.token, Username: "alice42"})
	s.Require().NoError(err)

	token, err := provider(context.Background())
	s.Require().NoError(err)
	s.Equal(s.token, token)

	s.clock.Advance(2 * time.Hour)
	_, err = provider(context.Background())
	s.ErrorIs(err, model.ErrTokenExpired)
}

func (s *ServiceSuite) TestLogout() {
	_, err := s.service.Adopt(context.Background(), Session{Token: s.token, Username: "alice42"})
	s.Require().NoError(err)

	s.Require().NoError(s.service.Logout(context.Background()))
	s.Require().NoError(s.service.Logout(context.Background()))

	_, err = s.service.Current(context.Background())
	s.ErrorIs(err, model.ErrNoToken)
}

func (s *ServiceSuite) TestAdoptRequiresToken() {
	_, err := s.service.Adopt(context.Background(), Session{Username: "alice42"})
	s.ErrorIs(err, model.ErrNoToken)
}
