package factory

import (
	"time"

	"github.com/mcoot/tablesync/internal/dependencies/mocks"
	"github.com/mcoot/tablesync/internal/restclient"
	"github.com/mcoot/tablesync/internal/services/auth"
	"github.com/mcoot/tablesync/internal/services/navigator"
	"github.com/mcoot/tablesync/internal/storage/memory"
	"github.com/mcoot/tablesync/internal/testutil"
	"github.com/mcoot/tablesync/internal/transport/transporttest"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	FakeHub    *transporttest.FakeHub
}

// NewTestApp creates an App configured for testing with mocked
// dependencies. authURL is the REST base URL for the auth service and
// may be empty when a test never logs in over the network.
func NewTestApp(authURL string) *TestApp {
	logger := testutil.NopLogger()
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	hub := transporttest.New()

	authService := auth.New(restclient.New(authURL, ""), store, mockClock, auth.DefaultConfig(), logger)
	app := newWithDependencies(store, hub, mockClock, mockRandom, authService, navigator.DefaultConfig(), logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		FakeHub:    hub,
	}
}
