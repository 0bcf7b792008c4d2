package factory

import (
	"time"

	"github.com/mcoot/villefarm/internal/config"
	"github.com/mcoot/villefarm/internal/dependencies/mocks"
	"github.com/mcoot/villefarm/internal/storage/memory"
	"github.com/mcoot/villefarm/internal/testutil"
)

// TestEpoch is the mock clock's starting time in test apps
var TestEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return newTestApp(Config{})
}

// NewTestAppWithRules is NewTestApp with the given game rules instead of the defaults
func NewTestAppWithRules(rules config.Rules) *TestApp {
	return newTestApp(Config{Rules: &rules})
}

func newTestApp(cfg Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(TestEpoch)
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, cfg, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
