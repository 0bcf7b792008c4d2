package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/villefarm/internal/testutil"
)

type recorder struct {
	seen map[string]int
}

func (r *recorder) ObserveSweep(target string, removed int) {
	r.seen[target] += removed
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	rec := &recorder{seen: map[string]int{}}
	s, err := New("@every 1h", rec, testutil.NopLogger(),
		Job{Name: "sessions", Run: func(context.Context) (int, error) { return 2, nil }},
		Job{Name: "broken", Run: func(context.Context) (int, error) { return 0, errors.New("boom") }},
		Job{Name: "delegations", Run: func(context.Context) (int, error) { return 3, nil }},
	)
	require.NoError(t, err)

	removed := s.RunOnce(context.Background())

	assert.Equal(t, map[string]int{"sessions": 2, "delegations": 3}, removed)
	assert.Equal(t, map[string]int{"sessions": 2, "delegations": 3}, rec.seen)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New("every now and then", nil, testutil.NopLogger())
	assert.Error(t, err)
}

func TestScheduledRun(t *testing.T) {
	var runs atomic.Int32
	s, err := New("@every 1s", nil, testutil.NopLogger(),
		Job{Name: "count", Run: func(context.Context) (int, error) {
			runs.Add(1)
			return 0, nil
		}},
	)
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
