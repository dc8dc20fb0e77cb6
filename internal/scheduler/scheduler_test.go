package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/pkg/config"
)

type fakeReaper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (f *fakeReaper) Reap(ctx context.Context, staleAfter time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, staleAfter)
}

func (f *fakeReaper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSchedulerRunsReaper(t *testing.T) {
	reaper := &fakeReaper{}
	s := NewScheduler(reaper, zap.NewNop())

	require.NoError(t, s.Start(&config.CoreConfig{ReapCron: "* * * * * *", StaleAfter: "5m"}))
	defer s.Stop()

	assert.Eventually(t, func() bool { return reaper.count() > 0 }, 3*time.Second, 50*time.Millisecond)
	reaper.mu.Lock()
	assert.Equal(t, 5*time.Minute, reaper.calls[0])
	reaper.mu.Unlock()
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	s := NewScheduler(&fakeReaper{}, zap.NewNop())

	assert.Error(t, s.Start(&config.CoreConfig{ReapCron: "not a cron"}))
}

func TestTriggerReap(t *testing.T) {
	reaper := &fakeReaper{}
	s := NewScheduler(reaper, zap.NewNop())

	s.TriggerReap(time.Hour)

	assert.Equal(t, []time.Duration{time.Hour}, reaper.calls)
}
