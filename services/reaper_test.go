package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sparhub/db"
	"sparhub/models"
	"sparhub/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReaperFixture(t *testing.T) (*SessionService, *MemoryActivityTracker, *Reaper) {
	t.Helper()
	store := db.NewMemoryStore()
	utils.SeedCounterparts(context.Background(), store)
	tracker := NewMemoryActivityTracker()
	svc := NewSessionService(store, &stubGenerator{reply: "r"}, tracker, []int{3, 6, 8}, 3, false)
	reaper := NewReaper(svc, tracker, 5*time.Minute, 15*time.Minute)
	return svc, tracker, reaper
}

func TestReaperCompletesIdleSession(t *testing.T) {
	svc, tracker, reaper := newReaperFixture(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "alice", "pragmatist", "", 3)
	require.NoError(t, err)
	token := sess.PublicToken

	// Last active at T, sweep at T+16m with a 15m threshold.
	reaper.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	reaper.Sweep(ctx)

	got, err := svc.Get(ctx, token, "alice")
	require.NoError(t, err)
	assert.True(t, got.Completed)
	require.NotNil(t, got.Verdict, "reaped session must carry a synthetic verdict")
	assert.Contains(t, got.Verdict.Conclusion.Reasoning, "timed out due to inactivity")

	_, tracked, err := tracker.LastSeen(ctx, token)
	require.NoError(t, err)
	assert.False(t, tracked, "tracking entry must be dropped after reaping")
}

func TestReaperSparesActiveSession(t *testing.T) {
	svc, _, reaper := newReaperFixture(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "alice", "pragmatist", "", 3)
	require.NoError(t, err)

	reaper.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	reaper.Sweep(ctx)

	got, err := svc.Get(ctx, sess.PublicToken, "alice")
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestReaperFirstSightGrace(t *testing.T) {
	svc, tracker, reaper := newReaperFixture(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "alice", "pragmatist", "", 3)
	require.NoError(t, err)
	token := sess.PublicToken

	// Simulate a restart: the tracker lost its entry but the durable
	// timestamp is fresh. The sweep must seed, not reap.
	require.NoError(t, tracker.Drop(ctx, token))
	reaper.now = func() time.Time { return time.Now().Add(1 * time.Minute) }
	reaper.Sweep(ctx)

	got, err := svc.Get(ctx, token, "alice")
	require.NoError(t, err)
	assert.False(t, got.Completed)

	_, tracked, err := tracker.LastSeen(ctx, token)
	require.NoError(t, err)
	assert.True(t, tracked, "first sight must seed the tracking entry")
}

func TestReaperActivityRegisteredOnAppend(t *testing.T) {
	svc, tracker, reaper := newReaperFixture(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "alice", "pragmatist", "", 3)
	require.NoError(t, err)
	token := sess.PublicToken

	// Pretend the session was created long ago, then touched by a message.
	stale := time.Now().Add(-30 * time.Minute)
	require.NoError(t, tracker.Touch(ctx, token, stale))
	_, _, err = svc.AppendUserMessage(ctx, token, "alice", "still here")
	require.NoError(t, err)

	reaper.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	reaper.Sweep(ctx)

	got, err := svc.Get(ctx, token, "alice")
	require.NoError(t, err)
	assert.False(t, got.Completed, "recent append must keep the session alive")
}

// faultyStore rejects writes for whichever session a sweep lists first, so
// that session's force-complete fails while the rest of the sweep proceeds.
type faultyStore struct {
	Store
	mu        sync.Mutex
	failToken string
}

func (s *faultyStore) ListOpenSessions(ctx context.Context) ([]models.Session, error) {
	sessions, err := s.Store.ListOpenSessions(ctx)
	if err == nil && len(sessions) > 0 {
		s.mu.Lock()
		s.failToken = sessions[0].PublicToken
		s.mu.Unlock()
	}
	return sessions, err
}

func (s *faultyStore) ReplaceSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	fail := s.failToken != "" && s.failToken == sess.PublicToken
	s.mu.Unlock()
	if fail {
		return errors.New("write rejected")
	}
	return s.Store.ReplaceSession(ctx, sess)
}

func TestReaperErrorIsolation(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	utils.SeedCounterparts(ctx, store)
	faulty := &faultyStore{Store: store}
	tracker := NewMemoryActivityTracker()
	svc := NewSessionService(faulty, &stubGenerator{reply: "r"}, tracker, []int{3, 6, 8}, 3, false)
	reaper := NewReaper(svc, tracker, 5*time.Minute, 15*time.Minute)

	first, err := svc.CreateSession(ctx, "alice", "pragmatist", "", 3)
	require.NoError(t, err)
	second, err := svc.CreateSession(ctx, "alice", "idealist", "", 3)
	require.NoError(t, err)

	// Both idle past the threshold. The sweep's first force-complete fails
	// at the store; the other session must still be reaped in the same
	// sweep.
	stale := time.Now().Add(-time.Hour)
	require.NoError(t, tracker.Touch(ctx, first.PublicToken, stale))
	require.NoError(t, tracker.Touch(ctx, second.PublicToken, stale))

	reaper.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	reaper.Sweep(ctx)

	faulty.mu.Lock()
	failed := faulty.failToken
	faulty.mu.Unlock()
	require.NotEmpty(t, failed)

	reaped := 0
	for _, token := range []string{first.PublicToken, second.PublicToken} {
		got, err := svc.Get(ctx, token, "alice")
		require.NoError(t, err)
		if token == failed {
			assert.False(t, got.Completed, "the failing session stays open for the next sweep")
		} else {
			assert.True(t, got.Completed, "one reap error must not abort the sweep")
			reaped++
		}
	}
	assert.Equal(t, 1, reaped)
}

func TestForceCompleteIdempotent(t *testing.T) {
	svc, _, _ := newReaperFixture(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "alice", "pragmatist", "", 3)
	require.NoError(t, err)

	require.NoError(t, svc.ForceCompleteInactive(ctx, sess.PublicToken))
	// A second force-complete is a no-op, not an error.
	require.NoError(t, svc.ForceCompleteInactive(ctx, sess.PublicToken))

	got, err := svc.Get(ctx, sess.PublicToken, "alice")
	require.NoError(t, err)
	assert.True(t, got.Completed)
}

func TestTimeoutVerdictShape(t *testing.T) {
	v := TimeoutVerdict()
	require.NotNil(t, v)
	assert.Contains(t, v.Conclusion.Reasoning, "timed out due to inactivity")
	for _, pillar := range models.VerdictPillars {
		assert.NotEmpty(t, v.Conclusion.Pillars[pillar])
	}
}
