package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratus/internal/domain"
	"stratus/internal/domain/models"
)

func newTestSweeper(store *fakeTreeStore, users *fakeUserDirectory, clock *fakeClock) *Sweeper {
	s := NewSweeper(store, store, users, testLogger())
	s.now = clock.Now
	return s
}

func TestSweepDrainsUserCompletely(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	store := newFakeTreeStore(clock)
	users := &fakeUserDirectory{ids: []int64{1}}

	// Removed long ago, deep subtree still live. The sweep has no window, so
	// age does not matter.
	store.addFolder("P", nil, 1, true, base.Add(-90*24*time.Hour))
	store.addFolder("C1", ptr("P"), 1, false, base.Add(-90*24*time.Hour))
	store.addFolder("C2", ptr("C1"), 1, false, base.Add(-90*24*time.Hour))
	store.addFolder("C3", ptr("C2"), 1, false, base.Add(-90*24*time.Hour))
	store.addFile("f1", "C3", 1, models.FileStatusExists, 10, base)
	store.addFile("f2", "C1", 1, models.FileStatusTrashed, 10, base)

	s := newTestSweeper(store, users, clock)
	require.NoError(t, s.Sweep(context.Background(), 0))

	for _, uuid := range []string{"C1", "C2", "C3"} {
		assert.True(t, store.folders[uuid].Removed, uuid)
	}
	assert.Equal(t, models.FileStatusDeleted, store.files["f1"].Status)
	assert.Equal(t, models.FileStatusDeleted, store.files["f2"].Status)
}

func TestSweepSkipsUsersWithoutRemovals(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	store := newFakeTreeStore(clock)
	users := &fakeUserDirectory{ids: []int64{1, 2}}

	store.addFolder("a", nil, 1, false, base)
	store.addFolder("b", ptr("a"), 1, false, base)
	store.addFolder("P", nil, 2, true, base.Add(-time.Hour))
	store.addFolder("C", ptr("P"), 2, false, base.Add(-time.Hour))

	s := newTestSweeper(store, users, clock)
	require.NoError(t, s.Sweep(context.Background(), 0))

	assert.False(t, store.folders["a"].Removed)
	assert.False(t, store.folders["b"].Removed)
	assert.True(t, store.folders["C"].Removed)
}

func TestSweepResumesFromUserID(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	store := newFakeTreeStore(clock)
	users := &fakeUserDirectory{ids: []int64{1, 2}}

	store.addFolder("P1", nil, 1, true, base.Add(-time.Hour))
	store.addFolder("C1", ptr("P1"), 1, false, base.Add(-time.Hour))
	store.addFolder("P2", nil, 2, true, base.Add(-time.Hour))
	store.addFolder("C2", ptr("P2"), 2, false, base.Add(-time.Hour))

	s := newTestSweeper(store, users, clock)
	require.NoError(t, s.Sweep(context.Background(), 2))

	assert.False(t, store.folders["C1"].Removed)
	assert.True(t, store.folders["C2"].Removed)
}

func TestSweepStaysInsideUserBoundary(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	store := newFakeTreeStore(clock)
	// Only user 1 is swept; user 2's corrupt row pointing at user 1's removed
	// parent must survive untouched.
	users := &fakeUserDirectory{ids: []int64{1}}

	store.addFolder("P", nil, 1, true, base.Add(-time.Hour))
	store.addFolder("mine", ptr("P"), 1, false, base.Add(-time.Hour))
	store.addFolder("theirs", ptr("P"), 2, false, base.Add(-time.Hour))

	s := newTestSweeper(store, users, clock)
	require.NoError(t, s.Sweep(context.Background(), 0))

	assert.True(t, store.folders["mine"].Removed)
	assert.False(t, store.folders["theirs"].Removed)
}

func TestSweepPagesThroughManyUsers(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	store := newFakeTreeStore(clock)
	users := &fakeUserDirectory{ids: []int64{1, 2, 3, 4, 5}}

	for _, userID := range users.ids {
		parent := "P" + string(rune('0'+userID))
		child := "C" + string(rune('0'+userID))
		store.addFolder(parent, nil, userID, true, base.Add(-time.Hour))
		store.addFolder(child, ptr(parent), userID, false, base.Add(-time.Hour))
	}

	s := newTestSweeper(store, users, clock)
	s.pageSize = 2
	require.NoError(t, s.Sweep(context.Background(), 0))

	assert.Equal(t, 5, store.folderWrites)
}

func TestSweepRejectsNegativeFromUserID(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	store := newFakeTreeStore(clock)
	s := newTestSweeper(store, &fakeUserDirectory{}, clock)

	err := s.Sweep(context.Background(), -1)
	require.ErrorIs(t, err, domain.ErrValidation)
}
