package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/internal/db/dbtest"
	"github.com/thebtf/engram-storage/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{Dir: filepath.Join(t.TempDir(), "data")})
	require.NoError(t, err)
	return store
}

func TestStoreContract(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) db.Store {
		return newTestStore(t)
	})
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	var cfgErr *db.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, AdapterName, cfgErr.Adapter)
	assert.Contains(t, err.Error(), "ENGRAM_STORAGE_DIR")
}

func TestNew_NoIO(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	store, err := New(Config{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "file", store.Name())
	assert.Equal(t, dir, store.Dir())

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestInitialize_Layout(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	for _, name := range []string{sessionsDir, observationsDir, summariesDir, pendingDir, promptsDir} {
		info, err := os.Stat(filepath.Join(store.Dir(), name))
		require.NoError(t, err, name)
		assert.True(t, info.IsDir(), name)
	}
	_, err := os.Stat(filepath.Join(store.Dir(), indexFile))
	assert.NoError(t, err)
}

func TestRecordFiles(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	_, err := store.CreateSDKSession(ctx, "abc/1", "demo", "hello")
	require.NoError(t, err)
	obsID, _, err := store.StoreObservation(ctx, "mem-1", "demo",
		&models.ParsedObservation{Type: models.ObsTypeFeature, Title: "x"}, 1, 0)
	require.NoError(t, err)
	_, err = store.SaveUserPrompt(ctx, "abc/1", 1, "hello")
	require.NoError(t, err)

	expected := []string{
		filepath.Join(sessionsDir, "abc%2F1.json"),
		filepath.Join(observationsDir, idFile(obsID)),
		filepath.Join(promptsDir, "abc%2F1", "1.json"),
	}
	for _, rel := range expected {
		_, err := os.Stat(filepath.Join(store.Dir(), rel))
		assert.NoError(t, err, rel)
	}

	// No temporary files survive a successful write.
	err = filepath.Walk(store.Dir(), func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		assert.False(t, strings.Contains(filepath.Base(path), tmpMarker), path)
		return nil
	})
	require.NoError(t, err)
}

func TestIndex_RebuiltWhenMissing(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")

	store, err := New(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	_, err = store.CreateSDKSession(ctx, "s-1", "beta", "")
	require.NoError(t, err)
	_, err = store.CreateSDKSession(ctx, "s-2", "alpha", "")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, os.Remove(filepath.Join(dir, indexFile)))

	store, err = New(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	projects, err := store.GetAllProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, projects)

	id, err := store.CreateSDKSession(ctx, "s-3", "alpha", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestBatch_RemovesPartialFiles(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	_, err := store.StoreObservationsAndSummary(ctx, "mem-1", "demo", []*models.ParsedObservation{
		{Type: models.ObsTypeBugfix},
		{Type: models.ObsTypeChange},
		{Type: "bogus"},
	}, &models.ParsedSummary{Request: "r"}, 1, 0)
	require.ErrorIs(t, err, db.ErrInvalidObservationType)

	entries, err := os.ReadDir(filepath.Join(store.Dir(), observationsDir))
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Counters are restored, so the next write reuses the first id.
	id, _, err := store.StoreObservation(ctx, "mem-1", "demo", &models.ParsedObservation{Type: models.ObsTypeBugfix}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

// blockIndex replaces index.json with a non-empty directory so the next
// index flush fails, and returns a func that undoes it.
func blockIndex(t *testing.T, store *Store) func() {
	t.Helper()
	path := store.path(indexFile)
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "keep"), 0750))
	return func() {
		require.NoError(t, os.RemoveAll(path))
	}
}

func TestBatch_IndexFlushFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	unblock := blockIndex(t, store)
	_, err := store.StoreObservationsAndSummary(ctx, "mem-1", "demo", []*models.ParsedObservation{
		{Type: models.ObsTypeBugfix},
		{Type: models.ObsTypeChange},
	}, &models.ParsedSummary{Request: "r"}, 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write index")

	for _, dir := range []string{observationsDir, summariesDir} {
		entries, err := os.ReadDir(store.path(dir))
		require.NoError(t, err)
		assert.Empty(t, entries, dir)
	}
	observations, err := store.GetObservationsForSession(ctx, "mem-1")
	require.NoError(t, err)
	assert.Empty(t, observations)

	unblock()
	result, err := store.StoreObservationsAndSummary(ctx, "mem-1", "demo", []*models.ParsedObservation{
		{Type: models.ObsTypeBugfix},
	}, &models.ParsedSummary{Request: "r"}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, result.ObservationIDs)
	assert.Equal(t, int64(1), result.SummaryID)
}

func TestMutate_RestoresRecordsOnIndexFlushFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	sessionID, err := store.CreateSDKSession(ctx, "content-1", "demo", "")
	require.NoError(t, err)
	msgID, err := store.EnqueuePendingMessage(ctx, &models.PendingMessage{
		SessionDBID:      sessionID,
		ContentSessionID: "content-1",
		MessageType:      models.PendingTypeObservation,
	})
	require.NoError(t, err)

	unblock := blockIndex(t, store)
	assert.Error(t, store.CompleteSession(ctx, sessionID, models.SessionStatusCompleted))
	assert.Error(t, store.CompletePendingMessage(ctx, msgID))
	_, err = store.ClaimNextPendingMessage(ctx, sessionID)
	assert.Error(t, err)
	unblock()

	sess, err := store.GetSessionByID(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, models.SessionStatusActive, sess.Status)
	assert.False(t, sess.CompletedAtEpoch.Valid)

	pending, err := store.GetPendingMessages(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, msgID, pending[0].ID)
	assert.Equal(t, models.PendingStatusPending, pending[0].Status)
}

func TestEscapeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc-1", "abc-1"},
		{"A_b_9", "A_b_9"},
		{"a/b", "a%2Fb"},
		{"..", "%2E%2E"},
		{"a b%", "a%20b%25"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeKey(tt.in))
		})
	}
}

func TestListRecords_SkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeJSON(filepath.Join(dir, idFile(1)), &promptRecord{ID: 1}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0640))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.json"+tmpMarker+"abc"), []byte("{"), 0640))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0750))

	records, err := listRecords[promptRecord](dir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)

	missing, err := listRecords[promptRecord](filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}
