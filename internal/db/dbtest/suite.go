// Package dbtest holds the behavioural test suite every storage adapter runs.
package dbtest

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

// StoreSuite exercises the storage contract against one adapter.
// NewStore must return an uninitialized store backed by empty storage.
type StoreSuite struct {
	suite.Suite
	NewStore func(t *testing.T) db.Store

	store db.Store
	ctx   context.Context
}

// Run runs the contract suite against the adapter built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) db.Store) {
	suite.Run(t, &StoreSuite{NewStore: newStore})
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore(s.T())
	s.Require().NoError(s.store.Initialize(s.ctx))
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
	}
}

// base is a fixed reference time so epochs are predictable.
var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(offset time.Duration) db.WriteOption {
	return db.WithEpoch(base.Add(offset).UnixMilli())
}

func bugfix(title string) *models.ParsedObservation {
	return &models.ParsedObservation{Type: models.ObsTypeBugfix, Title: title}
}

func (s *StoreSuite) enqueue(sessionDBID int64, opts ...db.WriteOption) int64 {
	id, err := s.store.EnqueuePendingMessage(s.ctx, &models.PendingMessage{
		SessionDBID:      sessionDBID,
		ContentSessionID: "content-queue",
		MessageType:      models.PendingTypeObservation,
	}, opts...)
	s.Require().NoError(err)
	return id
}

func (s *StoreSuite) TestConcreteScenario() {
	id, err := s.store.CreateSDKSession(s.ctx, "abc-1", "demo", "hello")
	s.Require().NoError(err)
	s.Equal(int64(1), id)

	again, err := s.store.CreateSDKSession(s.ctx, "abc-1", "demo", "hello")
	s.Require().NoError(err)
	s.Equal(int64(1), again)

	sessions, err := s.store.GetRecentSessions(s.ctx, "demo", 10)
	s.Require().NoError(err)
	s.Len(sessions, 1)

	obsID, epoch, err := s.store.StoreObservation(s.ctx, "mem-1", "demo", &models.ParsedObservation{
		Type:          models.ObsTypeBugfix,
		Facts:         []string{"nil map write", "guarded by init"},
		FilesModified: []string{"internal/cache.go"},
	}, 1, 0)
	s.Require().NoError(err)
	s.Equal(int64(1), obsID)
	s.Greater(epoch, int64(0))

	obs, err := s.store.GetObservationByID(s.ctx, obsID)
	s.Require().NoError(err)
	s.Require().NotNil(obs)
	s.Equal(models.ObsTypeBugfix, obs.Type)
	s.Equal([]string{"nil map write", "guarded by init"}, []string(obs.Facts))
	s.Equal([]string{"internal/cache.go"}, []string(obs.FilesModified))
	s.Equal(epoch, obs.CreatedAtEpoch)

	msgID, err := s.store.EnqueuePendingMessage(s.ctx, &models.PendingMessage{
		SessionDBID:      1,
		ContentSessionID: "abc-1",
		MessageType:      models.PendingTypeObservation,
	})
	s.Require().NoError(err)
	s.Equal(int64(1), msgID)

	pending, err := s.store.GetPendingMessages(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(models.PendingStatusPending, pending[0].Status)
	s.Equal(0, pending[0].RetryCount)

	claimed, err := s.store.ClaimNextPendingMessage(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().NotNil(claimed)
	s.Equal(msgID, claimed.ID)
	s.Equal(models.PendingStatusProcessing, claimed.Status)
	s.True(claimed.StartedProcessingAtEpoch.Valid)

	s.Require().NoError(s.store.CompletePendingMessage(s.ctx, msgID))

	none, err := s.store.ClaimNextPendingMessage(s.ctx, 1)
	s.Require().NoError(err)
	s.Nil(none)
}

func (s *StoreSuite) TestCreateSDKSession_TableDriven() {
	tests := []struct {
		name             string
		contentSessionID string
		project          string
		userPrompt       string
	}{
		{name: "basic", contentSessionID: "content-basic", project: "project-a", userPrompt: "hello world"},
		{name: "empty prompt", contentSessionID: "content-noprompt", project: "project-b"},
		{name: "empty project", contentSessionID: "content-noproject", userPrompt: "test"},
		{name: "unicode", contentSessionID: "content-unicode", project: "项目名称-プロジェクト", userPrompt: "测试 テスト"},
		{name: "quotes", contentSessionID: "content-quotes", project: "p", userPrompt: "fix \"quotes\" and 'apostrophes'"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			id, err := s.store.CreateSDKSession(s.ctx, tt.contentSessionID, tt.project, tt.userPrompt, at(0))
			s.Require().NoError(err)
			s.Greater(id, int64(0))

			sess, err := s.store.GetSessionByID(s.ctx, id)
			s.Require().NoError(err)
			s.Require().NotNil(sess)
			s.Equal(tt.contentSessionID, sess.ContentSessionID)
			s.Equal(tt.project, sess.Project)
			s.Equal(tt.userPrompt, sess.UserPrompt.String)
			s.Equal(models.SessionStatusActive, sess.Status)
			s.Equal(base.UnixMilli(), sess.StartedAtEpoch)
			s.Equal(models.EpochTimestamp(base.UnixMilli()), sess.StartedAt)
			s.False(sess.MemorySessionID.Valid)
			s.False(sess.CompletedAtEpoch.Valid)

			found, err := s.store.FindSDKSession(s.ctx, tt.contentSessionID)
			s.Require().NoError(err)
			s.Require().NotNil(found)
			s.Equal(id, found.ID)
		})
	}
}

func (s *StoreSuite) TestCreateSDKSession_Idempotent() {
	first, err := s.store.CreateSDKSession(s.ctx, "content-1", "demo", "first")
	s.Require().NoError(err)
	second, err := s.store.CreateSDKSession(s.ctx, "content-1", "other", "second")
	s.Require().NoError(err)
	s.Equal(first, second)

	sess, err := s.store.FindSDKSession(s.ctx, "content-1")
	s.Require().NoError(err)
	s.Equal("demo", sess.Project)
	s.Equal("first", sess.UserPrompt.String)

	projects, err := s.store.GetAllProjects(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"demo"}, projects)
}

func (s *StoreSuite) TestCreateSDKSession_Concurrent() {
	const callers = 8
	ids := make([]int64, callers)

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			id, err := s.store.CreateSDKSession(s.ctx, "content-race", "demo", "hello")
			ids[i] = id
			return err
		})
	}
	s.Require().NoError(g.Wait())

	for _, id := range ids {
		s.Equal(ids[0], id)
	}
	sessions, err := s.store.GetRecentSessions(s.ctx, "demo", 0)
	s.Require().NoError(err)
	s.Len(sessions, 1)
}

func (s *StoreSuite) TestCreateSDKSession_RequiresContentSessionID() {
	_, err := s.store.CreateSDKSession(s.ctx, "", "demo", "hello")
	s.ErrorIs(err, db.ErrInvalidArgument)
}

func (s *StoreSuite) TestGetSession_NotFound() {
	sess, err := s.store.GetSessionByID(s.ctx, 999)
	s.NoError(err)
	s.Nil(sess)

	sess, err = s.store.FindSDKSession(s.ctx, "missing")
	s.NoError(err)
	s.Nil(sess)
}

func (s *StoreSuite) TestUpdateMemorySessionID() {
	id, err := s.store.CreateSDKSession(s.ctx, "content-1", "demo", "")
	s.Require().NoError(err)
	other, err := s.store.CreateSDKSession(s.ctx, "content-2", "demo", "")
	s.Require().NoError(err)

	s.Require().NoError(s.store.UpdateMemorySessionID(s.ctx, id, "mem-1"))
	sess, err := s.store.GetSessionByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("mem-1", sess.MemorySessionID.String)

	// Re-attaching the same id to the same session is allowed.
	s.NoError(s.store.UpdateMemorySessionID(s.ctx, id, "mem-1"))

	err = s.store.UpdateMemorySessionID(s.ctx, other, "mem-1")
	s.ErrorIs(err, db.ErrConflict)

	// Unknown session: no-op.
	s.NoError(s.store.UpdateMemorySessionID(s.ctx, 999, "mem-9"))
}

func (s *StoreSuite) TestUpdateMemorySessionID_UnknownSessionIgnoresOwner() {
	id, err := s.store.CreateSDKSession(s.ctx, "content-1", "demo", "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpdateMemorySessionID(s.ctx, id, "mem-1"))

	// No row to update, so the id already owned elsewhere is not a conflict.
	s.NoError(s.store.UpdateMemorySessionID(s.ctx, 999, "mem-1"))

	sess, err := s.store.GetSessionByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("mem-1", sess.MemorySessionID.String)
}

func (s *StoreSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.store.CreateSDKSession(ctx, "content-1", "demo", "")
	s.ErrorIs(err, context.Canceled)
	_, _, err = s.store.StoreObservation(ctx, "mem-1", "demo", bugfix("x"), 0, 0)
	s.ErrorIs(err, context.Canceled)
	_, err = s.store.GetRecentObservations(ctx, "demo", 10)
	s.ErrorIs(err, context.Canceled)
	_, err = s.store.ClaimNextPendingMessage(ctx, 1)
	s.ErrorIs(err, context.Canceled)

	// Nothing was written.
	sess, err := s.store.FindSDKSession(s.ctx, "content-1")
	s.Require().NoError(err)
	s.Nil(sess)
	observations, err := s.store.GetRecentObservations(s.ctx, "demo", 10)
	s.Require().NoError(err)
	s.Empty(observations)
}

func (s *StoreSuite) TestCompleteSession() {
	id, err := s.store.CreateSDKSession(s.ctx, "content-1", "demo", "")
	s.Require().NoError(err)

	s.Require().NoError(s.store.CompleteSession(s.ctx, id, models.SessionStatusCompleted, at(time.Minute)))
	sess, err := s.store.GetSessionByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusCompleted, sess.Status)
	s.Equal(base.Add(time.Minute).UnixMilli(), sess.CompletedAtEpoch.Int64)
	s.True(sess.CompletedAt.Valid)

	err = s.store.CompleteSession(s.ctx, id, models.SessionStatusFailed)
	s.ErrorIs(err, db.ErrInvalidTransition)

	err = s.store.CompleteSession(s.ctx, 999, models.SessionStatusCompleted)
	s.ErrorIs(err, db.ErrInvalidTransition)

	other, err := s.store.CreateSDKSession(s.ctx, "content-2", "demo", "")
	s.Require().NoError(err)
	err = s.store.CompleteSession(s.ctx, other, models.SessionStatusActive)
	s.ErrorIs(err, db.ErrInvalidTransition)

	s.NoError(s.store.CompleteSession(s.ctx, other, models.SessionStatusFailed))
}

func (s *StoreSuite) TestGetRecentSessions() {
	for i, cid := range []string{"c-1", "c-2", "c-3"} {
		_, err := s.store.CreateSDKSession(s.ctx, cid, "demo", "", at(time.Duration(i)*time.Second))
		s.Require().NoError(err)
	}
	_, err := s.store.CreateSDKSession(s.ctx, "c-other", "other", "")
	s.Require().NoError(err)

	sessions, err := s.store.GetRecentSessions(s.ctx, "demo", 2)
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal("c-3", sessions[0].ContentSessionID)
	s.Equal("c-2", sessions[1].ContentSessionID)

	sessions, err = s.store.GetRecentSessions(s.ctx, "missing", 10)
	s.Require().NoError(err)
	s.Empty(sessions)
}

func (s *StoreSuite) TestGetAllProjects() {
	projects, err := s.store.GetAllProjects(s.ctx)
	s.Require().NoError(err)
	s.Empty(projects)

	for i, p := range []string{"zeta", "alpha", "", "alpha", "mid"} {
		_, err := s.store.CreateSDKSession(s.ctx, "content-"+string(rune('a'+i)), p, "")
		s.Require().NoError(err)
	}

	projects, err = s.store.GetAllProjects(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"alpha", "mid", "zeta"}, projects)
}

func (s *StoreSuite) TestObservation_RoundTrip() {
	parsed := &models.ParsedObservation{
		Type:          models.ObsTypeDecision,
		Title:         "Use WAL mode",
		Subtitle:      "Concurrency",
		Narrative:     "Readers no longer block the writer.",
		Facts:         []string{"b fact", "a fact", "c fact"},
		Concepts:      []string{"sqlite", "wal"},
		FilesRead:     []string{"store.go", "db.go"},
		FilesModified: []string{"store.go"},
	}
	id, epoch, err := s.store.StoreObservation(s.ctx, "mem-1", "demo", parsed, 3, 120, at(0))
	s.Require().NoError(err)
	s.Equal(base.UnixMilli(), epoch)

	obs, err := s.store.GetObservationByID(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(obs)
	s.Equal(id, obs.ID)
	s.Equal("mem-1", obs.MemorySessionID)
	s.Equal("demo", obs.Project)
	s.Equal(models.ObsTypeDecision, obs.Type)
	s.Equal("Use WAL mode", obs.Title.String)
	s.Equal("Concurrency", obs.Subtitle.String)
	s.Equal("Readers no longer block the writer.", obs.Narrative.String)
	s.Equal(parsed.Facts, []string(obs.Facts))
	s.Equal(parsed.Concepts, []string(obs.Concepts))
	s.Equal(parsed.FilesRead, []string(obs.FilesRead))
	s.Equal(parsed.FilesModified, []string(obs.FilesModified))
	s.Equal(int64(3), obs.PromptNumber.Int64)
	s.Equal(int64(120), obs.DiscoveryTokens)
	s.Equal(models.EpochTimestamp(base.UnixMilli()), obs.CreatedAt)
}

func (s *StoreSuite) TestObservation_OptionalFieldsEmpty() {
	id, _, err := s.store.StoreObservation(s.ctx, "mem-1", "demo", &models.ParsedObservation{Type: models.ObsTypeChange}, 0, 0)
	s.Require().NoError(err)

	obs, err := s.store.GetObservationByID(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(obs)
	s.False(obs.Title.Valid)
	s.False(obs.Narrative.Valid)
	s.False(obs.PromptNumber.Valid)
	s.Empty(obs.Facts)
	s.Empty(obs.FilesRead)
}

func (s *StoreSuite) TestObservation_InvalidType() {
	_, _, err := s.store.StoreObservation(s.ctx, "mem-1", "demo", &models.ParsedObservation{Type: "gossip"}, 0, 0)
	s.ErrorIs(err, db.ErrInvalidObservationType)

	_, _, err = s.store.StoreObservation(s.ctx, "mem-1", "demo", nil, 0, 0)
	s.ErrorIs(err, db.ErrInvalidObservationType)

	all, err := s.store.GetAllRecentObservations(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *StoreSuite) TestGetObservationByID_NotFound() {
	obs, err := s.store.GetObservationByID(s.ctx, 42)
	s.NoError(err)
	s.Nil(obs)
}

func (s *StoreSuite) TestGetObservationsByIDs() {
	inputs := []struct {
		project string
		typ     models.ObservationType
	}{
		{"demo", models.ObsTypeBugfix},
		{"demo", models.ObsTypeFeature},
		{"other", models.ObsTypeBugfix},
		{"demo", models.ObsTypeBugfix},
	}
	ids := make([]int64, len(inputs))
	for i, in := range inputs {
		id, _, err := s.store.StoreObservation(s.ctx, "mem-1", in.project,
			&models.ParsedObservation{Type: in.typ}, 0, 0, at(time.Duration(i)*time.Second))
		s.Require().NoError(err)
		ids[i] = id
	}
	withMissing := append([]int64{9999}, ids...)

	tests := []struct {
		name  string
		query db.ObservationQuery
		want  []int64
	}{
		{name: "default newest first", query: db.ObservationQuery{}, want: []int64{ids[3], ids[2], ids[1], ids[0]}},
		{name: "ascending", query: db.ObservationQuery{OrderBy: db.OrderDateAsc}, want: ids},
		{name: "project filter", query: db.ObservationQuery{Project: "demo"}, want: []int64{ids[3], ids[1], ids[0]}},
		{name: "type filter", query: db.ObservationQuery{Type: "bugfix", OrderBy: db.OrderDateAsc}, want: []int64{ids[0], ids[2], ids[3]}},
		{name: "project and type", query: db.ObservationQuery{Project: "demo", Type: "bugfix"}, want: []int64{ids[3], ids[0]}},
		{name: "limit", query: db.ObservationQuery{Limit: 2}, want: []int64{ids[3], ids[2]}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			got, err := s.store.GetObservationsByIDs(s.ctx, withMissing, tt.query)
			s.Require().NoError(err)
			gotIDs := make([]int64, 0, len(got))
			for _, obs := range got {
				gotIDs = append(gotIDs, obs.ID)
			}
			s.Equal(tt.want, gotIDs)
		})
	}

	empty, err := s.store.GetObservationsByIDs(s.ctx, nil, db.ObservationQuery{})
	s.NoError(err)
	s.Empty(empty)
}

func (s *StoreSuite) TestGetObservationsForSession_Order() {
	// Same epoch: ordering falls back to id.
	first, _, err := s.store.StoreObservation(s.ctx, "mem-1", "demo", bugfix("first"), 0, 0, at(time.Second))
	s.Require().NoError(err)
	second, _, err := s.store.StoreObservation(s.ctx, "mem-1", "demo", bugfix("second"), 0, 0, at(time.Second))
	s.Require().NoError(err)
	earliest, _, err := s.store.StoreObservation(s.ctx, "mem-1", "demo", bugfix("earliest"), 0, 0, at(0))
	s.Require().NoError(err)
	_, _, err = s.store.StoreObservation(s.ctx, "mem-2", "demo", bugfix("other"), 0, 0, at(0))
	s.Require().NoError(err)

	observations, err := s.store.GetObservationsForSession(s.ctx, "mem-1")
	s.Require().NoError(err)
	s.Require().Len(observations, 3)
	s.Equal(earliest, observations[0].ID)
	s.Equal(first, observations[1].ID)
	s.Equal(second, observations[2].ID)
}

func (s *StoreSuite) TestRecentObservations() {
	for i := 0; i < 60; i++ {
		project := "demo"
		if i%2 == 1 {
			project = "other"
		}
		_, _, err := s.store.StoreObservation(s.ctx, "mem-1", project, bugfix("obs"), 0, 0, at(time.Duration(i)*time.Second))
		s.Require().NoError(err)
	}

	recent, err := s.store.GetRecentObservations(s.ctx, "demo", 5)
	s.Require().NoError(err)
	s.Require().Len(recent, 5)
	for i := 1; i < len(recent); i++ {
		s.GreaterOrEqual(recent[i-1].CreatedAtEpoch, recent[i].CreatedAtEpoch)
	}
	for _, obs := range recent {
		s.Equal("demo", obs.Project)
	}

	all, err := s.store.GetAllRecentObservations(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(all, db.DefaultRecentLimit)
	s.Equal(base.Add(59*time.Second).UnixMilli(), all[0].CreatedAtEpoch)
}

func (s *StoreSuite) TestGetFilesForSession() {
	_, _, err := s.store.StoreObservation(s.ctx, "mem-1", "demo", &models.ParsedObservation{
		Type:          models.ObsTypeFeature,
		FilesRead:     []string{"a.go", "b.go"},
		FilesModified: []string{"b.go", "c.go"},
	}, 0, 0, at(0))
	s.Require().NoError(err)
	_, _, err = s.store.StoreObservation(s.ctx, "mem-1", "demo", &models.ParsedObservation{
		Type:          models.ObsTypeRefactor,
		FilesRead:     []string{"d.go"},
		FilesModified: []string{"a.go"},
	}, 0, 0, at(time.Second))
	s.Require().NoError(err)
	_, _, err = s.store.StoreObservation(s.ctx, "mem-2", "demo", &models.ParsedObservation{
		Type:      models.ObsTypeRefactor,
		FilesRead: []string{"z.go"},
	}, 0, 0)
	s.Require().NoError(err)

	files, err := s.store.GetFilesForSession(s.ctx, "mem-1")
	s.Require().NoError(err)
	s.Equal([]string{"a.go", "b.go", "c.go", "d.go"}, files)

	files, err = s.store.GetFilesForSession(s.ctx, "missing")
	s.Require().NoError(err)
	s.Empty(files)
}

func (s *StoreSuite) TestSummaries() {
	older, _, err := s.store.StoreSummary(s.ctx, "mem-1", "demo", &models.ParsedSummary{Request: "old"}, 1, 10, at(0))
	s.Require().NoError(err)
	newer, epoch, err := s.store.StoreSummary(s.ctx, "mem-1", "demo", &models.ParsedSummary{
		Request:      "Fix login",
		Investigated: "auth flow",
		Learned:      "token expiry",
		Completed:    "patched refresh",
		NextSteps:    "add tests",
		Notes:        "none",
		FilesRead:    []string{"auth.go"},
		FilesEdited:  []string{"auth.go", "token.go"},
	}, 2, 20, at(time.Minute))
	s.Require().NoError(err)
	s.NotEqual(older, newer)
	s.Equal(base.Add(time.Minute).UnixMilli(), epoch)
	_, _, err = s.store.StoreSummary(s.ctx, "mem-2", "other", &models.ParsedSummary{Request: "x"}, 1, 0, at(2*time.Minute))
	s.Require().NoError(err)

	latest, err := s.store.GetSummaryForSession(s.ctx, "mem-1")
	s.Require().NoError(err)
	s.Require().NotNil(latest)
	s.Equal(newer, latest.ID)
	s.Equal("Fix login", latest.Request.String)
	s.Equal("auth flow", latest.Investigated.String)
	s.Equal("token expiry", latest.Learned.String)
	s.Equal("patched refresh", latest.Completed.String)
	s.Equal("add tests", latest.NextSteps.String)
	s.Equal("none", latest.Notes.String)
	s.Equal([]string{"auth.go"}, []string(latest.FilesRead))
	s.Equal([]string{"auth.go", "token.go"}, []string(latest.FilesEdited))
	s.Equal(int64(2), latest.PromptNumber.Int64)
	s.Equal(int64(20), latest.DiscoveryTokens)

	missing, err := s.store.GetSummaryForSession(s.ctx, "missing")
	s.NoError(err)
	s.Nil(missing)

	recent, err := s.store.GetRecentSummaries(s.ctx, "demo", 10)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal(newer, recent[0].ID)
	s.Equal(older, recent[1].ID)

	all, err := s.store.GetAllRecentSummaries(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("other", all[0].Project)
}

func (s *StoreSuite) TestUserPrompts() {
	_, err := s.store.CreateSDKSession(s.ctx, "content-1", "demo", "first")
	s.Require().NoError(err)
	sessID, err := s.store.FindSDKSession(s.ctx, "content-1")
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpdateMemorySessionID(s.ctx, sessID.ID, "mem-1"))

	for n := 1; n <= 3; n++ {
		_, err := s.store.SaveUserPrompt(s.ctx, "content-1", n, "prompt text", at(time.Duration(n)*time.Second))
		s.Require().NoError(err)
	}
	_, err = s.store.SaveUserPrompt(s.ctx, "content-orphan", 1, "orphan", at(10*time.Second))
	s.Require().NoError(err)

	p, err := s.store.GetUserPrompt(s.ctx, "content-1", 2)
	s.Require().NoError(err)
	s.Require().NotNil(p)
	s.Equal(2, p.PromptNumber)
	s.Equal("prompt text", p.PromptText)
	s.Equal(base.Add(2*time.Second).UnixMilli(), p.CreatedAtEpoch)

	latest, err := s.store.GetLatestUserPrompt(s.ctx, "content-1")
	s.Require().NoError(err)
	s.Require().NotNil(latest)
	s.Equal(3, latest.PromptNumber)

	count, err := s.store.GetPromptCount(s.ctx, "content-1")
	s.Require().NoError(err)
	s.Equal(3, count)

	count, err = s.store.GetPromptCount(s.ctx, "missing")
	s.Require().NoError(err)
	s.Zero(count)

	missing, err := s.store.GetUserPrompt(s.ctx, "content-1", 9)
	s.NoError(err)
	s.Nil(missing)

	missing, err = s.store.GetLatestUserPrompt(s.ctx, "missing")
	s.NoError(err)
	s.Nil(missing)

	all, err := s.store.GetAllRecentUserPrompts(s.ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("content-orphan", all[0].ContentSessionID)
	s.Empty(all[0].Project)
	s.Empty(all[0].MemorySessionID)
	s.Equal(3, all[1].PromptNumber)
	s.Equal("demo", all[1].Project)
	s.Equal("mem-1", all[1].MemorySessionID)
}

func (s *StoreSuite) TestUserPrompts_Immutable() {
	_, err := s.store.SaveUserPrompt(s.ctx, "content-1", 1, "original")
	s.Require().NoError(err)

	_, err = s.store.SaveUserPrompt(s.ctx, "content-1", 1, "rewrite")
	s.ErrorIs(err, db.ErrConflict)

	p, err := s.store.GetUserPrompt(s.ctx, "content-1", 1)
	s.Require().NoError(err)
	s.Equal("original", p.PromptText)

	_, err = s.store.SaveUserPrompt(s.ctx, "content-1", 0, "zero")
	s.ErrorIs(err, db.ErrInvalidArgument)
}

func (s *StoreSuite) TestQueue_EnqueueFields() {
	id, err := s.store.EnqueuePendingMessage(s.ctx, &models.PendingMessage{
		SessionDBID:          7,
		ContentSessionID:     "content-7",
		MessageType:          models.PendingTypeSummarize,
		ToolName:             sqlString("Edit"),
		ToolInput:            sqlString(`{"file":"a.go"}`),
		ToolResponse:         sqlString("ok"),
		Cwd:                  sqlString("/work"),
		LastUserMessage:      sqlString("please fix"),
		LastAssistantMessage: sqlString("done"),
		PromptNumber:         sqlInt(4),
		Status:               models.PendingStatusFailed,
		RetryCount:           5,
	}, at(0))
	s.Require().NoError(err)

	pending, err := s.store.GetPendingMessages(s.ctx, 7)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	msg := pending[0]
	s.Equal(id, msg.ID)
	s.Equal(int64(7), msg.SessionDBID)
	s.Equal("content-7", msg.ContentSessionID)
	s.Equal(models.PendingTypeSummarize, msg.MessageType)
	s.Equal(models.PendingStatusPending, msg.Status)
	s.Equal(0, msg.RetryCount)
	s.Equal("Edit", msg.ToolName.String)
	s.Equal(`{"file":"a.go"}`, msg.ToolInput.String)
	s.Equal("ok", msg.ToolResponse.String)
	s.Equal("/work", msg.Cwd.String)
	s.Equal("please fix", msg.LastUserMessage.String)
	s.Equal("done", msg.LastAssistantMessage.String)
	s.Equal(int64(4), msg.PromptNumber.Int64)
	s.Equal(base.UnixMilli(), msg.CreatedAtEpoch)
	s.False(msg.StartedProcessingAtEpoch.Valid)

	_, err = s.store.EnqueuePendingMessage(s.ctx, &models.PendingMessage{SessionDBID: 7, ContentSessionID: "c", MessageType: "bogus"})
	s.ErrorIs(err, db.ErrInvalidArgument)
}

func (s *StoreSuite) TestQueue_EmptyPayloadKept() {
	_, err := s.store.EnqueuePendingMessage(s.ctx, &models.PendingMessage{
		SessionDBID:      3,
		ContentSessionID: "content-3",
		MessageType:      models.PendingTypeObservation,
		ToolName:         sql.NullString{String: "", Valid: true},
		Cwd:              sql.NullString{String: "", Valid: true},
		PromptNumber:     sql.NullInt64{Int64: 0, Valid: true},
	}, at(0))
	s.Require().NoError(err)

	claimed, err := s.store.ClaimNextPendingMessage(s.ctx, 3)
	s.Require().NoError(err)
	s.Require().NotNil(claimed)
	s.True(claimed.ToolName.Valid)
	s.Empty(claimed.ToolName.String)
	s.True(claimed.Cwd.Valid)
	s.True(claimed.PromptNumber.Valid)
	s.Equal(int64(0), claimed.PromptNumber.Int64)
	s.False(claimed.ToolInput.Valid)
	s.False(claimed.LastUserMessage.Valid)
}

func (s *StoreSuite) TestQueue_ClaimOrder() {
	third := s.enqueue(1, at(2*time.Second))
	first := s.enqueue(1, at(0))
	second := s.enqueue(1, at(time.Second))
	otherSession := s.enqueue(2, at(-time.Hour))

	for _, want := range []int64{first, second, third} {
		msg, err := s.store.ClaimNextPendingMessage(s.ctx, 1)
		s.Require().NoError(err)
		s.Require().NotNil(msg)
		s.Equal(want, msg.ID)
		s.Equal(models.PendingStatusProcessing, msg.Status)
	}

	none, err := s.store.ClaimNextPendingMessage(s.ctx, 1)
	s.Require().NoError(err)
	s.Nil(none)

	pending, err := s.store.GetPendingMessages(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(otherSession, pending[0].ID)
}

func (s *StoreSuite) TestQueue_PendingListExcludesClaimed() {
	a := s.enqueue(1, at(0))
	b := s.enqueue(1, at(time.Second))

	_, err := s.store.ClaimNextPendingMessage(s.ctx, 1)
	s.Require().NoError(err)

	pending, err := s.store.GetPendingMessages(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(b, pending[0].ID)
	s.NotEqual(a, pending[0].ID)
}

func (s *StoreSuite) TestQueue_Fail() {
	id := s.enqueue(1)
	claimed, err := s.store.ClaimNextPendingMessage(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().NotNil(claimed)

	s.Require().NoError(s.store.FailPendingMessage(s.ctx, id, at(time.Minute)))

	// Failed messages are retained but never claimed again automatically.
	none, err := s.store.ClaimNextPendingMessage(s.ctx, 1)
	s.Require().NoError(err)
	s.Nil(none)

	pending, err := s.store.GetPendingMessages(s.ctx, 1)
	s.Require().NoError(err)
	s.Empty(pending)

	// Missing ids are ignored.
	s.NoError(s.store.FailPendingMessage(s.ctx, 9999))
	s.NoError(s.store.CompletePendingMessage(s.ctx, 9999))
}

func (s *StoreSuite) TestQueue_FailIncrementsRetryCount() {
	id := s.enqueue(1)
	s.Require().NoError(s.store.FailPendingMessage(s.ctx, id))
	s.Require().NoError(s.store.FailPendingMessage(s.ctx, id))

	// Completing removes the failed row for good.
	s.Require().NoError(s.store.CompletePendingMessage(s.ctx, id))
	none, err := s.store.ClaimNextPendingMessage(s.ctx, 1)
	s.Require().NoError(err)
	s.Nil(none)
}

func (s *StoreSuite) TestQueue_ConcurrentClaims() {
	const messages = 20
	const workers = 6
	for i := 0; i < messages; i++ {
		s.enqueue(1, at(time.Duration(i)*time.Millisecond))
	}

	var mu sync.Mutex
	claimed := make(map[int64]int)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				msg, err := s.store.ClaimNextPendingMessage(s.ctx, 1)
				if err != nil {
					return err
				}
				if msg == nil {
					return nil
				}
				mu.Lock()
				claimed[msg.ID]++
				mu.Unlock()
			}
		})
	}
	s.Require().NoError(g.Wait())

	s.Len(claimed, messages)
	for id, n := range claimed {
		s.Equal(1, n, "message %d claimed %d times", id, n)
	}
}

func (s *StoreSuite) TestBatch() {
	result, err := s.store.StoreObservationsAndSummary(s.ctx, "mem-1", "demo",
		[]*models.ParsedObservation{bugfix("one"), bugfix("two"), bugfix("three")},
		&models.ParsedSummary{Request: "batch"}, 4, 99, at(0))
	s.Require().NoError(err)
	s.Require().Len(result.ObservationIDs, 3)
	s.NotZero(result.SummaryID)
	s.Equal(base.UnixMilli(), result.CreatedAtEpoch)

	observations, err := s.store.GetObservationsForSession(s.ctx, "mem-1")
	s.Require().NoError(err)
	s.Require().Len(observations, 3)
	for i, obs := range observations {
		s.Equal(result.ObservationIDs[i], obs.ID)
		s.Equal(result.CreatedAtEpoch, obs.CreatedAtEpoch)
		s.Equal(int64(4), obs.PromptNumber.Int64)
	}
	s.Equal("one", observations[0].Title.String)
	s.Equal("three", observations[2].Title.String)

	summary, err := s.store.GetSummaryForSession(s.ctx, "mem-1")
	s.Require().NoError(err)
	s.Require().NotNil(summary)
	s.Equal(result.SummaryID, summary.ID)
	s.Equal(result.CreatedAtEpoch, summary.CreatedAtEpoch)
}

func (s *StoreSuite) TestBatch_WithoutSummary() {
	result, err := s.store.StoreObservationsAndSummary(s.ctx, "mem-1", "demo",
		[]*models.ParsedObservation{bugfix("only")}, nil, 1, 0)
	s.Require().NoError(err)
	s.Len(result.ObservationIDs, 1)
	s.Zero(result.SummaryID)

	summary, err := s.store.GetSummaryForSession(s.ctx, "mem-1")
	s.NoError(err)
	s.Nil(summary)
}

func (s *StoreSuite) TestBatch_AtomicOnFailure() {
	_, err := s.store.StoreObservationsAndSummary(s.ctx, "mem-1", "demo",
		[]*models.ParsedObservation{
			bugfix("stored first"),
			bugfix("stored second"),
			{Type: "not-a-type"},
			bugfix("never reached"),
		},
		&models.ParsedSummary{Request: "should roll back"}, 1, 0)
	s.Require().Error(err)
	s.ErrorIs(err, db.ErrInvalidObservationType)

	observations, err := s.store.GetObservationsForSession(s.ctx, "mem-1")
	s.Require().NoError(err)
	s.Empty(observations)

	summary, err := s.store.GetSummaryForSession(s.ctx, "mem-1")
	s.Require().NoError(err)
	s.Nil(summary)

	// The store stays usable after the rollback.
	result, err := s.store.StoreObservationsAndSummary(s.ctx, "mem-1", "demo",
		[]*models.ParsedObservation{bugfix("after")}, nil, 1, 0)
	s.Require().NoError(err)
	s.Len(result.ObservationIDs, 1)

	observations, err = s.store.GetObservationsForSession(s.ctx, "mem-1")
	s.Require().NoError(err)
	s.Len(observations, 1)
}

func (s *StoreSuite) TestLifecycle() {
	s.NotEmpty(s.store.Name())

	// A second Initialize is a no-op.
	s.Require().NoError(s.store.Initialize(s.ctx))

	id, err := s.store.CreateSDKSession(s.ctx, "content-1", "demo", "")
	s.Require().NoError(err)

	s.Require().NoError(s.store.Close())
	s.Require().NoError(s.store.Close())

	_, err = s.store.CreateSDKSession(s.ctx, "content-2", "demo", "")
	s.ErrorIs(err, db.ErrNotInitialized)
	_, err = s.store.GetSessionByID(s.ctx, id)
	s.ErrorIs(err, db.ErrNotInitialized)
	_, err = s.store.ClaimNextPendingMessage(s.ctx, 1)
	s.ErrorIs(err, db.ErrNotInitialized)
	_, err = s.store.StoreObservationsAndSummary(s.ctx, "mem-1", "demo", nil, nil, 0, 0)
	s.ErrorIs(err, db.ErrNotInitialized)

	// Data survives a close / initialize cycle.
	s.Require().NoError(s.store.Initialize(s.ctx))
	sess, err := s.store.GetSessionByID(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(sess)
	s.Equal("content-1", sess.ContentSessionID)
}

func (s *StoreSuite) TestNotInitialized() {
	fresh := s.NewStore(s.T())

	_, err := fresh.GetAllProjects(s.ctx)
	s.ErrorIs(err, db.ErrNotInitialized)
	_, _, err = fresh.StoreObservation(s.ctx, "mem-1", "demo", bugfix("x"), 0, 0)
	s.ErrorIs(err, db.ErrNotInitialized)
	_, err = fresh.SaveUserPrompt(s.ctx, "content-1", 1, "x")
	s.ErrorIs(err, db.ErrNotInitialized)
	s.ErrorIs(fresh.CompletePendingMessage(s.ctx, 1), db.ErrNotInitialized)

	s.NoError(fresh.Close())
}
