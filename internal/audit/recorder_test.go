package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/repository/memory"
)

type failingLogs struct {
	repository.LogRepository
	err error
}

func (f failingLogs) Append(context.Context, *domain.LogEntry) error { return f.err }

func TestAppend_PriorEntriesUnchanged(t *testing.T) {
	ctx := context.Background()
	store := memory.New().Store()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := NewRecorder(store.Logs, nil).WithClock(func() time.Time { return fixed })

	first, err := rec.Append(ctx, "inc-1", "user-1", domain.LogActionCreated, "")
	require.NoError(t, err)
	assert.Nil(t, first.Note)
	assert.Equal(t, fixed, first.CreatedAt)

	before, err := rec.ForIncident(ctx, "inc-1")
	require.NoError(t, err)

	second, err := rec.Append(ctx, "inc-1", "tech-1", domain.LogActionStateChanged, " pending->in_progress ")
	require.NoError(t, err)
	require.NotNil(t, second.Note)
	assert.Equal(t, "pending->in_progress", *second.Note)
	assert.Greater(t, second.ID, first.ID)

	after, err := rec.ForIncident(ctx, "inc-1")
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, before[0], after[0])
}

func TestAppend_RejectsIncompleteEntry(t *testing.T) {
	rec := NewRecorder(memory.New().Store().Logs, nil)
	_, err := rec.Append(context.Background(), "", "user-1", domain.LogActionCreated, "")
	assert.Error(t, err)
}

func TestAppend_PropagatesStorageFailure(t *testing.T) {
	cause := errors.New("disk full")
	rec := NewRecorder(failingLogs{err: cause}, nil)
	_, err := rec.Append(context.Background(), "inc-1", "user-1", domain.LogActionCreated, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}

func TestQuery_FiltersByActorAndAction(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(memory.New().Store().Logs, nil)
	_, _ = rec.Append(ctx, "inc-1", "user-1", domain.LogActionCreated, "")
	_, _ = rec.Append(ctx, "inc-1", "tech-1", domain.LogActionStateChanged, "pending->in_progress")
	_, _ = rec.Append(ctx, "inc-2", "tech-1", domain.LogActionCreated, "")

	actor := "tech-1"
	entries, err := rec.Query(ctx, repository.LogFilter{ActorID: &actor})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	action := domain.LogActionStateChanged
	entries, err = rec.Query(ctx, repository.LogFilter{ActorID: &actor, Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "inc-1", entries[0].IncidentID)
}
