package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
)

func seedIncident(t *testing.T, store *repository.Store, id string) *domain.Incident {
	t.Helper()
	incident := &domain.Incident{
		ID:          id,
		Key:         "INC-" + id,
		EquipmentID: "eq-1",
		ReporterID:  "user-1",
		Title:       "Printer jam",
		Description: "Tray 2 jams on every job",
		State:       domain.IncidentStatePending,
		Priority:    domain.IncidentPriorityMedium,
		Active:      true,
		Version:     1,
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Incidents.Create(context.Background(), incident))
	return incident
}

func TestIncidentUpdate_VersionCheck(t *testing.T) {
	ctx := context.Background()
	store := New().Store()
	incident := seedIncident(t, store, "a")

	first := incident.Clone()
	first.State = domain.IncidentStateInProgress
	require.NoError(t, store.Incidents.Update(ctx, first, 1))
	assert.Equal(t, 2, first.Version)

	stale := incident.Clone()
	stale.State = domain.IncidentStateClosed
	err := store.Incidents.Update(ctx, stale, 1)
	assert.ErrorIs(t, err, repository.ErrConflict)

	missing := incident.Clone()
	missing.ID = "nope"
	assert.ErrorIs(t, store.Incidents.Update(ctx, missing, 1), repository.ErrNotFound)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := New()
	store := db.Store()
	incident := seedIncident(t, store, "a")

	boom := errors.New("log write failed")
	err := store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		next := incident.Clone()
		next.State = domain.IncidentStateInProgress
		if err := store.Incidents.Update(ctx, next, 1); err != nil {
			return err
		}
		if err := store.Logs.Append(ctx, &domain.LogEntry{IncidentID: "a", ActorID: "u", Action: domain.LogActionStateChanged}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Incidents.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatePending, got.State)
	assert.Equal(t, 1, got.Version)

	entries, err := store.Logs.List(ctx, repository.LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogs_OrderedAndFiltered(t *testing.T) {
	ctx := context.Background()
	store := New().Store()

	for _, e := range []domain.LogEntry{
		{IncidentID: "a", ActorID: "u1", Action: domain.LogActionCreated},
		{IncidentID: "b", ActorID: "u2", Action: domain.LogActionCreated},
		{IncidentID: "a", ActorID: "u2", Action: domain.LogActionStateChanged},
	} {
		entry := e
		require.NoError(t, store.Logs.Append(ctx, &entry))
	}

	incidentID := "a"
	got, err := store.Logs.List(ctx, repository.LogFilter{IncidentID: &incidentID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Less(t, got[0].ID, got[1].ID)

	action := domain.LogActionCreated
	got, err = store.Logs.List(ctx, repository.LogFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	actor := "u2"
	got, err = store.Logs.List(ctx, repository.LogFilter{ActorID: &actor, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].IncidentID)
}

func TestIncidentList_VisibilityAndLocation(t *testing.T) {
	ctx := context.Background()
	store := New().Store()
	require.NoError(t, store.Equipment.Create(ctx, &domain.Equipment{ID: "eq-1", LocationID: "loc-1"}))

	seedIncident(t, store, "public")
	require.NoError(t, store.Incidents.Create(ctx, &domain.Incident{
		ID:          "private",
		EquipmentID: "eq-1",
		ReporterID:  "user-2",
		State:       domain.IncidentStatePending,
		Priority:    domain.IncidentPriorityLow,
		Active:      true,
		Private:     true,
		Version:     1,
	}))

	viewer := "user-1"
	got, err := store.Incidents.List(ctx, repository.IncidentFilter{VisibleTo: &viewer})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "public", got[0].ID)

	loc := "loc-1"
	got, err = store.Incidents.List(ctx, repository.IncidentFilter{LocationID: &loc})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	other := "loc-2"
	got, err = store.Incidents.List(ctx, repository.IncidentFilter{LocationID: &other})
	require.NoError(t, err)
	assert.Empty(t, got)
}
