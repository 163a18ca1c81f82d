package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/policy"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/repository/memory"
)

var (
	adminActor = domain.Actor{ID: "a0000000-0000-0000-0000-000000000001", Role: domain.RoleAdmin}
	techActor  = domain.Actor{ID: "a0000000-0000-0000-0000-000000000002", Role: domain.RoleTechnician}
	aliceActor = domain.Actor{ID: "a0000000-0000-0000-0000-000000000003", Role: domain.RoleUser}
	bobActor   = domain.Actor{ID: "a0000000-0000-0000-0000-000000000004", Role: domain.RoleUser}
)

const (
	locationID   = "b0000000-0000-0000-0000-000000000001"
	printerID    = "c0000000-0000-0000-0000-000000000001"
	laptopID     = "c0000000-0000-0000-0000-000000000002"
	otherRoomID  = "b0000000-0000-0000-0000-000000000002"
	projectorID  = "c0000000-0000-0000-0000-000000000003"
	unknownID    = "ffffffff-ffff-ffff-ffff-ffffffffffff"
	testPassword = "correct horse battery"
)

type testEnv struct {
	db       *memory.DB
	store    *repository.Store
	policy   *policy.Policy
	clock    func() time.Time
	recorded *eventRecorder
}

// newTestEnv seeds one user per role plus two locations and three pieces
// of equipment.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := memory.New()
	store := db.Store()
	p, err := policy.New()
	require.NoError(t, err)

	ctx := context.Background()
	for _, actor := range []domain.Actor{adminActor, techActor, aliceActor, bobActor} {
		require.NoError(t, store.Users.Create(ctx, &domain.User{
			ID:     actor.ID,
			Name:   string(actor.Role),
			Email:  actor.ID + "@example.com",
			Role:   actor.Role,
			Active: true,
		}))
	}
	require.NoError(t, store.Locations.Create(ctx, &domain.Location{ID: locationID, Name: "Lab", Building: "A", Floor: "1", Room: "101"}))
	require.NoError(t, store.Locations.Create(ctx, &domain.Location{ID: otherRoomID, Name: "Hall", Building: "B", Floor: "0", Room: "1"}))
	require.NoError(t, store.Equipment.Create(ctx, &domain.Equipment{ID: printerID, LocationID: locationID, Model: "Printer"}))
	require.NoError(t, store.Equipment.Create(ctx, &domain.Equipment{ID: laptopID, LocationID: locationID, Model: "Laptop"}))
	require.NoError(t, store.Equipment.Create(ctx, &domain.Equipment{ID: projectorID, LocationID: otherRoomID, Model: "Projector"}))

	var tick int64
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		n := atomic.AddInt64(&tick, 1)
		return base.Add(time.Duration(n) * time.Second)
	}
	return &testEnv{db: db, store: store, policy: p, clock: clock, recorded: &eventRecorder{}}
}

func (e *testEnv) incidentService() *IncidentService {
	dispatcher := events.NewInMemoryDispatcher(nil)
	e.recorded.subscribe(dispatcher)
	return NewIncidentService(IncidentDependencies{
		Store:      e.store,
		Policy:     e.policy,
		Dispatcher: dispatcher,
		Clock:      e.clock,
	})
}

// mustCreate reports an incident as actor against the printer.
func mustCreate(t *testing.T, svc *IncidentService, actor domain.Actor, private bool) *domain.Incident {
	t.Helper()
	incident, err := svc.CreateIncident(context.Background(), actor, CreateIncidentInput{
		EquipmentID: printerID,
		Title:       "Paper jam",
		Description: "Tray 2 jams on every job",
		Private:     private,
	})
	require.NoError(t, err)
	return incident
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) subscribe(d events.Dispatcher) {
	for _, typ := range []events.EventType{
		events.EventIncidentCreated,
		events.EventIncidentStateChanged,
		events.EventIncidentEdited,
		events.EventIncidentReassigned,
		events.EventIncidentDeleted,
		events.EventIncidentNoteAdded,
	} {
		d.Subscribe(typ, func(_ context.Context, event events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, event)
			return nil
		})
	}
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// hookedIncidents runs hook once, right after the first armed GetByID.
type hookedIncidents struct {
	repository.IncidentRepository
	armed atomic.Bool
	hook  func()
}

func (h *hookedIncidents) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	incident, err := h.IncidentRepository.GetByID(ctx, id)
	if h.armed.CompareAndSwap(true, false) && h.hook != nil {
		h.hook()
	}
	return incident, err
}

var errDiskFull = errors.New("disk full")

type failingLogs struct {
	repository.LogRepository
	fail atomic.Bool
}

func (f *failingLogs) Append(ctx context.Context, entry *domain.LogEntry) error {
	if f.fail.Load() {
		return errDiskFull
	}
	return f.LogRepository.Append(ctx, entry)
}

type stubLocker struct {
	err      error
	acquired int
	released int
}

func (l *stubLocker) Acquire(_ context.Context, _ string) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

// hookedEquipment runs hook once, right after the first armed Lock.
type hookedEquipment struct {
	repository.EquipmentRepository
	armed atomic.Bool
	hook  func()
}

func (h *hookedEquipment) Lock(ctx context.Context, id string, mode repository.LockMode) (*domain.Equipment, error) {
	eq, err := h.EquipmentRepository.Lock(ctx, id, mode)
	if h.armed.CompareAndSwap(true, false) && h.hook != nil {
		h.hook()
	}
	return eq, err
}
