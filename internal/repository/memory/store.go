// Package memory implements the repository interfaces in process memory. It
// backs local runs without POSTGRES_DSN and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
)

type txKey struct{}

// DB holds all entities. Transactions are serialised; a failed transaction
// restores the snapshot taken when it began.
type DB struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	incidents map[string]*domain.Incident
	logs      []domain.LogEntry
	nextLogID int64
	equipment map[string]*domain.Equipment
	locations map[string]*domain.Location
	users     map[string]*domain.User
}

// New returns an empty database.
func New() *DB {
	return &DB{
		incidents: map[string]*domain.Incident{},
		equipment: map[string]*domain.Equipment{},
		locations: map[string]*domain.Location{},
		users:     map[string]*domain.User{},
	}
}

// Store exposes db through the repository interfaces.
func (db *DB) Store() *repository.Store {
	return &repository.Store{
		Tx:        db,
		Incidents: &incidents{db: db},
		Logs:      &logs{db: db},
		Equipment: &equipment{db: db},
		Locations: &locations{db: db},
		Users:     &users{db: db},
	}
}

type snapshot struct {
	incidents map[string]*domain.Incident
	logs      []domain.LogEntry
	nextLogID int64
	equipment map[string]*domain.Equipment
	locations map[string]*domain.Location
	users     map[string]*domain.User
}

func (db *DB) snapshot() snapshot {
	db.mu.RLock()
	defer db.mu.RUnlock()
	s := snapshot{
		incidents: make(map[string]*domain.Incident, len(db.incidents)),
		logs:      append([]domain.LogEntry(nil), db.logs...),
		nextLogID: db.nextLogID,
		equipment: make(map[string]*domain.Equipment, len(db.equipment)),
		locations: make(map[string]*domain.Location, len(db.locations)),
		users:     make(map[string]*domain.User, len(db.users)),
	}
	for k, v := range db.incidents {
		s.incidents[k] = v.Clone()
	}
	for k, v := range db.equipment {
		cp := *v
		s.equipment[k] = &cp
	}
	for k, v := range db.locations {
		cp := *v
		s.locations[k] = &cp
	}
	for k, v := range db.users {
		cp := *v
		s.users[k] = &cp
	}
	return s
}

func (db *DB) restore(s snapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.incidents = s.incidents
	db.logs = s.logs
	db.nextLogID = s.nextLogID
	db.equipment = s.equipment
	db.locations = s.locations
	db.users = s.users
}

// WithinTx implements repository.Transactor.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	before := db.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		db.restore(before)
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// write runs fn under the data lock, taking the transaction lock as well
// when the caller is not already inside a transaction.
func (db *DB) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn()
}

type incidents struct{ db *DB }

func (r *incidents) Create(ctx context.Context, incident *domain.Incident) error {
	return r.db.write(ctx, func() error {
		if _, exists := r.db.incidents[incident.ID]; exists {
			return repository.ErrConflict
		}
		r.db.incidents[incident.ID] = incident.Clone()
		return nil
	})
}

func (r *incidents) Update(ctx context.Context, incident *domain.Incident, expectedVersion int) error {
	return r.db.write(ctx, func() error {
		stored, ok := r.db.incidents[incident.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if stored.Version != expectedVersion {
			return repository.ErrConflict
		}
		next := incident.Clone()
		next.Version = expectedVersion + 1
		next.Key = stored.Key
		next.ReporterID = stored.ReporterID
		next.CreatedAt = stored.CreatedAt
		r.db.incidents[incident.ID] = next
		incident.Version = next.Version
		return nil
	})
}

func (r *incidents) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	incident, ok := r.db.incidents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return incident.Clone(), nil
}

func (r *incidents) List(_ context.Context, filter repository.IncidentFilter) ([]domain.Incident, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var matched []domain.Incident
	for _, incident := range r.db.incidents {
		if r.matches(incident, filter) {
			matched = append(matched, *incident.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	limit, offset := repository.NormalizePage(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return []domain.Incident{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *incidents) matches(incident *domain.Incident, filter repository.IncidentFilter) bool {
	if !incident.Active {
		return false
	}
	if len(filter.States) > 0 && !containsState(filter.States, incident.State) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, incident.Priority) {
		return false
	}
	if filter.EquipmentID != nil && incident.EquipmentID != *filter.EquipmentID {
		return false
	}
	if filter.LocationID != nil {
		eq, ok := r.db.equipment[incident.EquipmentID]
		if !ok || eq.LocationID != *filter.LocationID {
			return false
		}
	}
	if filter.ReporterID != nil && incident.ReporterID != *filter.ReporterID {
		return false
	}
	if filter.Private != nil && incident.Private != *filter.Private {
		return false
	}
	if filter.VisibleTo != nil && incident.Private && incident.ReporterID != *filter.VisibleTo {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(incident.Title), term) &&
			!strings.Contains(strings.ToLower(incident.Description), term) {
			return false
		}
	}
	return true
}

func (r *incidents) CountActiveByEquipment(_ context.Context, equipmentID string) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	count := 0
	for _, incident := range r.db.incidents {
		if incident.Active && incident.EquipmentID == equipmentID {
			count++
		}
	}
	return count, nil
}

func (r *incidents) Backlog(_ context.Context) ([]repository.BacklogRow, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	type key struct {
		state    domain.IncidentState
		priority domain.IncidentPriority
	}
	counts := map[key]int{}
	for _, incident := range r.db.incidents {
		if !incident.Active || incident.State == domain.IncidentStateClosed {
			continue
		}
		counts[key{incident.State, incident.Priority}]++
	}
	rows := make([]repository.BacklogRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, repository.BacklogRow{State: k.state, Priority: k.priority, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].State != rows[j].State {
			return rows[i].State < rows[j].State
		}
		return rows[i].Priority < rows[j].Priority
	})
	return rows, nil
}

func containsState(states []domain.IncidentState, s domain.IncidentState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsPriority(priorities []domain.IncidentPriority, p domain.IncidentPriority) bool {
	for _, candidate := range priorities {
		if candidate == p {
			return true
		}
	}
	return false
}

type logs struct{ db *DB }

func (r *logs) Append(ctx context.Context, entry *domain.LogEntry) error {
	return r.db.write(ctx, func() error {
		r.db.nextLogID++
		entry.ID = r.db.nextLogID
		stored := *entry
		if entry.Note != nil {
			note := *entry.Note
			stored.Note = &note
		}
		r.db.logs = append(r.db.logs, stored)
		return nil
	})
}

func (r *logs) List(_ context.Context, filter repository.LogFilter) ([]domain.LogEntry, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	result := []domain.LogEntry{}
	for _, entry := range r.db.logs {
		if filter.IncidentID != nil && entry.IncidentID != *filter.IncidentID {
			continue
		}
		if filter.ActorID != nil && entry.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != nil && entry.Action != *filter.Action {
			continue
		}
		cp := entry
		if entry.Note != nil {
			note := *entry.Note
			cp.Note = &note
		}
		result = append(result, cp)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if filter.Limit > 0 {
		limit, offset := repository.NormalizePage(filter.Limit, filter.Offset)
		if offset >= len(result) {
			return []domain.LogEntry{}, nil
		}
		end := offset + limit
		if end > len(result) {
			end = len(result)
		}
		result = result[offset:end]
	}
	return result, nil
}
