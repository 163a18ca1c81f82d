package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/incident-service/internal/domain"
)

var (
	// ErrNotFound is returned when no row matches the identifier.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a versioned write lost a race.
	ErrConflict = errors.New("version conflict")
)

// Transactor runs fn as one unit of work. Repositories called with the ctx
// passed to fn take part in the same transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// IncidentFilter captures incident search parameters. Only active incidents
// are ever listed.
type IncidentFilter struct {
	States      []domain.IncidentState
	Priorities  []domain.IncidentPriority
	EquipmentID *string
	LocationID  *string
	ReporterID  *string
	Private     *bool
	SearchTerm  *string
	// VisibleTo hides other reporters' private incidents when set.
	VisibleTo *string
	Limit     int
	Offset    int
}

// BacklogRow counts open incidents per state and priority.
type BacklogRow struct {
	State    domain.IncidentState
	Priority domain.IncidentPriority
	Count    int
}

// IncidentRepository encapsulates incident persistence.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	// Update writes incident only if the stored version equals expectedVersion.
	// On success incident.Version is advanced.
	Update(ctx context.Context, incident *domain.Incident, expectedVersion int) error
	GetByID(ctx context.Context, id string) (*domain.Incident, error)
	List(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error)
	CountActiveByEquipment(ctx context.Context, equipmentID string) (int, error)
	Backlog(ctx context.Context) ([]BacklogRow, error)
}

// LogFilter narrows audit log queries.
type LogFilter struct {
	IncidentID *string
	ActorID    *string
	Action     *domain.LogAction
	Limit      int
	Offset     int
}

// LogRepository stores audit entries. There is deliberately no way to
// modify or remove an entry.
type LogRepository interface {
	Append(ctx context.Context, entry *domain.LogEntry) error
	List(ctx context.Context, filter LogFilter) ([]domain.LogEntry, error)
}

// LockMode selects the row lock EquipmentRepository.Lock takes.
type LockMode int

const (
	// LockShare blocks deletes while a referencing incident is written.
	LockShare LockMode = iota
	// LockExclusive waits for in-flight referencing writes before a delete.
	LockExclusive
)

// EquipmentRepository manages equipment persistence.
type EquipmentRepository interface {
	Create(ctx context.Context, equipment *domain.Equipment) error
	Update(ctx context.Context, equipment *domain.Equipment) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Equipment, error)
	// Lock reads the row and holds mode until the surrounding transaction
	// ends. Outside WithinTx it behaves like GetByID.
	Lock(ctx context.Context, id string, mode LockMode) (*domain.Equipment, error)
	List(ctx context.Context, locationID *string) ([]domain.Equipment, error)
	CountByLocation(ctx context.Context, locationID string) (int, error)
}

// LocationRepository manages location persistence.
type LocationRepository interface {
	Create(ctx context.Context, location *domain.Location) error
	Update(ctx context.Context, location *domain.Location) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Location, error)
	List(ctx context.Context) ([]domain.Location, error)
}

// UserRepository defines persistence access for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
}

// Store groups every repository behind one transactor.
type Store struct {
	Tx        Transactor
	Incidents IncidentRepository
	Logs      LogRepository
	Equipment EquipmentRepository
	Locations LocationRepository
	Users     UserRepository
}

// NormalizePage applies the default page size and clamps negative offsets.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
