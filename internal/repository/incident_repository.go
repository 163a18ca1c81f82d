package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

const incidentColumns = `id, incident_key, equipment_id, reporter_id, title, description, state, priority,
               resolution, active, private, version, created_at, updated_at, closed_at`

type incidentRepository struct {
	pool *pgxpool.Pool
}

// NewIncidentRepository instantiates repository.
func NewIncidentRepository(pool *pgxpool.Pool) IncidentRepository {
	return &incidentRepository{pool: pool}
}

func (r *incidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	const query = `
        INSERT INTO incidents (id, incident_key, equipment_id, reporter_id, title, description, state, priority,
            resolution, active, private, version, created_at, updated_at, closed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		incident.ID,
		incident.Key,
		incident.EquipmentID,
		incident.ReporterID,
		incident.Title,
		incident.Description,
		incident.State,
		incident.Priority,
		incident.Resolution,
		incident.Active,
		incident.Private,
		incident.Version,
		incident.CreatedAt,
		incident.UpdatedAt,
		incident.ClosedAt,
	)
	return err
}

func (r *incidentRepository) Update(ctx context.Context, incident *domain.Incident, expectedVersion int) error {
	const query = `
        UPDATE incidents SET equipment_id=$1, title=$2, description=$3, state=$4, priority=$5,
            resolution=$6, active=$7, private=$8, closed_at=$9, updated_at=$10, version=version+1
        WHERE id=$11 AND version=$12`
	q := conn(ctx, r.pool)
	cmd, err := q.Exec(ctx, query,
		incident.EquipmentID,
		incident.Title,
		incident.Description,
		incident.State,
		incident.Priority,
		incident.Resolution,
		incident.Active,
		incident.Private,
		incident.ClosedAt,
		incident.UpdatedAt,
		incident.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM incidents WHERE id=$1)`, incident.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	incident.Version = expectedVersion + 1
	return nil
}

func (r *incidentRepository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id=$1`
	rows, err := conn(ctx, r.pool).Query(ctx, query, id)
	if err != nil {
		return nil, notFound(err)
	}
	defer rows.Close()
	incidents, err := scanIncidents(rows)
	if err != nil {
		return nil, notFound(err)
	}
	if len(incidents) == 0 {
		return nil, ErrNotFound
	}
	return &incidents[0], nil
}

func (r *incidentRepository) List(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	clauses := []string{"active = TRUE"}
	args := []any{}

	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, state := range filter.States {
			args = append(args, state)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("state IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.EquipmentID != nil {
		args = append(args, *filter.EquipmentID)
		clauses = append(clauses, fmt.Sprintf("equipment_id=$%d", len(args)))
	}
	if filter.LocationID != nil {
		args = append(args, *filter.LocationID)
		clauses = append(clauses, fmt.Sprintf("equipment_id IN (SELECT id FROM equipment WHERE location_id=$%d)", len(args)))
	}
	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.Private != nil {
		args = append(args, *filter.Private)
		clauses = append(clauses, fmt.Sprintf("private=$%d", len(args)))
	}
	if filter.VisibleTo != nil {
		args = append(args, *filter.VisibleTo)
		clauses = append(clauses, fmt.Sprintf("(private = FALSE OR reporter_id=$%d)", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		incidentColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (r *incidentRepository) CountActiveByEquipment(ctx context.Context, equipmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM incidents WHERE equipment_id=$1 AND active = TRUE`
	var count int
	if err := conn(ctx, r.pool).QueryRow(ctx, query, equipmentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *incidentRepository) Backlog(ctx context.Context) ([]BacklogRow, error) {
	const query = `
        SELECT state, priority, COUNT(*) FROM incidents
        WHERE active = TRUE AND state <> 'closed'
        GROUP BY state, priority ORDER BY state, priority`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BacklogRow
	for rows.Next() {
		var row BacklogRow
		if err := rows.Scan(&row.State, &row.Priority, &row.Count); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func scanIncidents(rows pgx.Rows) ([]domain.Incident, error) {
	var result []domain.Incident
	for rows.Next() {
		var incident domain.Incident
		if err := rows.Scan(
			&incident.ID,
			&incident.Key,
			&incident.EquipmentID,
			&incident.ReporterID,
			&incident.Title,
			&incident.Description,
			&incident.State,
			&incident.Priority,
			&incident.Resolution,
			&incident.Active,
			&incident.Private,
			&incident.Version,
			&incident.CreatedAt,
			&incident.UpdatedAt,
			&incident.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, incident)
	}
	return result, rows.Err()
}
