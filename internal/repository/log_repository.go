package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

type logRepository struct {
	pool *pgxpool.Pool
}

// NewLogRepository builds repository.
func NewLogRepository(pool *pgxpool.Pool) LogRepository {
	return &logRepository{pool: pool}
}

func (r *logRepository) Append(ctx context.Context, entry *domain.LogEntry) error {
	const query = `
        INSERT INTO incident_logs (incident_id, actor_id, action, note, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		entry.IncidentID,
		entry.ActorID,
		entry.Action,
		entry.Note,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (r *logRepository) List(ctx context.Context, filter LogFilter) ([]domain.LogEntry, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.IncidentID != nil {
		args = append(args, *filter.IncidentID)
		clauses = append(clauses, fmt.Sprintf("incident_id=$%d", len(args)))
	}
	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		clauses = append(clauses, fmt.Sprintf("actor_id=$%d", len(args)))
	}
	if filter.Action != nil {
		args = append(args, *filter.Action)
		clauses = append(clauses, fmt.Sprintf("action=$%d", len(args)))
	}

	query := fmt.Sprintf(`
        SELECT id, incident_id, actor_id, action, note, created_at
        FROM incident_logs WHERE %s ORDER BY id ASC`, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		limit, offset := NormalizePage(filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.LogEntry
	for rows.Next() {
		var entry domain.LogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.IncidentID,
			&entry.ActorID,
			&entry.Action,
			&entry.Note,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
