package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

type equipmentRepository struct {
	pool *pgxpool.Pool
}

// NewEquipmentRepository builds the repository.
func NewEquipmentRepository(pool *pgxpool.Pool) EquipmentRepository {
	return &equipmentRepository{pool: pool}
}

func (r *equipmentRepository) Create(ctx context.Context, eq *domain.Equipment) error {
	const query = `
        INSERT INTO equipment (id, location_id, model, serial_number, operational_state, notes, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		eq.ID,
		eq.LocationID,
		eq.Model,
		eq.SerialNumber,
		eq.OperationalState,
		eq.Notes,
		eq.CreatedAt,
		eq.UpdatedAt,
	)
	return err
}

func (r *equipmentRepository) Update(ctx context.Context, eq *domain.Equipment) error {
	const query = `
        UPDATE equipment SET location_id=$1, model=$2, serial_number=$3, operational_state=$4, notes=$5, updated_at=$6
        WHERE id=$7`
	return requireAffected(conn(ctx, r.pool).Exec(ctx, query,
		eq.LocationID,
		eq.Model,
		eq.SerialNumber,
		eq.OperationalState,
		eq.Notes,
		eq.UpdatedAt,
		eq.ID,
	))
}

func (r *equipmentRepository) Delete(ctx context.Context, id string) error {
	return requireAffected(conn(ctx, r.pool).Exec(ctx, `DELETE FROM equipment WHERE id=$1`, id))
}

const selectEquipment = `
        SELECT id, location_id, model, serial_number, operational_state, notes, created_at, updated_at
        FROM equipment WHERE id=$1`

func (r *equipmentRepository) GetByID(ctx context.Context, id string) (*domain.Equipment, error) {
	return r.fetchSingle(ctx, selectEquipment, id)
}

func (r *equipmentRepository) Lock(ctx context.Context, id string, mode LockMode) (*domain.Equipment, error) {
	query := selectEquipment + ` FOR SHARE`
	if mode == LockExclusive {
		query = selectEquipment + ` FOR UPDATE`
	}
	return r.fetchSingle(ctx, query, id)
}

func (r *equipmentRepository) fetchSingle(ctx context.Context, query, id string) (*domain.Equipment, error) {
	var eq domain.Equipment
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&eq.ID,
		&eq.LocationID,
		&eq.Model,
		&eq.SerialNumber,
		&eq.OperationalState,
		&eq.Notes,
		&eq.CreatedAt,
		&eq.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &eq, nil
}

func (r *equipmentRepository) List(ctx context.Context, locationID *string) ([]domain.Equipment, error) {
	query := `
        SELECT id, location_id, model, serial_number, operational_state, notes, created_at, updated_at
        FROM equipment`
	args := []any{}
	if locationID != nil {
		query += ` WHERE location_id=$1`
		args = append(args, *locationID)
	}
	query += ` ORDER BY model, serial_number`

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Equipment
	for rows.Next() {
		var eq domain.Equipment
		if err := rows.Scan(&eq.ID, &eq.LocationID, &eq.Model, &eq.SerialNumber, &eq.OperationalState, &eq.Notes, &eq.CreatedAt, &eq.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, eq)
	}
	return result, rows.Err()
}

func (r *equipmentRepository) CountByLocation(ctx context.Context, locationID string) (int, error) {
	var count int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM equipment WHERE location_id=$1`, locationID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
