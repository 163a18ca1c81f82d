package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

type locationRepository struct {
	pool *pgxpool.Pool
}

// NewLocationRepository builds the repository.
func NewLocationRepository(pool *pgxpool.Pool) LocationRepository {
	return &locationRepository{pool: pool}
}

func (r *locationRepository) Create(ctx context.Context, loc *domain.Location) error {
	const query = `
        INSERT INTO locations (id, name, building, floor, room, notes)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		loc.ID,
		loc.Name,
		loc.Building,
		loc.Floor,
		loc.Room,
		loc.Notes,
	)
	return err
}

func (r *locationRepository) Update(ctx context.Context, loc *domain.Location) error {
	const query = `
        UPDATE locations SET name=$1, building=$2, floor=$3, room=$4, notes=$5
        WHERE id=$6`
	return requireAffected(conn(ctx, r.pool).Exec(ctx, query,
		loc.Name,
		loc.Building,
		loc.Floor,
		loc.Room,
		loc.Notes,
		loc.ID,
	))
}

func (r *locationRepository) Delete(ctx context.Context, id string) error {
	return requireAffected(conn(ctx, r.pool).Exec(ctx, `DELETE FROM locations WHERE id=$1`, id))
}

func (r *locationRepository) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	const query = `
        SELECT id, name, building, floor, room, notes
        FROM locations WHERE id=$1`
	var loc domain.Location
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&loc.ID,
		&loc.Name,
		&loc.Building,
		&loc.Floor,
		&loc.Room,
		&loc.Notes,
	); err != nil {
		return nil, notFound(err)
	}
	return &loc, nil
}

func (r *locationRepository) List(ctx context.Context) ([]domain.Location, error) {
	const query = `
        SELECT id, name, building, floor, room, notes
        FROM locations ORDER BY building, floor, room`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Location
	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Building, &loc.Floor, &loc.Room, &loc.Notes); err != nil {
			return nil, err
		}
		result = append(result, loc)
	}
	return result, rows.Err()
}
