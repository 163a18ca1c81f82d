package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
)

type equipment struct{ db *DB }

func (r *equipment) Create(ctx context.Context, eq *domain.Equipment) error {
	return r.db.write(ctx, func() error {
		if _, exists := r.db.equipment[eq.ID]; exists {
			return repository.ErrConflict
		}
		cp := *eq
		r.db.equipment[eq.ID] = &cp
		return nil
	})
}

func (r *equipment) Update(ctx context.Context, eq *domain.Equipment) error {
	return r.db.write(ctx, func() error {
		stored, ok := r.db.equipment[eq.ID]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *eq
		cp.CreatedAt = stored.CreatedAt
		r.db.equipment[eq.ID] = &cp
		return nil
	})
}

func (r *equipment) Delete(ctx context.Context, id string) error {
	return r.db.write(ctx, func() error {
		if _, ok := r.db.equipment[id]; !ok {
			return repository.ErrNotFound
		}
		delete(r.db.equipment, id)
		return nil
	})
}

func (r *equipment) GetByID(_ context.Context, id string) (*domain.Equipment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	eq, ok := r.db.equipment[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *eq
	return &cp, nil
}

// Lock is a plain read: transactions are already serialised.
func (r *equipment) Lock(ctx context.Context, id string, _ repository.LockMode) (*domain.Equipment, error) {
	return r.GetByID(ctx, id)
}

func (r *equipment) List(_ context.Context, locationID *string) ([]domain.Equipment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	result := []domain.Equipment{}
	for _, eq := range r.db.equipment {
		if locationID != nil && eq.LocationID != *locationID {
			continue
		}
		result = append(result, *eq)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Model != result[j].Model {
			return result[i].Model < result[j].Model
		}
		return result[i].SerialNumber < result[j].SerialNumber
	})
	return result, nil
}

func (r *equipment) CountByLocation(_ context.Context, locationID string) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	count := 0
	for _, eq := range r.db.equipment {
		if eq.LocationID == locationID {
			count++
		}
	}
	return count, nil
}

type locations struct{ db *DB }

func (r *locations) Create(ctx context.Context, loc *domain.Location) error {
	return r.db.write(ctx, func() error {
		if _, exists := r.db.locations[loc.ID]; exists {
			return repository.ErrConflict
		}
		cp := *loc
		r.db.locations[loc.ID] = &cp
		return nil
	})
}

func (r *locations) Update(ctx context.Context, loc *domain.Location) error {
	return r.db.write(ctx, func() error {
		if _, ok := r.db.locations[loc.ID]; !ok {
			return repository.ErrNotFound
		}
		cp := *loc
		r.db.locations[loc.ID] = &cp
		return nil
	})
}

func (r *locations) Delete(ctx context.Context, id string) error {
	return r.db.write(ctx, func() error {
		if _, ok := r.db.locations[id]; !ok {
			return repository.ErrNotFound
		}
		delete(r.db.locations, id)
		return nil
	})
}

func (r *locations) GetByID(_ context.Context, id string) (*domain.Location, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	loc, ok := r.db.locations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *loc
	return &cp, nil
}

func (r *locations) List(_ context.Context) ([]domain.Location, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	result := []domain.Location{}
	for _, loc := range r.db.locations {
		result = append(result, *loc)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Building != b.Building {
			return a.Building < b.Building
		}
		if a.Floor != b.Floor {
			return a.Floor < b.Floor
		}
		return a.Room < b.Room
	})
	return result, nil
}

type users struct{ db *DB }

func (r *users) Create(ctx context.Context, user *domain.User) error {
	return r.db.write(ctx, func() error {
		if _, exists := r.db.users[user.ID]; exists {
			return repository.ErrConflict
		}
		for _, existing := range r.db.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return repository.ErrConflict
			}
		}
		cp := *user
		r.db.users[user.ID] = &cp
		return nil
	})
}

func (r *users) Update(ctx context.Context, user *domain.User) error {
	return r.db.write(ctx, func() error {
		stored, ok := r.db.users[user.ID]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *user
		cp.CreatedAt = stored.CreatedAt
		r.db.users[user.ID] = &cp
		return nil
	})
}

func (r *users) Delete(ctx context.Context, id string) error {
	return r.db.write(ctx, func() error {
		if _, ok := r.db.users[id]; !ok {
			return repository.ErrNotFound
		}
		delete(r.db.users, id)
		return nil
	})
}

func (r *users) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	user, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, user := range r.db.users {
		if strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *users) List(_ context.Context, limit, offset int) ([]domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	all := make([]domain.User, 0, len(r.db.users))
	for _, user := range r.db.users {
		all = append(all, *user)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Surname != all[j].Surname {
			return all[i].Surname < all[j].Surname
		}
		return all[i].Name < all[j].Name
	})
	limit, offset = repository.NormalizePage(limit, offset)
	if offset >= len(all) {
		return []domain.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
