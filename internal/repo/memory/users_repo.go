package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/secondchance/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo keeps users in process memory, keyed by email.
// Insert checks and writes under one lock, so email uniqueness holds under concurrency.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User
	now   func() time.Time
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	u, ok := r.items[email]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) Insert(ctx context.Context, u user.User) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[u.Email]; exists {
		return user.User{}, user.ErrDuplicateEmail
	}

	u.ID = uuid.NewString()
	u.CreatedAt = r.now()
	u.UpdatedAt = nil
	r.items[u.Email] = u

	return u, nil
}

func (r *UsersRepo) UpdateByEmail(ctx context.Context, email string, changes user.Changes) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	updated := changes.Apply(existing, r.now())
	r.items[email] = updated

	return updated, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}
