// Package redisstore keeps credential records in Redis, one JSON document per email.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/secondchance/internal/domain/user"
	"github.com/geocoder89/secondchance/internal/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "users:email:"

	// optimistic WATCH transactions retried this many times before giving up
	maxUpdateAttempts = 5
)

// record is the stored shape; user.User hides the hash from JSON on purpose.
type record struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	PasswordHash string     `json:"passwordHash"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

func fromUser(u user.User) record {
	return record{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r record) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type UsersRepo struct {
	rdb  *redis.Client
	prom *observability.Prom
	now  func() time.Time
}

func NewUsersRepo(rdb *redis.Client, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		rdb:  rdb,
		prom: prom,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func emailKey(email string) string {
	return keyPrefix + email
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.observe("users.find_by_email", func() error {
		var getErr error
		u, getErr = r.get(ctx, r.rdb, email)
		return getErr
	})

	return
}

// Insert writes with SETNX: the key is the uniqueness constraint.
func (r *UsersRepo) Insert(ctx context.Context, in user.User) (u user.User, err error) {
	err = r.observe("users.insert", func() error {
		rec := fromUser(in)
		rec.ID = uuid.NewString()
		rec.CreatedAt = r.now()
		rec.UpdatedAt = nil

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}

		created, err := r.rdb.SetNX(ctx, emailKey(in.Email), payload, 0).Result()
		if err != nil {
			return err
		}
		if !created {
			return user.ErrDuplicateEmail
		}

		u = rec.toUser()
		return nil
	})

	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// UpdateByEmail merges under WATCH so a concurrent writer forces a re-read instead of a lost update.
func (r *UsersRepo) UpdateByEmail(ctx context.Context, email string, changes user.Changes) (u user.User, err error) {
	key := emailKey(email)

	err = r.observe("users.update_by_email", func() error {
		txf := func(tx *redis.Tx) error {
			current, err := r.get(ctx, tx, email)
			if err != nil {
				return err
			}

			merged := changes.Apply(current, r.now())

			payload, err := json.Marshal(fromUser(merged))
			if err != nil {
				return fmt.Errorf("encode user: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				return nil
			})
			if err != nil {
				return err
			}

			u = merged
			return nil
		}

		var lastErr error
		for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
			if attempt > 0 {
				if err := sleepCtx(ctx, conflictBackoff(attempt-1)); err != nil {
					return err
				}
			}

			lastErr = r.rdb.Watch(ctx, txf, key)
			if !errors.Is(lastErr, redis.TxFailedErr) {
				return lastErr
			}
		}
		return lastErr
	})

	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *UsersRepo) get(ctx context.Context, c getter, email string) (user.User, error) {
	raw, err := c.Get(ctx, emailKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return user.User{}, fmt.Errorf("decode user %q: %w", email, err)
	}

	return rec.toUser(), nil
}
