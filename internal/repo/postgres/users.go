package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/secondchance/internal/domain/user"
	"github.com/geocoder89/secondchance/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// name of the unique constraint on users.email, see db/migrations
const usersEmailConstraint = "users_email_uniq"

const userColumns = `id::text, email, first_name, last_name, password_hash, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.observe("users.find_by_email", func() error {
		return scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+`
			 FROM users
			 WHERE email = $1`,
			email,
		), &u)
	})

	return
}

// Insert relies on the unique constraint rather than a prior lookup,
// so two concurrent inserts for the same email cannot both succeed.
func (r *UsersRepo) Insert(ctx context.Context, in user.User) (u user.User, err error) {
	err = r.observe("users.insert", func() error {
		return scanUser(r.pool.QueryRow(
			ctx,
			`INSERT INTO users (email, first_name, last_name, password_hash)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+userColumns,
			in.Email,
			in.FirstName,
			in.LastName,
			in.PasswordHash,
		), &u)
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == usersEmailConstraint {
			return user.User{}, user.ErrDuplicateEmail
		}
		return user.User{}, err
	}

	return u, nil
}

// UpdateByEmail merges the non-nil changes; NULL parameters keep the stored value.
func (r *UsersRepo) UpdateByEmail(ctx context.Context, email string, changes user.Changes) (u user.User, err error) {
	err = r.observe("users.update_by_email", func() error {
		return scanUser(r.pool.QueryRow(
			ctx,
			`UPDATE users
			    SET first_name    = COALESCE($2, first_name),
			        last_name     = COALESCE($3, last_name),
			        password_hash = COALESCE($4, password_hash),
			        updated_at    = NOW()
			  WHERE email = $1
			 RETURNING `+userColumns,
			email,
			changes.FirstName,
			changes.LastName,
			changes.PasswordHash,
		), &u)
	})

	return
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanUser(row pgx.Row, u *user.User) error {
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}

		return err
	}
	return nil
}
