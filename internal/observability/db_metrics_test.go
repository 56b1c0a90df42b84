package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/geocoder89/secondchance/internal/domain/user"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"duplicate sentinel", fmt.Errorf("insert: %w", user.ErrDuplicateEmail), "unique_violation"},
		{"pg unique", &pgconn.PgError{Code: "23505"}, "unique_violation"},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, "deadlock"},
		{"pg other", &pgconn.PgError{Code: "42P01"}, "pg_42P01"},
		{"redis watch conflict", redis.TxFailedErr, "tx_conflict"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"connection", errors.New("connection refused"), "connection"},
		{"unknown", errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyDBErr(tt.err); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObserveDB_NotFoundIsNotAnError(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	err := p.ObserveDB("users.find_by_email", func() error { return user.ErrNotFound })
	if !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("ObserveDB must return fn's error, got %v", err)
	}

	if got := testutil.CollectAndCount(p.DbErrorsTotal); got != 0 {
		t.Fatalf("expected no error series, got %d", got)
	}
}

func TestObserveDB_CountsFailures(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveDB("users.insert", func() error { return &pgconn.PgError{Code: "23505"} })

	got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.insert", "unique_violation"))
	if got != 1 {
		t.Fatalf("got %v unique violations, want 1", got)
	}
}

func TestObserveAuth(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	p.ObserveAuth("login", "ok")
	p.ObserveAuth("login", "ok")
	p.ObserveAuth("login", "invalid_credentials")

	if got := testutil.ToFloat64(p.AuthOutcomes.WithLabelValues("login", "ok")); got != 2 {
		t.Fatalf("got %v ok logins, want 2", got)
	}
}
