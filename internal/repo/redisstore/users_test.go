package redisstore_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/geocoder89/secondchance/internal/domain/user"
	"github.com/geocoder89/secondchance/internal/redisclient"
	"github.com/geocoder89/secondchance/internal/repo/redisstore"
	"github.com/google/uuid"
)

func setupUsersRepo(t *testing.T) (*redisstore.UsersRepo, string) {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redisclient.New(redisclient.Config{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	// unique email per test so runs never collide on a shared server
	email := "redis-" + uuid.NewString() + "@x.com"
	t.Cleanup(func() {
		client.Raw().Del(context.Background(), "users:email:"+email)
	})

	return redisstore.NewUsersRepo(client.Raw(), nil), email
}

func strPtr(s string) *string { return &s }

func TestUsersRepo_InsertFindUpdate(t *testing.T) {
	repo, email := setupUsersRepo(t)
	ctx := context.Background()

	created, err := repo.Insert(ctx, user.User{Email: email, FirstName: "Ann", LastName: "Lee", PasswordHash: "h1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("unexpected created record: %+v", created)
	}

	found, err := repo.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.PasswordHash != "h1" || found.ID != created.ID {
		t.Fatalf("stored record lost fields: %+v", found)
	}

	updated, err := repo.UpdateByEmail(ctx, email, user.Changes{FirstName: strPtr("Annie"), PasswordHash: strPtr("h2")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FirstName != "Annie" || updated.LastName != "Lee" || updated.PasswordHash != "h2" {
		t.Fatalf("merge wrong: %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Fatalf("expected updatedAt to be stamped")
	}
}

func TestUsersRepo_DuplicateAndMissing(t *testing.T) {
	repo, email := setupUsersRepo(t)
	ctx := context.Background()

	if _, err := repo.FindByEmail(ctx, email); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("find: got %v, want ErrNotFound", err)
	}
	if _, err := repo.UpdateByEmail(ctx, email, user.Changes{}); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("update: got %v, want ErrNotFound", err)
	}

	if _, err := repo.Insert(ctx, user.User{Email: email}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := repo.Insert(ctx, user.User{Email: email}); !errors.Is(err, user.ErrDuplicateEmail) {
		t.Fatalf("second insert: got %v, want ErrDuplicateEmail", err)
	}
}

func TestUsersRepo_ConcurrentUpdatesAllLand(t *testing.T) {
	repo, email := setupUsersRepo(t)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, user.User{Email: email}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var wg sync.WaitGroup
	for _, name := range []string{"first", "last"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			changes := user.Changes{FirstName: strPtr("F")}
			if name == "last" {
				changes = user.Changes{LastName: strPtr("L")}
			}
			if _, err := repo.UpdateByEmail(ctx, email, changes); err != nil {
				t.Errorf("update %s: %v", name, err)
			}
		}(name)
	}
	wg.Wait()

	got, err := repo.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.FirstName != "F" || got.LastName != "L" {
		t.Fatalf("lost update: %+v", got)
	}
}
