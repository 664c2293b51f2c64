package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/chromenv/internal/models"
)

func newEnv(name, group string) *models.Environment {
	return &models.Environment{
		Name:      name,
		GroupName: group,
		DataDir:   "/data/environments/" + name,
		Tags:      []string{"t1"},
	}
}

func TestEnvironmentRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEnvironmentRepository(db)
	ctx := context.Background()

	env := newEnv("work", "g1")
	env.Proxy = "socks5://127.0.0.1:1080"
	env.UserAgent = "Mozilla/5.0 test"
	if err := repo.Create(ctx, env); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if env.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	got, err := repo.GetByID(ctx, env.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() returned nil")
	}
	if got.Name != "work" || got.GroupName != "g1" {
		t.Errorf("got name/group = %q/%q", got.Name, got.GroupName)
	}
	if got.Proxy != env.Proxy {
		t.Errorf("Proxy = %q, want %q", got.Proxy, env.Proxy)
	}
	if got.UserAgent != env.UserAgent {
		t.Errorf("UserAgent = %q, want %q", got.UserAgent, env.UserAgent)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "t1" {
		t.Errorf("Tags = %v, want [t1]", got.Tags)
	}
	if got.DeletedAt != nil {
		t.Error("DeletedAt should be nil")
	}
	if !got.CreatedAt.Equal(env.CreatedAt.Truncate(time.Millisecond)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, env.CreatedAt)
	}
}

func TestEnvironmentRepository_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEnvironmentRepository(db)

	got, err := repo.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetByID() = %+v, want nil", got)
	}
}

func TestEnvironmentRepository_DuplicateDataDir(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEnvironmentRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newEnv("a", "g")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	dup := newEnv("b", "g")
	dup.DataDir = "/data/environments/a"
	if err := repo.Create(ctx, dup); err == nil {
		t.Error("Create() with duplicate data_dir should fail")
	}
}

func TestEnvironmentRepository_SoftDeleteRestore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEnvironmentRepository(db)
	ctx := context.Background()

	env := newEnv("work", "g1")
	if err := repo.Create(ctx, env); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ok, err := repo.SoftDelete(ctx, env.ID, time.Now())
	if err != nil || !ok {
		t.Fatalf("SoftDelete() = %v, %v; want true, nil", ok, err)
	}

	// Second soft delete is a miss.
	ok, err = repo.SoftDelete(ctx, env.ID, time.Now())
	if err != nil || ok {
		t.Errorf("second SoftDelete() = %v, %v; want false, nil", ok, err)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ListActive() = %d items, want 0", len(active))
	}

	deleted, err := repo.ListDeleted(ctx)
	if err != nil {
		t.Fatalf("ListDeleted() error = %v", err)
	}
	if len(deleted) != 1 || deleted[0].ID != env.ID {
		t.Fatalf("ListDeleted() = %v, want [%s]", deleted, env.ID)
	}
	if deleted[0].DeletedAt == nil {
		t.Error("DeletedAt should be set")
	}

	if got, _ := repo.GetActive(ctx, env.ID); got != nil {
		t.Error("GetActive() should miss a trashed environment")
	}
	if got, _ := repo.GetDeleted(ctx, env.ID); got == nil {
		t.Error("GetDeleted() should find a trashed environment")
	}

	ok, err = repo.Restore(ctx, env.ID)
	if err != nil || !ok {
		t.Fatalf("Restore() = %v, %v; want true, nil", ok, err)
	}
	ok, _ = repo.Restore(ctx, env.ID)
	if ok {
		t.Error("Restore() of an active environment should return false")
	}

	active, _ = repo.ListActive(ctx)
	if len(active) != 1 {
		t.Errorf("ListActive() after restore = %d items, want 1", len(active))
	}
}

func TestEnvironmentRepository_HardDeleteRequiresTrash(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEnvironmentRepository(db)
	ctx := context.Background()

	env := newEnv("work", "g1")
	if err := repo.Create(ctx, env); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ok, err := repo.HardDelete(ctx, env.ID)
	if err != nil || ok {
		t.Errorf("HardDelete() of active = %v, %v; want false, nil", ok, err)
	}

	if _, err := repo.SoftDelete(ctx, env.ID, time.Now()); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	ok, err = repo.HardDelete(ctx, env.ID)
	if err != nil || !ok {
		t.Errorf("HardDelete() of trashed = %v, %v; want true, nil", ok, err)
	}
	if got, _ := repo.GetByID(ctx, env.ID); got != nil {
		t.Error("record still present after HardDelete")
	}
}

func TestEnvironmentRepository_ListDeletedBefore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEnvironmentRepository(db)
	ctx := context.Background()
	now := time.Now()

	old := newEnv("old", "g")
	recent := newEnv("recent", "g")
	for _, e := range []*models.Environment{old, recent} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	repo.SoftDelete(ctx, old.ID, now.Add(-31*24*time.Hour))
	repo.SoftDelete(ctx, recent.ID, now.Add(-29*24*time.Hour))

	expired, err := repo.ListDeletedBefore(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("ListDeletedBefore() error = %v", err)
	}
	if len(expired) != 1 || expired[0].ID != old.ID {
		t.Errorf("ListDeletedBefore() = %v, want only %s", expired, old.ID)
	}
}

func TestEnvironmentRepository_UpdateAndOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEnvironmentRepository(db)
	ctx := context.Background()

	a := newEnv("a", "g1")
	b := newEnv("b", "g2")
	for _, e := range []*models.Environment{a, b} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if err := repo.TouchLastUsed(ctx, a.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("TouchLastUsed() error = %v", err)
	}

	list, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID {
		t.Fatalf("ListActive() first = %v, want %s", list[0].ID, a.ID)
	}

	a.Name = "renamed"
	a.DataDir = "/elsewhere"
	a.Proxy = "http://p:3128"
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, a.ID)
	if got.Name != "renamed" || got.Proxy != "http://p:3128" {
		t.Errorf("Update() not applied: %+v", got)
	}
	if got.DataDir != "/data/environments/a" {
		t.Errorf("DataDir = %q, must not change on Update", got.DataDir)
	}
}

func TestEnvironmentRepository_Groups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEnvironmentRepository(db)
	ctx := context.Background()

	a := newEnv("a", "work")
	b := newEnv("b", "home")
	c := newEnv("c", "work")
	for _, e := range []*models.Environment{a, b, c} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	repo.SoftDelete(ctx, b.ID, time.Now())

	groups, err := repo.ActiveGroups(ctx)
	if err != nil {
		t.Fatalf("ActiveGroups() error = %v", err)
	}
	if len(groups) != 1 || groups[0] != "work" {
		t.Errorf("ActiveGroups() = %v, want [work]", groups)
	}

	n, err := repo.CountActiveInGroup(ctx, "work")
	if err != nil || n != 2 {
		t.Errorf("CountActiveInGroup(work) = %d, %v; want 2", n, err)
	}
	n, _ = repo.CountActiveInGroup(ctx, "home")
	if n != 0 {
		t.Errorf("CountActiveInGroup(home) = %d, want 0", n)
	}
}
