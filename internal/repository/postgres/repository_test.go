package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
)

func TestDeactivateBySource_ConcurrentCallersFlipOnce(t *testing.T) {
	pool := startPostgresForTest(t)
	repo := NewAnnouncementRepository(pool)
	ctx := context.Background()

	ref := model.EventRef(uuid.New())
	for i := 0; i < 3; i++ {
		if err := repo.Create(ctx, &model.Announcement{
			Title:    fmt.Sprintf("New Event: demo %d", i),
			Message:  "m",
			Priority: model.PriorityNormal,
			IsActive: true,
			Source:   &ref,
		}); err != nil {
			t.Fatalf("create announcement: %v", err)
		}
	}

	const workers = 8
	var wg sync.WaitGroup
	counts := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := repo.DeactivateBySource(ctx, ref.Kind, []uuid.UUID{ref.ID})
			if err != nil {
				t.Errorf("DeactivateBySource: %v", err)
			}
			counts <- n
		}()
	}
	wg.Wait()
	close(counts)

	var total int64
	for n := range counts {
		total += n
	}
	if total != 3 {
		t.Fatalf("expected 3 rows flipped in total, got %d", total)
	}
}

func TestAnnouncementSourceRoundTrip(t *testing.T) {
	pool := startPostgresForTest(t)
	repo := NewAnnouncementRepository(pool)
	ctx := context.Background()

	ref := model.LostItemRef(uuid.New())
	linked := &model.Announcement{Title: "LOST: Keys", Message: "m", Priority: model.PriorityHigh, IsActive: true, Source: &ref}
	unlinked := &model.Announcement{Title: "Welcome", Message: "m", Priority: model.PriorityLow, IsActive: true}
	for _, item := range []*model.Announcement{linked, unlinked} {
		if err := repo.Create(ctx, item); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := repo.FindByID(ctx, linked.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Source == nil || *got.Source != ref {
		t.Fatalf("expected source %v, got %+v", ref, got.Source)
	}

	refs, err := repo.ActiveSourceRefs(ctx)
	if err != nil {
		t.Fatalf("ActiveSourceRefs: %v", err)
	}
	if len(refs) != 1 || refs[0] != ref {
		t.Fatalf("unexpected refs: %v", refs)
	}

	n, err := repo.DeactivateUnlinked(ctx, []uuid.UUID{linked.ID, unlinked.ID})
	if err != nil {
		t.Fatalf("DeactivateUnlinked: %v", err)
	}
	if n != 1 {
		t.Fatalf("only the unlinked row may flip, got %d", n)
	}
}

func TestAnnouncementUpdate_LeavesVisibilityUnlessSet(t *testing.T) {
	pool := startPostgresForTest(t)
	repo := NewAnnouncementRepository(pool)
	ctx := context.Background()

	ref := model.LostItemRef(uuid.New())
	item := &model.Announcement{Title: "LOST: Wallet", Message: "m", Priority: model.PriorityNormal, IsActive: true, Source: &ref}
	if err := repo.Create(ctx, item); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.DeactivateBySource(ctx, ref.Kind, []uuid.UUID{ref.ID}); err != nil {
		t.Fatalf("DeactivateBySource: %v", err)
	}

	updated, err := repo.Update(ctx, item.ID, repository.AnnouncementPatch{
		Title: "LOST: Blue wallet", Message: "m", Priority: model.PriorityNormal,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.IsActive || updated.Title != "LOST: Blue wallet" {
		t.Fatalf("unexpected row after title edit: %+v", updated)
	}

	active := true
	updated, err = repo.Update(ctx, item.ID, repository.AnnouncementPatch{
		Title: updated.Title, Message: "m", Priority: model.PriorityNormal, IsActive: &active,
	})
	if err != nil || !updated.IsActive {
		t.Fatalf("explicit activation = %+v, %v", updated, err)
	}

	if _, err := repo.Update(ctx, uuid.New(), repository.AnnouncementPatch{Title: "x", Message: "m", Priority: model.PriorityLow}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnnouncedSourceIDs_SurviveDelete(t *testing.T) {
	pool := startPostgresForTest(t)
	repo := NewAnnouncementRepository(pool)
	ctx := context.Background()

	ref := model.EventRef(uuid.New())
	item := &model.Announcement{Title: "New Event: Fair", Message: "m", Priority: model.PriorityNormal, IsActive: true, Source: &ref}
	if err := repo.Create(ctx, item); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Delete(ctx, item.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	ids, err := repo.AnnouncedSourceIDs(ctx, model.EntityKindEvent)
	if err != nil {
		t.Fatalf("AnnouncedSourceIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != ref.ID {
		t.Fatalf("announced ids = %v, want [%s]", ids, ref.ID)
	}
	if lost, _ := repo.AnnouncedSourceIDs(ctx, model.EntityKindLostItem); len(lost) != 0 {
		t.Fatalf("unexpected lost item ids %v", lost)
	}
}

func TestEventIDsBefore(t *testing.T) {
	pool := startPostgresForTest(t)
	repo := NewEventRepository(pool)
	ctx := context.Background()

	past := &model.Event{Title: "past", Date: time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)}
	today := &model.Event{Title: "today", Date: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)}
	for _, e := range []*model.Event{past, today} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("create event: %v", err)
		}
	}

	ids, err := repo.IDsBefore(ctx, "2026-01-10")
	if err != nil {
		t.Fatalf("IDsBefore: %v", err)
	}
	if len(ids) != 1 || ids[0] != past.ID {
		t.Fatalf("expected only %s, got %v", past.ID, ids)
	}
}

func TestMarkResolved_TransitionsOnce(t *testing.T) {
	pool := startPostgresForTest(t)
	repo := NewLostItemRepository(pool)
	ctx := context.Background()

	item := &model.LostItem{
		ReporterID:  uuid.New(),
		Type:        model.LostItemTypeLost,
		Category:    model.CategoryWallet,
		Description: "brown leather",
		ContactInfo: "0200000000",
	}
	if err := repo.Create(ctx, item); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := repo.MarkResolved(ctx, item.ID)
	if err != nil || !first {
		t.Fatalf("first MarkResolved = %v, %v", first, err)
	}
	second, err := repo.MarkResolved(ctx, item.ID)
	if err != nil || second {
		t.Fatalf("second MarkResolved = %v, %v", second, err)
	}

	if _, err := repo.MarkResolved(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettingsLoadMissing(t *testing.T) {
	pool := startPostgresForTest(t)
	repo := NewSettingsRepository(pool)
	ctx := context.Background()

	if _, err := repo.Load(ctx, "site"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Save(ctx, "site", []byte(`{"current_semester":2}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := repo.Load(ctx, "site")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(string(raw), `"current_semester": 2`) && !strings.Contains(string(raw), `"current_semester":2`) {
		t.Fatalf("unexpected document %s", raw)
	}
}

func startPostgresForTest(t *testing.T) *pgxpool.Pool {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "dasa_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skipping test because docker/testcontainers is unavailable: %v", err)
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/dasa_test?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	deadline := time.Now().Add(30 * time.Second)
	for {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("postgres did not become ready: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	applyAllMigrations(t, ctx, pool)
	return pool
}

func applyAllMigrations(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	migrationsDir := filepath.Join(findRepoRoot(t), "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		// #nosec G304 -- migration file list comes from controlled test directory.
		raw, err := os.ReadFile(filepath.Join(migrationsDir, file))
		if err != nil {
			t.Fatalf("read migration %s: %v", file, err)
		}
		if strings.TrimSpace(string(raw)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(raw)); err != nil {
			t.Fatalf("apply migration %s: %v", file, err)
		}
	}
}

func findRepoRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not locate repository root")
		}
		dir = parent
	}
}
