package project

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"adforge/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.UploadDir = filepath.Join(root, "uploads")
	cfg.Paths.ArtifactDir = filepath.Join(root, "artifacts")
	cfg.Paths.LogDir = filepath.Join(root, "logs")

	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustCreate(t *testing.T, store *Store) *Project {
	t.Helper()
	p, err := store.Create(context.Background(), Inputs{
		ProductImagePath: "/uploads/product.png",
		PersonMediaPath:  "/uploads/person.mp4",
		PersonMediaType:  "video",
		ProductName:      "Ceramic Mug",
		ProductPrice:     "24.99",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, store)
	if created.ID == "" || created.Version != 1 {
		t.Fatalf("unexpected created project: id=%q version=%d", created.ID, created.Version)
	}
	if created.Stage != StageUploaded {
		t.Fatalf("stage = %s, want uploaded", created.Stage)
	}

	fetched, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Inputs.ProductName != "Ceramic Mug" || fetched.Inputs.PersonMediaType != "video" {
		t.Fatalf("inputs did not round-trip: %+v", fetched.Inputs)
	}
	if fetched.HasActiveJob() {
		t.Fatal("fresh project should have no job handle")
	}
}

func TestStoreCreateRejectsIncompleteInputs(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Create(context.Background(), Inputs{ProductImagePath: "/uploads/p.png"}); err == nil {
		t.Fatal("expected error for missing person media")
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}
}

func TestStoreUpdateCAS(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, store)

	p.BeginJob(StageVideoGenerating, "job-1", time.Now())
	if err := store.UpdateCAS(ctx, p); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if p.Version != 2 {
		t.Fatalf("version = %d, want 2", p.Version)
	}

	fetched, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Stage != StageVideoGenerating || fetched.JobID != "job-1" {
		t.Fatalf("job state not persisted: stage=%s job=%q", fetched.Stage, fetched.JobID)
	}
	if fetched.JobSubmittedAt == nil {
		t.Fatal("job submitted timestamp missing")
	}
}

func TestStoreUpdateCASStaleVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, store)

	stale, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	p.BeginJob(StageVideoGenerating, "job-1", time.Now())
	if err := store.UpdateCAS(ctx, p); err != nil {
		t.Fatalf("winning update: %v", err)
	}

	stale.BeginJob(StageVideoGenerating, "job-2", time.Now())
	if err := store.UpdateCAS(ctx, stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale update = %v, want ErrVersionConflict", err)
	}

	// The winning write is intact.
	current, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.JobID != "job-1" {
		t.Fatalf("job id = %q, want job-1", current.JobID)
	}
}

func TestStoreUpdateCASMissingProject(t *testing.T) {
	store := newTestStore(t)
	ghost := newTestProject()
	ghost.ID = "ghost"
	if err := store.UpdateCAS(context.Background(), ghost); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing = %v, want ErrNotFound", err)
	}
}

func TestStoreFindByJobID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, store)

	p.BeginJob(StageVideoGenerating, "job-fence", time.Now())
	if err := store.UpdateCAS(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}

	owner, err := store.FindByJobID(ctx, "job-fence")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if owner == nil || owner.ID != p.ID {
		t.Fatalf("owner = %+v, want project %s", owner, p.ID)
	}

	// Unknown and empty job ids resolve to no owner, not an error.
	if ghost, err := store.FindByJobID(ctx, "job-superseded"); err != nil || ghost != nil {
		t.Fatalf("unknown job = %+v, %v; want nil, nil", ghost, err)
	}
	if ghost, err := store.FindByJobID(ctx, ""); err != nil || ghost != nil {
		t.Fatalf("empty job = %+v, %v; want nil, nil", ghost, err)
	}
}

func TestStoreListInFlight(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	idle := mustCreate(t, store)
	running := mustCreate(t, store)
	running.BeginJob(StageVideoGenerating, "job-1", time.Now())
	if err := store.UpdateCAS(ctx, running); err != nil {
		t.Fatalf("update: %v", err)
	}
	publishing := mustCreate(t, store)
	publishing.Artifacts.VideoPath = "/artifacts/video.mp4"
	publishing.BeginJob(StagePublishing, "job-2", time.Now())
	if err := store.UpdateCAS(ctx, publishing); err != nil {
		t.Fatalf("update: %v", err)
	}

	inFlight, err := store.ListInFlight(ctx)
	if err != nil {
		t.Fatalf("list in flight: %v", err)
	}
	if len(inFlight) != 2 {
		t.Fatalf("in flight count = %d, want 2", len(inFlight))
	}
	for _, p := range inFlight {
		if p.ID == idle.ID {
			t.Fatal("idle project should not be listed in flight")
		}
		if !p.HasActiveJob() {
			t.Fatalf("in-flight project %s missing job handle", p.ID)
		}
	}
}

func TestStoreStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store)
	failed := mustCreate(t, store)
	failed.SetFailed("timeout", "render exceeded deadline", time.Now())
	if err := store.UpdateCAS(ctx, failed); err != nil {
		t.Fatalf("update: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[StageUploaded] != 1 || stats[StageFailed] != 1 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestStoreSetScript(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, store)

	if err := store.SetScript(ctx, p, "thirty second spot for the mug"); err != nil {
		t.Fatalf("set script: %v", err)
	}
	fetched, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Artifacts.Script != "thirty second spot for the mug" {
		t.Fatalf("script = %q", fetched.Artifacts.Script)
	}
}
