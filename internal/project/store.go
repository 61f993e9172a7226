package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"adforge/internal/config"
)

// Store manages project persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the project database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "projects.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a new project in the uploaded stage. The id is assigned when
// empty; version starts at 1.
func (s *Store) Create(ctx context.Context, in Inputs) (*Project, error) {
	if in.ProductImagePath == "" || in.PersonMediaPath == "" {
		return nil, errors.New("project inputs incomplete")
	}

	p := &Project{
		ID:      uuid.NewString(),
		Version: 1,
		Inputs:  in,
		Stage:   StageUploaded,
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO projects (
            id, version, product_image_path, person_media_path, person_media_type,
            product_name, product_description, product_category, product_price,
            stage, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Version,
		p.Inputs.ProductImagePath,
		p.Inputs.PersonMediaPath,
		nullableString(p.Inputs.PersonMediaType),
		nullableString(p.Inputs.ProductName),
		nullableString(p.Inputs.ProductDescription),
		nullableString(p.Inputs.ProductCategory),
		nullableString(p.Inputs.ProductPrice),
		p.Stage,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// GetByID fetches a project by identifier. Returns ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// SetScript records the generated marketing script on a freshly created
// project. Script generation happens during upload, before any job runs.
func (s *Store) SetScript(ctx context.Context, p *Project, script string) error {
	p.Artifacts.Script = script
	return s.UpdateCAS(ctx, p)
}

// UpdateCAS persists changes to an existing project using p.Version as the
// expected version. On success the stored and in-memory versions advance by
// one; a stale version yields ErrVersionConflict and no write.
func (s *Store) UpdateCAS(ctx context.Context, p *Project) error {
	if p == nil {
		return errors.New("project is nil")
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE projects
         SET version = version + 1, stage = ?,
             job_id = ?, job_stage = ?, job_submitted_at = ?,
             script = ?, video_path = ?, site_path = ?, publish_url = ?, post_id = ?,
             error_kind = ?, error_message = ?, error_at = ?,
             updated_at = ?
         WHERE id = ? AND version = ?`,
		p.Stage,
		nullableString(p.JobID),
		nullableString(string(p.JobStage)),
		nullableTime(p.JobSubmittedAt),
		nullableString(p.Artifacts.Script),
		nullableString(p.Artifacts.VideoPath),
		nullableString(p.Artifacts.SitePath),
		nullableString(p.Artifacts.PublishURL),
		nullableString(p.Artifacts.PostID),
		nullableString(p.Error.Kind),
		nullableString(p.Error.Message),
		nullableTime(p.Error.OccurredAt),
		now.Format(time.RFC3339Nano),
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetByID(ctx, p.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

// FindByJobID returns the project whose active job matches the given id, or
// nil when no project claims it. This is the fencing lookup: completions for
// superseded or cancelled jobs find no owner and are discarded.
func (s *Store) FindByJobID(ctx context.Context, jobID string) (*Project, error) {
	if jobID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE job_id = ? LIMIT 1`, jobID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by job id: %w", err)
	}
	return p, nil
}

// ListInFlight returns all projects whose stage is a generating state,
// ordered by creation time. The reconciler uses this after a restart.
func (s *Store) ListInFlight(ctx context.Context) ([]*Project, error) {
	return s.List(ctx, StageVideoGenerating, StageWebsiteGenerating, StagePublishing)
}

// List returns projects filtered by stage set (or all projects when no stage
// is provided), newest first.
func (s *Store) List(ctx context.Context, stages ...Stage) ([]*Project, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + projectColumns + ` FROM projects`
	orderClause := ` ORDER BY created_at DESC`

	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(stages))
		args := make([]any, len(stages))
		for i, stage := range stages {
			args[i] = stage
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE stage IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Stats returns a count of projects grouped by stage.
func (s *Store) Stats(ctx context.Context) (map[Stage]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, COUNT(1) FROM projects GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("project stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Stage]int)
	for rows.Next() {
		var stage Stage
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		stats[stage] = count
	}
	return stats, rows.Err()
}

const projectColumns = "id, version, product_image_path, person_media_path, person_media_type, product_name, product_description, product_category, product_price, stage, job_id, job_stage, job_submitted_at, script, video_path, site_path, publish_url, post_id, error_kind, error_message, error_at, created_at, updated_at"

func (s *Store) applySchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    version INTEGER NOT NULL DEFAULT 1,
    product_image_path TEXT NOT NULL,
    person_media_path TEXT NOT NULL,
    person_media_type TEXT,
    product_name TEXT,
    product_description TEXT,
    product_category TEXT,
    product_price TEXT,
    stage TEXT NOT NULL,
    job_id TEXT,
    job_stage TEXT,
    job_submitted_at TEXT,
    script TEXT,
    video_path TEXT,
    site_path TEXT,
    publish_url TEXT,
    post_id TEXT,
    error_kind TEXT,
    error_message TEXT,
    error_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_stage ON projects(stage);
CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_job_id ON projects(job_id) WHERE job_id IS NOT NULL;
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id              string
		version         int64
		productImage    string
		personMedia     string
		personMediaType sql.NullString
		productName     sql.NullString
		productDesc     sql.NullString
		productCategory sql.NullString
		productPrice    sql.NullString
		stageStr        string
		jobID           sql.NullString
		jobStage        sql.NullString
		jobSubmittedRaw sql.NullString
		script          sql.NullString
		videoPath       sql.NullString
		sitePath        sql.NullString
		publishURL      sql.NullString
		postID          sql.NullString
		errorKind       sql.NullString
		errorMessage    sql.NullString
		errorAtRaw      sql.NullString
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&id,
		&version,
		&productImage,
		&personMedia,
		&personMediaType,
		&productName,
		&productDesc,
		&productCategory,
		&productPrice,
		&stageStr,
		&jobID,
		&jobStage,
		&jobSubmittedRaw,
		&script,
		&videoPath,
		&sitePath,
		&publishURL,
		&postID,
		&errorKind,
		&errorMessage,
		&errorAtRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	p := &Project{
		ID:      id,
		Version: version,
		Inputs: Inputs{
			ProductImagePath:   productImage,
			PersonMediaPath:    personMedia,
			PersonMediaType:    personMediaType.String,
			ProductName:        productName.String,
			ProductDescription: productDesc.String,
			ProductCategory:    productCategory.String,
			ProductPrice:       productPrice.String,
		},
		Stage: Stage(stageStr),
		Artifacts: Artifacts{
			Script:     script.String,
			VideoPath:  videoPath.String,
			SitePath:   sitePath.String,
			PublishURL: publishURL.String,
			PostID:     postID.String,
		},
		Error: Failure{
			Kind:    errorKind.String,
			Message: errorMessage.String,
		},
		JobID:    jobID.String,
		JobStage: Stage(jobStage.String),
	}

	if ts, err := parseTimeString(jobSubmittedRaw.String); err == nil {
		p.JobSubmittedAt = &ts
	}
	if ts, err := parseTimeString(errorAtRaw.String); err == nil {
		p.Error.OccurredAt = &ts
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		p.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		p.UpdatedAt = updated
	}
	return p, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
