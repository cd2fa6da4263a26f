package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
	"github.com/GriffinCanCode/EdgeCode/internal/shared/id"
	_ "modernc.org/sqlite"
)

// Schema for the fragment tables. Applied by Init.
const Schema = `
CREATE TABLE IF NOT EXISTS fragments (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	source TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	mode TEXT NOT NULL DEFAULT 'auto-inject',
	conditions TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fragments_active ON fragments(active, deleted);
CREATE INDEX IF NOT EXISTS idx_fragments_slug ON fragments(slug);

CREATE TABLE IF NOT EXISTS fragment_revisions (
	id TEXT PRIMARY KEY,
	fragment_id TEXT NOT NULL REFERENCES fragments(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	source TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revisions_fragment ON fragment_revisions(fragment_id);

CREATE TABLE IF NOT EXISTS fragment_diagnostics (
	fragment_id TEXT PRIMARY KEY,
	message TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// SQLite is the Store implementation backed by modernc.org/sqlite.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory database, used by tests and demos.
func OpenMemory() (*SQLite, error) {
	return Open("file::memory:?cache=shared")
}

// Init creates the tables if they do not exist.
func (s *SQLite) Init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

const fragmentColumns = "id, title, slug, kind, source, active, deleted, mode, conditions, created_at, updated_at"

// Create persists a new fragment, assigning id, slug, and timestamps as
// needed.
func (s *SQLite) Create(ctx context.Context, f *fragment.Fragment) error {
	if f.ID == "" {
		f.ID = id.NewFragmentID()
	}
	if f.Slug == "" {
		f.Slug = fragment.Slugify(f.Title)
	}
	if err := f.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fragments (`+fragmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID.String(), f.Title, f.Slug, f.Kind.String(), f.Source,
		boolInt(f.Active), boolInt(f.Deleted), f.Mode.String(), f.Conditions,
		f.CreatedAt.Unix(), f.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("failed to create fragment: %w", err)
	}
	return nil
}

// Get fetches a fragment by id, including soft-deleted ones.
func (s *SQLite) Get(ctx context.Context, fragID id.FragmentID) (*fragment.Fragment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE id = ?`, fragID.String())
	return scanFragment(row)
}

// GetBySlug fetches a fragment by slug, excluding soft-deleted ones.
func (s *SQLite) GetBySlug(ctx context.Context, slug string) (*fragment.Fragment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE slug = ? AND deleted = 0`, slug)
	return scanFragment(row)
}

// Update persists editable fields. A revision of the prior state is
// appended first whenever source or title changed.
func (s *SQLite) Update(ctx context.Context, f *fragment.Fragment) error {
	if err := f.Validate(); err != nil {
		return err
	}

	current, err := s.Get(ctx, f.ID)
	if err != nil {
		return err
	}

	if current.Source != f.Source || current.Title != f.Title {
		if err := s.AppendRevision(ctx, f.ID, current.Snapshot()); err != nil {
			return err
		}
	}

	f.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE fragments SET title = ?, slug = ?, kind = ?, source = ?, active = ?,
			deleted = ?, mode = ?, conditions = ?, updated_at = ? WHERE id = ?`,
		f.Title, f.Slug, f.Kind.String(), f.Source, boolInt(f.Active),
		boolInt(f.Deleted), f.Mode.String(), f.Conditions,
		f.UpdatedAt.Unix(), f.ID.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("failed to update fragment: %w", err)
	}
	return requireRow(res)
}

// List returns fragments matching the filter in ascending id order.
func (s *SQLite) List(ctx context.Context, filter Filter) ([]fragment.Fragment, error) {
	query := `SELECT ` + fragmentColumns + ` FROM fragments`
	var (
		clauses []string
		args    []interface{}
	)

	switch {
	case filter.DeletedOnly:
		clauses = append(clauses, "deleted = 1")
	case !filter.IncludeDeleted:
		clauses = append(clauses, "deleted = 0")
	}
	if filter.Kind != nil {
		clauses = append(clauses, "kind = ?")
		args = append(args, filter.Kind.String())
	}
	if filter.Active != nil {
		clauses = append(clauses, "active = ?")
		args = append(args, boolInt(*filter.Active))
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}
	defer rows.Close()

	return collectFragments(rows)
}

// FetchActive returns executable fragments in creation order. Filtering
// happens server-side per the gateway contract.
func (s *SQLite) FetchActive(ctx context.Context) ([]fragment.Fragment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE active = 1 AND deleted = 0 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active fragments: %w", err)
	}
	defer rows.Close()

	return collectFragments(rows)
}

// Disable flips the active flag off.
func (s *SQLite) Disable(ctx context.Context, fragID id.FragmentID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fragments SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().Unix(), fragID.String())
	if err != nil {
		return fmt.Errorf("failed to disable fragment: %w", err)
	}
	return requireRow(res)
}

// SoftDelete moves a fragment to the trash.
func (s *SQLite) SoftDelete(ctx context.Context, fragID id.FragmentID) error {
	return s.setDeleted(ctx, fragID, true)
}

// Restore brings a fragment back from the trash.
func (s *SQLite) Restore(ctx context.Context, fragID id.FragmentID) error {
	return s.setDeleted(ctx, fragID, false)
}

func (s *SQLite) setDeleted(ctx context.Context, fragID id.FragmentID, deleted bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fragments SET deleted = ?, updated_at = ? WHERE id = ?`,
		boolInt(deleted), time.Now().Unix(), fragID.String())
	if err != nil {
		return fmt.Errorf("failed to set deleted flag: %w", err)
	}
	return requireRow(res)
}

// HardDelete removes the fragment row; revisions cascade.
func (s *SQLite) HardDelete(ctx context.Context, fragID id.FragmentID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM fragments WHERE id = ?`, fragID.String())
	if err != nil {
		return fmt.Errorf("failed to delete fragment: %w", err)
	}
	return requireRow(res)
}

// AppendRevision stores a snapshot and prunes history beyond the cap,
// oldest first.
func (s *SQLite) AppendRevision(ctx context.Context, fragID id.FragmentID, rev fragment.Revision) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fragment_revisions (id, fragment_id, title, source, kind, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
		rev.ID.String(), fragID.String(), rev.Title, rev.Source,
		rev.Kind.String(), rev.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to append revision: %w", err)
	}

	// Revision ids sort in creation order, so keeping the newest N is a
	// suffix by id.
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM fragment_revisions WHERE fragment_id = ? AND id NOT IN (
			SELECT id FROM fragment_revisions WHERE fragment_id = ?
			ORDER BY id DESC LIMIT ?)`,
		fragID.String(), fragID.String(), fragment.MaxRevisions)
	if err != nil {
		return fmt.Errorf("failed to prune revisions: %w", err)
	}
	return nil
}

// Revisions returns a fragment's history, newest first.
func (s *SQLite) Revisions(ctx context.Context, fragID id.FragmentID) ([]fragment.Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fragment_id, title, source, kind, created_at
			FROM fragment_revisions WHERE fragment_id = ? ORDER BY id DESC`,
		fragID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer rows.Close()

	var revs []fragment.Revision
	for rows.Next() {
		var (
			rev       fragment.Revision
			revID     string
			parentID  string
			kindName  string
			createdAt int64
		)
		if err := rows.Scan(&revID, &parentID, &rev.Title, &rev.Source, &kindName, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		rev.ID = id.RevisionID(revID)
		rev.FragmentID = id.FragmentID(parentID)
		kind, err := fragment.ParseKind(kindName)
		if err != nil {
			return nil, err
		}
		rev.Kind = kind
		rev.CreatedAt = time.Unix(createdAt, 0)
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

// PutDiagnostic records an execution failure, replacing any previous one.
func (s *SQLite) PutDiagnostic(ctx context.Context, fragID id.FragmentID, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fragment_diagnostics (fragment_id, message, created_at) VALUES (?, ?, ?)
			ON CONFLICT(fragment_id) DO UPDATE SET message = excluded.message,
			created_at = excluded.created_at`,
		fragID.String(), message, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write diagnostic: %w", err)
	}
	return nil
}

// TakeDiagnostic returns and consumes the live diagnostic for a fragment.
func (s *SQLite) TakeDiagnostic(ctx context.Context, fragID id.FragmentID) (*fragment.Diagnostic, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT message, created_at FROM fragment_diagnostics WHERE fragment_id = ?`,
		fragID.String())

	var (
		message   string
		createdAt int64
	)
	if err := row.Scan(&message, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDiagnostic
		}
		return nil, fmt.Errorf("failed to read diagnostic: %w", err)
	}

	// Consume once regardless of expiry.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM fragment_diagnostics WHERE fragment_id = ?`, fragID.String()); err != nil {
		return nil, fmt.Errorf("failed to consume diagnostic: %w", err)
	}

	d := &fragment.Diagnostic{
		FragmentID: fragID,
		Message:    message,
		At:         time.Unix(createdAt, 0),
	}
	if d.Expired(time.Now()) {
		return nil, ErrNoDiagnostic
	}
	return d, nil
}

// PurgeDiagnostics drops expired diagnostics. Called opportunistically by
// the admin surface.
func (s *SQLite) PurgeDiagnostics(ctx context.Context) error {
	cutoff := time.Now().Add(-fragment.DiagnosticTTL).Unix()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM fragment_diagnostics WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge diagnostics: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFragment(row rowScanner) (*fragment.Fragment, error) {
	var (
		f          fragment.Fragment
		fragID     string
		kindName   string
		modeName   string
		active     int
		deleted    int
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(&fragID, &f.Title, &f.Slug, &kindName, &f.Source,
		&active, &deleted, &modeName, &f.Conditions, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fragment.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan fragment: %w", err)
	}

	f.ID = id.FragmentID(fragID)
	kind, err := fragment.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	f.Kind = kind
	mode, err := fragment.ParseInjectionMode(modeName)
	if err != nil {
		return nil, err
	}
	f.Mode = mode
	f.Active = active != 0
	f.Deleted = deleted != 0
	f.CreatedAt = time.Unix(createdAt, 0)
	f.UpdatedAt = time.Unix(updatedAt, 0)
	return &f, nil
}

func collectFragments(rows *sql.Rows) ([]fragment.Fragment, error) {
	var frags []fragment.Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, err
		}
		frags = append(frags, *f)
	}
	return frags, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fragment.ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
