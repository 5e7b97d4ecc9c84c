package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/gridcalc/gridcalc/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database with foreign keys on and WAL journaling.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SaveSnapshot stores snap in one transaction. An empty ID is assigned
// a new UUID and a zero CreatedAt is set to now.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, workbook_id, label, locale, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, snap.ID, snap.WorkbookID, snap.Label, snap.Locale, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	for i, name := range snap.Sheets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_sheets (snapshot_id, position, name) VALUES (?, ?, ?)
		`, snap.ID, i, name)
		if err != nil {
			return fmt.Errorf("failed to store sheet %s: %w", name, err)
		}
	}

	cellStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_cells (snapshot_id, sheet, row_idx, col_idx, kind, formula, number, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer cellStmt.Close()

	for _, c := range snap.Cells {
		_, err := cellStmt.ExecContext(ctx, snap.ID, c.Sheet, c.Row, c.Col, c.Kind, c.Formula, c.Number, c.Text)
		if err != nil {
			return fmt.Errorf("failed to store cell %s!R%dC%d: %w", c.Sheet, c.Row+1, c.Col+1, err)
		}
	}

	for _, n := range snap.Names {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_names (snapshot_id, scope, name, formula) VALUES (?, ?, ?, ?)
		`, snap.ID, n.Scope, n.Name, n.Formula)
		if err != nil {
			return fmt.Errorf("failed to store name %s: %w", n.Name, err)
		}
	}

	for _, t := range snap.Tables {
		columns, err := json.Marshal(t.Columns)
		if err != nil {
			return fmt.Errorf("failed to encode columns of table %s: %w", t.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshot_tables (snapshot_id, name, sheet, area, header, totals, columns)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, snap.ID, t.Name, t.Sheet, t.Range, t.Header, t.Totals, string(columns))
		if err != nil {
			return fmt.Errorf("failed to store table %s: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot and its content by ID
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	snap := &Snapshot{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workbook_id, label, locale, created_at
		FROM snapshots
		WHERE id = ?
	`, id).Scan(&snap.ID, &snap.WorkbookID, &snap.Label, &snap.Locale, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := s.loadContent(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// LatestSnapshot retrieves the most recent snapshot of a workbook.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, workbookID string) (*Snapshot, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM snapshots
		WHERE workbook_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, workbookID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot of workbook %s: %w", workbookID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	return s.GetSnapshot(ctx, id)
}

func (s *SQLiteStore) loadContent(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM snapshot_sheets WHERE snapshot_id = ? ORDER BY position
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("failed to list sheets: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan sheet: %w", err)
		}
		snap.Sheets = append(snap.Sheets, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating sheets: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT c.sheet, c.row_idx, c.col_idx, c.kind, c.formula, c.number, c.text
		FROM snapshot_cells c
		JOIN snapshot_sheets sh ON sh.snapshot_id = c.snapshot_id AND sh.name = c.sheet
		WHERE c.snapshot_id = ?
		ORDER BY sh.position, c.row_idx, c.col_idx
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("failed to list cells: %w", err)
	}
	for rows.Next() {
		var c CellRecord
		if err := rows.Scan(&c.Sheet, &c.Row, &c.Col, &c.Kind, &c.Formula, &c.Number, &c.Text); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan cell: %w", err)
		}
		snap.Cells = append(snap.Cells, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating cells: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT scope, name, formula FROM snapshot_names
		WHERE snapshot_id = ?
		ORDER BY scope, name
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("failed to list names: %w", err)
	}
	for rows.Next() {
		var n engine.NameDefinition
		if err := rows.Scan(&n.Scope, &n.Name, &n.Formula); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan name: %w", err)
		}
		snap.Names = append(snap.Names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating names: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT name, sheet, area, header, totals, columns FROM snapshot_tables
		WHERE snapshot_id = ?
		ORDER BY name
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t engine.TableDefinition
		var columns string
		if err := rows.Scan(&t.Name, &t.Sheet, &t.Range, &t.Header, &t.Totals, &columns); err != nil {
			return fmt.Errorf("failed to scan table: %w", err)
		}
		if err := json.Unmarshal([]byte(columns), &t.Columns); err != nil {
			return fmt.Errorf("failed to decode columns of table %s: %w", t.Name, err)
		}
		snap.Tables = append(snap.Tables, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tables: %w", err)
	}
	return nil
}

// ListSnapshots lists snapshots with pagination, newest first
func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit, offset int) ([]*SnapshotInfo, error) {
	query := `
		SELECT s.id, s.workbook_id, s.label, s.locale, s.created_at,
		       (SELECT COUNT(*) FROM snapshot_cells c WHERE c.snapshot_id = s.id)
		FROM snapshots s
		ORDER BY s.created_at DESC, s.rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	infos := []*SnapshotInfo{}
	for rows.Next() {
		info := &SnapshotInfo{}
		err := rows.Scan(
			&info.ID,
			&info.WorkbookID,
			&info.Label,
			&info.Locale,
			&info.CreatedAt,
			&info.Cells,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return infos, nil
}

// DeleteSnapshot deletes a snapshot and its content by ID
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}

	return nil
}

// RecordPass appends the summary of a recalculation pass.
func (s *SQLiteStore) RecordPass(ctx context.Context, workbookID string, report *engine.Report) error {
	query := `
		INSERT INTO recalc_passes (
			workbook_id, pass_id, mode, dirty, evaluated, vm, tree,
			cycles, spills_blocked, duration_us, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		workbookID,
		report.PassID,
		report.Mode.String(),
		report.Dirty,
		report.Evaluated,
		report.VM,
		report.Tree,
		len(report.Cycles),
		len(report.SpillsBlocked),
		report.Duration.Microseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record pass: %w", err)
	}

	return nil
}

// ListPasses returns the most recent passes of a workbook, newest first.
func (s *SQLiteStore) ListPasses(ctx context.Context, workbookID string, limit int) ([]*PassRecord, error) {
	query := `
		SELECT id, workbook_id, pass_id, mode, dirty, evaluated, vm, tree,
		       cycles, spills_blocked, duration_us, created_at
		FROM recalc_passes
		WHERE workbook_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, workbookID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list passes: %w", err)
	}
	defer rows.Close()

	passes := []*PassRecord{}
	for rows.Next() {
		p := &PassRecord{}
		var micros int64
		err := rows.Scan(
			&p.ID,
			&p.WorkbookID,
			&p.PassID,
			&p.Mode,
			&p.Dirty,
			&p.Evaluated,
			&p.VM,
			&p.Tree,
			&p.Cycles,
			&p.SpillsBlocked,
			&micros,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		p.Duration = time.Duration(micros) * time.Microsecond
		passes = append(passes, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating passes: %w", err)
	}

	return passes, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
