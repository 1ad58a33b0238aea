package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/ports"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var decisionColumns = []string{
	"application_number",
	"decision",
	"week_label",
	"start_date",
	"end_date",
	"source_filename",
	"ingested_at",
}

// SQLStore persists decisions, settings and processed documents.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var (
	_ ports.DecisionStore = (*SQLStore)(nil)
	_ ports.SettingsStore = (*SQLStore)(nil)
	_ ports.DocumentLog   = (*SQLStore)(nil)
)

// Open migrates the schema and connects. For sqlite3 the dsn is a file path.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var placeholders sq.PlaceholderFormat
	switch driver {
	case DriverSQLite:
		placeholders = sq.Question
	case DriverPostgres:
		placeholders = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	if err := runMigrations(driver, dsn); err != nil {
		return nil, err
	}

	openDSN := dsn
	if driver == DriverSQLite {
		openDSN = dsn + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open(driver, openDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholders),
	}, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func runMigrations(driver, dsn string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	url := dsn
	if driver == DriverSQLite {
		url = "sqlite3://" + dsn
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// InsertIgnore inserts records in one transaction; rows colliding with an
// existing (application, week) pair are skipped.
func (s *SQLStore) InsertIgnore(ctx context.Context, records []domain.DecisionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, r := range records {
		query, args, err := s.builder.
			Insert("decisions").
			Columns(append([]string{"application_key"}, decisionColumns...)...).
			Values(
				applicationKey(r.ApplicationNumber),
				r.ApplicationNumber,
				r.Decision,
				r.WeekLabel,
				r.StartDate.Format(dateLayout),
				r.EndDate.Format(dateLayout),
				r.SourceFilename,
				r.IngestedAt.UTC().Format(timestampLayout),
			).
			Suffix("ON CONFLICT DO NOTHING").
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", r.ApplicationNumber, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit merge: %w", err)
	}
	return inserted, nil
}

// AllRecords returns every decision ordered by week end date.
func (s *SQLStore) AllRecords(ctx context.Context) ([]domain.DecisionRecord, error) {
	return s.queryRecords(ctx, s.builder.
		Select(decisionColumns...).
		From("decisions").
		OrderBy("end_date", "application_number"))
}

// Lookup finds an application number across weeks, ignoring case.
func (s *SQLStore) Lookup(ctx context.Context, applicationNumber string) ([]domain.DecisionRecord, error) {
	return s.queryRecords(ctx, s.builder.
		Select(decisionColumns...).
		From("decisions").
		Where(sq.Eq{"application_key": applicationKey(applicationNumber)}).
		OrderBy("end_date"))
}

// CountRecords returns the number of stored decisions.
func (s *SQLStore) CountRecords(ctx context.Context) (int, error) {
	query, args, err := s.builder.Select("COUNT(*)").From("decisions").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}

func (s *SQLStore) queryRecords(ctx context.Context, b sq.SelectBuilder) ([]domain.DecisionRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}

	var result []domain.DecisionRecord
	for rows.Next() {
		var (
			r                    domain.DecisionRecord
			start, end, ingested string
		)
		if err := rows.Scan(&r.ApplicationNumber, &r.Decision, &r.WeekLabel, &start, &end, &r.SourceFilename, &ingested); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if r.StartDate, err = time.Parse(dateLayout, start); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("parse start_date %q: %w", start, err)
		}
		if r.EndDate, err = time.Parse(dateLayout, end); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("parse end_date %q: %w", end, err)
		}
		if r.IngestedAt, err = time.Parse(timestampLayout, ingested); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("parse ingested_at %q: %w", ingested, err)
		}
		result = append(result, r)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func applicationKey(applicationNumber string) string {
	return strings.ToLower(strings.TrimSpace(applicationNumber))
}
