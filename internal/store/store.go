// Package store persists JobRecords in a relational database, keyed by
// (source, source_id).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/amishk599/harvester/internal/model"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// JobStore upserts records. inserted is false when an existing row was updated.
type JobStore interface {
	Upsert(ctx context.Context, rec *model.JobRecord) (inserted bool, err error)
	Close() error
}

// SQLStore is a JobStore over PostgreSQL or SQLite.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	now    func() time.Time
}

// Open connects to the database and verifies the connection is alive.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s db: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time avoids SQLITE_BUSY between adapters
		db.SetMaxOpenConns(1)
	}
	return NewSQLStore(db), nil
}

// NewSQLStore wraps an existing connection. The dialect comes from db.DriverName().
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, driver: db.DriverName(), now: func() time.Time { return time.Now().UTC() }}
}

// jobRow is the column mapping of the jobs table.
type jobRow struct {
	Title          string     `db:"title"`
	CompanyName    string     `db:"company_name"`
	Location       *string    `db:"location"`
	City           *string    `db:"city"`
	Province       *string    `db:"province"`
	Country        *string    `db:"country"`
	Latitude       *float64   `db:"latitude"`
	Longitude      *float64   `db:"longitude"`
	Industry       *string    `db:"industry"`
	JobType        string     `db:"job_type"`
	SalaryMin      *int       `db:"salary_min"`
	SalaryMax      *int       `db:"salary_max"`
	SalaryCurrency *string    `db:"salary_currency"`
	SalaryPeriod   *string    `db:"salary_period"`
	Description    *string    `db:"description"`
	Requirements   *string    `db:"requirements"`
	IsRemote       bool       `db:"is_remote"`
	IsFlyInFlyOut  bool       `db:"is_fly_in_fly_out"`
	Source         string     `db:"source"`
	SourceID       string     `db:"source_id"`
	SourceURL      string     `db:"source_url"`
	Fingerprint    *string    `db:"fingerprint"`
	PostedAt       *time.Time `db:"posted_at"`
	ExpiresAt      *time.Time `db:"expires_at"`
	ScrapedAt      time.Time  `db:"scraped_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func toRow(rec *model.JobRecord, now time.Time) jobRow {
	row := jobRow{
		Title:          rec.Title,
		CompanyName:    rec.CompanyName,
		Location:       nullable(rec.Location),
		City:           nullable(rec.City),
		Province:       nullable(rec.Province),
		Country:        nullable(rec.Country),
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
		Industry:       nullable(string(rec.Industry)),
		JobType:        string(rec.JobType),
		SalaryMin:      rec.SalaryMin,
		SalaryMax:      rec.SalaryMax,
		SalaryCurrency: nullable(rec.SalaryCurrency),
		SalaryPeriod:   nullable(string(rec.SalaryPeriod)),
		Description:    nullable(rec.Description),
		Requirements:   nullable(rec.Requirements),
		IsRemote:       rec.IsRemote,
		IsFlyInFlyOut:  rec.IsFlyInFlyOut,
		Source:         rec.Source,
		SourceID:       rec.SourceID,
		SourceURL:      rec.SourceURL,
		PostedAt:       rec.PostedAt,
		ExpiresAt:      rec.ExpiresAt,
		ScrapedAt:      rec.ScrapedAt,
		UpdatedAt:      now,
	}
	if row.JobType == "" {
		row.JobType = string(model.JobTypeFullTime)
	}
	if rec.HasFingerprint {
		fp := fmt.Sprintf("%016x", rec.Fingerprint)
		row.Fingerprint = &fp
	}
	return row
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// upsertSQL only refreshes the mutable columns on conflict; identity and
// locally managed columns such as company_id are left alone.
const upsertSQL = `INSERT INTO jobs (
	title, company_name, location, city, province, country,
	latitude, longitude, industry, job_type,
	salary_min, salary_max, salary_currency, salary_period,
	description, requirements, is_remote, is_fly_in_fly_out,
	source, source_url, source_id, fingerprint,
	posted_at, expires_at, scraped_at, updated_at
) VALUES (
	:title, :company_name, :location, :city, :province, :country,
	:latitude, :longitude, :industry, :job_type,
	:salary_min, :salary_max, :salary_currency, :salary_period,
	:description, :requirements, :is_remote, :is_fly_in_fly_out,
	:source, :source_url, :source_id, :fingerprint,
	:posted_at, :expires_at, :scraped_at, :updated_at
)
ON CONFLICT (source, source_id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	salary_min = EXCLUDED.salary_min,
	salary_max = EXCLUDED.salary_max,
	scraped_at = EXCLUDED.scraped_at,
	updated_at = EXCLUDED.updated_at`

// Upsert inserts rec or refreshes the existing row with the same
// (source, source_id).
func (s *SQLStore) Upsert(ctx context.Context, rec *model.JobRecord) (bool, error) {
	row := toRow(rec, s.now())
	if s.driver == DriverPostgres {
		return s.upsertPostgres(ctx, row)
	}
	return s.upsertSQLite(ctx, row)
}

// upsertPostgres learns whether the row is new from xmax, which is zero
// only for freshly inserted tuples.
func (s *SQLStore) upsertPostgres(ctx context.Context, row jobRow) (bool, error) {
	rows, err := s.db.NamedQueryContext(ctx, upsertSQL+"\nRETURNING (xmax = 0) AS inserted", row)
	if err != nil {
		return false, fmt.Errorf("upserting %s/%s: %w", row.Source, row.SourceID, err)
	}
	defer rows.Close()

	var inserted bool
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, fmt.Errorf("upserting %s/%s: %w", row.Source, row.SourceID, err)
		}
		return false, fmt.Errorf("upserting %s/%s: no row returned", row.Source, row.SourceID)
	}
	if err := rows.Scan(&inserted); err != nil {
		return false, fmt.Errorf("reading upsert result for %s/%s: %w", row.Source, row.SourceID, err)
	}
	return inserted, rows.Err()
}

func (s *SQLStore) upsertSQLite(ctx context.Context, row jobRow) (inserted bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upsert for %s/%s: %w", row.Source, row.SourceID, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var exists int
	err = tx.GetContext(ctx, &exists, "SELECT 1 FROM jobs WHERE source = ? AND source_id = ?", row.Source, row.SourceID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		inserted = true
	case err != nil:
		return false, fmt.Errorf("checking %s/%s: %w", row.Source, row.SourceID, err)
	}

	if _, err = tx.NamedExecContext(ctx, upsertSQL, row); err != nil {
		return false, fmt.Errorf("upserting %s/%s: %w", row.Source, row.SourceID, err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upsert for %s/%s: %w", row.Source, row.SourceID, err)
	}
	return inserted, nil
}

// StoredJob is the subset of a stored row read back by Get.
type StoredJob struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	CompanyName string    `db:"company_name"`
	CompanyID   *string   `db:"company_id"`
	Description *string   `db:"description"`
	SalaryMin   *int      `db:"salary_min"`
	SalaryMax   *int      `db:"salary_max"`
	Source      string    `db:"source"`
	SourceID    string    `db:"source_id"`
	ScrapedAt   time.Time `db:"scraped_at"`
}

// Get reads one row by its natural key.
func (s *SQLStore) Get(ctx context.Context, source, sourceID string) (*StoredJob, error) {
	var job StoredJob
	q := s.db.Rebind(`SELECT id, title, company_name, company_id, description, salary_min, salary_max,
		source, source_id, scraped_at FROM jobs WHERE source = ? AND source_id = ?`)
	if err := s.db.GetContext(ctx, &job, q, source, sourceID); err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", source, sourceID, err)
	}
	return &job, nil
}

// Count returns the number of stored rows.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM jobs"); err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
