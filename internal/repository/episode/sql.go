package episode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	// Registers the "mysql" database/sql driver.
	_ "github.com/go-sql-driver/mysql"
	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	domain "github.com/oshokin/cry-relay/internal/domain/episode"
	"github.com/oshokin/cry-relay/internal/logger"
)

const (
	// DriverSQLite selects modernc.org/sqlite.
	DriverSQLite = "sqlite"
	// DriverMySQL selects github.com/go-sql-driver/mysql.
	DriverMySQL = "mysql"
)

var (
	// ErrUnknownDriver is returned for drivers other than sqlite and mysql.
	ErrUnknownDriver = errors.New("unknown store driver")
	// ErrInvalidTable is returned when the table name is not a plain identifier.
	ErrInvalidTable = errors.New("invalid table name")
	// ErrDSNRequired is returned when no data source is given.
	ErrDSNRequired = errors.New("store dsn must be provided")

	// tablePattern matches identifiers safe to splice into SQL.
	tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	// sqlitePragmas are applied to every SQLite connection unless the DSN sets them.
	// busy_timeout keeps readers from failing with SQLITE_BUSY while the worker writes.
	sqlitePragmas = []struct {
		name  string
		value string
	}{
		{name: "busy_timeout", value: "5000"},
		{name: "journal_mode", value: "WAL"},
		{name: "synchronous", value: "NORMAL"},
	}
)

// ValidateDriver reports ErrUnknownDriver for anything but DriverSQLite and DriverMySQL.
func ValidateDriver(driver string) error {
	switch driver {
	case DriverSQLite, DriverMySQL:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// ValidateTable reports ErrInvalidTable unless table is a plain SQL identifier.
func ValidateTable(table string) error {
	if !tablePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}

	return nil
}

// opener establishes a ready-to-use database handle.
type opener func(ctx context.Context) (*sql.DB, error)

// SQLStore persists episode records in a SQL table.
type SQLStore struct {
	// open connects and prepares the schema.
	open opener
	// queries holds the dialect-specific statements.
	queries queries
	// timeout bounds a single operation.
	timeout time.Duration

	// db is the cached handle, nil until first use or after a failure.
	db *sql.DB
	// mu protects db.
	mu sync.Mutex
}

// queries are the statements for one table and dialect.
type queries struct {
	schema string
	insert string
	byDate string
	last   string
}

// NewSQLStore returns a store for driver and dsn writing to table.
// No connection is made until the first operation.
func NewSQLStore(driver, dsn, table string, timeout time.Duration) (*SQLStore, error) {
	if dsn == "" {
		return nil, ErrDSNRequired
	}

	if err := ValidateTable(table); err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	q, err := buildQueries(driver, table)
	if err != nil {
		return nil, err
	}

	s := &SQLStore{
		queries: q,
		timeout: timeout,
	}

	s.open = func(ctx context.Context) (*sql.DB, error) {
		return connect(ctx, driver, dsn, q.schema)
	}

	return s, nil
}

// buildQueries renders the statements for driver.
func buildQueries(driver, table string) (queries, error) {
	if err := ValidateDriver(driver); err != nil {
		return queries{}, err
	}

	var schema string

	switch driver {
	case DriverSQLite:
		schema = `CREATE TABLE IF NOT EXISTS ` + table + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`
	case DriverMySQL:
		schema = `CREATE TABLE IF NOT EXISTS ` + table + ` (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			date CHAR(10) NOT NULL,
			time CHAR(8) NOT NULL,
			created_at BIGINT NOT NULL,
			INDEX idx_` + table + `_date (date)
		)`
	}

	return queries{
		schema: schema,
		insert: `INSERT INTO ` + table + ` (date, time, created_at) VALUES (?, ?, ?)`,
		byDate: `SELECT date, time, created_at FROM ` + table + ` WHERE date = ? ORDER BY id`,
		last:   `SELECT date, time, created_at FROM ` + table + ` ORDER BY id DESC LIMIT 1`,
	}, nil
}

// sqliteDSN appends the connection pragmas that dsn does not already set,
// using the modernc.org/sqlite _pragma parameter syntax.
func sqliteDSN(dsn string) string {
	var b strings.Builder

	b.WriteString(dsn)

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	for _, p := range sqlitePragmas {
		if strings.Contains(dsn, p.name) {
			continue
		}

		b.WriteString(sep + "_pragma=" + p.name + "(" + p.value + ")")
		sep = "&"
	}

	return b.String()
}

// connect opens driver/dsn, pings it and creates the table if needed.
func connect(ctx context.Context, driver, dsn, schema string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create table: %w", err)
	}

	return db, nil
}

// Append writes record, reconnecting and retrying once on failure.
func (s *SQLStore) Append(ctx context.Context, record domain.Record) error {
	err := s.append(ctx, record)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return err
	}

	logger.WarnKV(ctx, "Episode append failed, retrying", "error", err)

	if err = s.append(ctx, record); err != nil {
		return fmt.Errorf("append episode after retry: %w", err)
	}

	return nil
}

func (s *SQLStore) append(ctx context.Context, record domain.Record) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	db, err := s.conn(opCtx)
	if err != nil {
		return err
	}

	if _, err = db.ExecContext(opCtx, s.queries.insert, record.Date, record.Time, record.At.UTC().UnixMilli()); err != nil {
		s.invalidate(db)

		return fmt.Errorf("insert episode: %w", err)
	}

	return nil
}

// ByDate returns the records stamped with date.
func (s *SQLStore) ByDate(ctx context.Context, date string) ([]domain.Record, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	db, err := s.conn(opCtx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(opCtx, s.queries.byDate, date)
	if err != nil {
		s.invalidate(db)

		return nil, fmt.Errorf("query episodes: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var records []domain.Record

	for rows.Next() {
		record, scanErr := scanRecord(rows)
		if scanErr != nil {
			s.invalidate(db)

			return nil, scanErr
		}

		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		s.invalidate(db)

		return nil, fmt.Errorf("iterate episodes: %w", err)
	}

	return records, nil
}

// Last returns the most recently appended record.
func (s *SQLStore) Last(ctx context.Context) (domain.Record, bool, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	db, err := s.conn(opCtx)
	if err != nil {
		return domain.Record{}, false, err
	}

	record, err := scanRecord(db.QueryRowContext(opCtx, s.queries.last))

	switch {
	case err == nil:
		return record, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return domain.Record{}, false, nil
	default:
		s.invalidate(db)

		return domain.Record{}, false, err
	}
}

// Close releases the cached handle.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	return err
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.Record, error) {
	var (
		record    domain.Record
		createdAt int64
	)

	if err := row.Scan(&record.Date, &record.Time, &createdAt); err != nil {
		return domain.Record{}, fmt.Errorf("scan episode: %w", err)
	}

	record.At = time.UnixMilli(createdAt).UTC()

	return record, nil
}

// conn returns the cached handle, establishing it if needed.
func (s *SQLStore) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	s.db = db

	return db, nil
}

// invalidate drops db if it is still the cached handle, forcing a reconnect next time.
func (s *SQLStore) invalidate(db *sql.DB) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != db {
		return
	}

	_ = s.db.Close()
	s.db = nil
}

// opContext applies the per-operation timeout.
func (s *SQLStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.timeout)
}
