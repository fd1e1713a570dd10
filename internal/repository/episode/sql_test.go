package episode

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/cry-relay/internal/domain/episode"
)

var errTestOpen = errors.New("test open error")

// newTestStore returns a SQLite store in a temp directory.
func newTestStore(t *testing.T) *SQLStore {
	t.Helper()

	s, err := NewSQLStore(DriverSQLite, filepath.Join(t.TempDir(), "episodes.db"), "episodes", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

// record builds a record at the given UTC time.
func record(ts time.Time) domain.Record {
	return domain.NewRecord(ts, time.UTC)
}

// TestNewSQLStore_Validates rejects bad arguments without connecting.
func TestNewSQLStore_Validates(t *testing.T) {
	t.Parallel()

	_, err := NewSQLStore(DriverSQLite, "", "episodes", 0)
	require.ErrorIs(t, err, ErrDSNRequired)

	_, err = NewSQLStore(DriverSQLite, "x.db", "bad-name", 0)
	require.ErrorIs(t, err, ErrInvalidTable)

	_, err = NewSQLStore("postgres", "x", "episodes", 0)
	require.ErrorIs(t, err, ErrUnknownDriver)

	s, err := NewSQLStore(DriverMySQL, "user:pass@tcp(127.0.0.1:3306)/cry", "episodes", 0)
	require.NoError(t, err)
	require.Contains(t, s.queries.schema, "AUTO_INCREMENT")
	require.Nil(t, s.db, "connection must be lazy")
}

// TestValidators accepts the supported drivers and plain identifiers only.
func TestValidators(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateDriver(DriverSQLite))
	require.NoError(t, ValidateDriver(DriverMySQL))
	require.ErrorIs(t, ValidateDriver("postgres"), ErrUnknownDriver)
	require.ErrorIs(t, ValidateDriver(""), ErrUnknownDriver)

	require.NoError(t, ValidateTable("episodes"))
	require.NoError(t, ValidateTable("_cry_2026"))
	require.ErrorIs(t, ValidateTable("episodes; DROP TABLE x"), ErrInvalidTable)
	require.ErrorIs(t, ValidateTable("1st"), ErrInvalidTable)
}

// TestSQLiteDSN appends the connection pragmas the DSN does not set itself.
func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	const all = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	cases := map[string]struct {
		dsn  string
		want string
	}{
		"plain path": {
			dsn:  "/var/lib/cry/episodes.db",
			want: "/var/lib/cry/episodes.db?" + all,
		},
		"existing query": {
			dsn:  "file:episodes.db?mode=rwc",
			want: "file:episodes.db?mode=rwc&" + all,
		},
		"caller pragma wins": {
			dsn:  "episodes.db?_pragma=journal_mode(DELETE)",
			want: "episodes.db?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, sqliteDSN(tc.dsn))
		})
	}
}

// TestSQLStore_SQLitePragmas checks the pragmas are live on the connection.
func TestSQLStore_SQLitePragmas(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Append(ctx, record(time.Unix(1000, 0))))

	var busyTimeout int
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
	require.Equal(t, 5000, busyTimeout)

	var journalMode string
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)
}

// TestSQLStore_AppendQuery covers Append, ByDate and Last against SQLite.
func TestSQLStore_AppendQuery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	_, ok, err := s.Last(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	day := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	first := record(day)
	second := record(day.Add(2 * time.Hour))
	tomorrow := record(day.Add(24 * time.Hour))

	for _, r := range []domain.Record{first, second, tomorrow} {
		require.NoError(t, s.Append(ctx, r))
	}

	today, err := s.ByDate(ctx, "2026-03-14")
	require.NoError(t, err)
	require.Equal(t, []domain.Record{first, second}, today)

	none, err := s.ByDate(ctx, "2026-01-01")
	require.NoError(t, err)
	require.Empty(t, none)

	last, ok, err := s.Last(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tomorrow, last)
}

// TestSQLStore_ReconnectsAfterFailure closes the cached handle behind the
// store's back and checks the append is retried on a fresh connection.
func TestSQLStore_ReconnectsAfterFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Append(ctx, record(time.Unix(1000, 0))))

	broken := s.db
	require.NoError(t, broken.Close())

	require.NoError(t, s.Append(ctx, record(time.Unix(2000, 0))))
	require.NotSame(t, broken, s.db)

	last, ok, err := s.Last(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Unix(2000, 0).UTC(), last.At)
}

// TestSQLStore_RetriesOnce counts connection attempts when every open fails.
func TestSQLStore_RetriesOnce(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	attempts := 0
	s.open = func(context.Context) (*sql.DB, error) {
		attempts++

		return nil, errTestOpen
	}

	err := s.Append(context.Background(), record(time.Unix(1000, 0)))
	require.ErrorIs(t, err, errTestOpen)
	require.Equal(t, 2, attempts)
}

// TestSQLStore_RetrySucceeds recovers when only the first connection attempt fails.
func TestSQLStore_RetrySucceeds(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	realOpen := s.open

	attempts := 0
	s.open = func(ctx context.Context) (*sql.DB, error) {
		attempts++
		if attempts == 1 {
			return nil, errTestOpen
		}

		return realOpen(ctx)
	}

	require.NoError(t, s.Append(context.Background(), record(time.Unix(1000, 0))))
	require.Equal(t, 2, attempts)
}

// TestSQLStore_ReadsDoNotRetry checks queries fail fast and leave no cached handle.
func TestSQLStore_ReadsDoNotRetry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	attempts := 0
	s.open = func(context.Context) (*sql.DB, error) {
		attempts++

		return nil, errTestOpen
	}

	_, err := s.ByDate(context.Background(), "2026-03-14")
	require.ErrorIs(t, err, errTestOpen)

	_, _, err = s.Last(context.Background())
	require.ErrorIs(t, err, errTestOpen)

	require.Equal(t, 2, attempts)
	require.Nil(t, s.db)
}

// TestNop reports the store as disabled.
func TestNop(t *testing.T) {
	t.Parallel()

	var s Store = Nop{}

	require.ErrorIs(t, s.Append(context.Background(), domain.Record{}), ErrStoreDisabled)

	_, err := s.ByDate(context.Background(), "2026-03-14")
	require.ErrorIs(t, err, ErrStoreDisabled)

	_, ok, err := s.Last(context.Background())
	require.ErrorIs(t, err, ErrStoreDisabled)
	require.False(t, ok)
}
