package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStore = "STLPoliceCalls"

func newMockDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewWithPool(mock, "postgres://localhost/calls"), mock
}

func expectHeader(mock pgxmock.PgxPoolIface, header []byte) {
	mock.ExpectQuery(`SELECT header FROM call_stores WHERE name = \$1`).
		WithArgs(testStore).
		WillReturnRows(pgxmock.NewRows([]string{"header"}).AddRow(header))
}

func TestDB_Authorize(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectPing()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS call_stores`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, db.Authorize(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_AuthorizePingFails(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("password authentication failed"))

	err := db.Authorize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password authentication failed")
}

func TestDB_OpenOrCreate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`INSERT INTO call_stores \(name\) VALUES \(\$1\) ON CONFLICT`).
		WithArgs(testStore).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO call_stores`).
		WithArgs(testStore).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	_, h, err := db.OpenOrCreate(context.Background(), testStore)
	require.NoError(t, err)
	assert.True(t, h.Created)
	assert.Equal(t, "postgres://localhost/calls#"+testStore, h.Location)

	_, h, err = db.OpenOrCreate(context.Background(), testStore)
	require.NoError(t, err)
	assert.False(t, h.Created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReadAllEmpty(t *testing.T) {
	_, mock := newMockDB(t)
	s := &Store{pool: mock, name: testStore}

	expectHeader(mock, nil)

	table, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, table.Header)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReadAllRows(t *testing.T) {
	_, mock := newMockDB(t)
	s := &Store{pool: mock, name: testStore}

	expectHeader(mock, []byte(`["Event","Address"]`))
	mock.ExpectQuery(`SELECT cells FROM call_rows WHERE store = \$1 ORDER BY seq`).
		WithArgs(testStore).
		WillReturnRows(pgxmock.NewRows([]string{"cells"}).
			AddRow([]byte(`["25-1","3700 GRAND"]`)).
			AddRow([]byte(`["25-2","3300 ARSENAL"]`)))

	table, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Event", "Address"}, table.Header)
	assert.Equal(t, []map[string]string{
		{"Event": "25-1", "Address": "3700 GRAND"},
		{"Event": "25-2", "Address": "3300 ARSENAL"},
	}, table.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendHeaderThenRow(t *testing.T) {
	_, mock := newMockDB(t)
	s := &Store{pool: mock, name: testStore}
	ctx := context.Background()

	expectHeader(mock, nil)
	mock.ExpectExec(`UPDATE call_stores SET header = \$1 WHERE name = \$2`).
		WithArgs([]byte(`["Event","Address"]`), testStore).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO call_rows`).
		WithArgs(testStore, "25-1", []byte(`["25-1","3700 GRAND"]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.AppendRow(ctx, []string{"Event", "Address"}))
	require.NoError(t, s.AppendRow(ctx, []string{"25-1", "3700 GRAND"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendDuplicate(t *testing.T) {
	_, mock := newMockDB(t)
	s := &Store{pool: mock, name: testStore, header: []string{"Event"}, loaded: true}

	mock.ExpectExec(`INSERT INTO call_rows`).
		WithArgs(testStore, "25-1", []byte(`["25-1"]`)).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, Message: "duplicate key"})

	err := s.AppendRow(context.Background(), []string{"25-1"})
	assert.ErrorIs(t, err, ingest.ErrDuplicateRow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendFailure(t *testing.T) {
	_, mock := newMockDB(t)
	s := &Store{pool: mock, name: testStore, header: []string{"Event"}, loaded: true}

	mock.ExpectExec(`INSERT INTO call_rows`).
		WithArgs(testStore, "25-1", []byte(`["25-1"]`)).
		WillReturnError(errors.New("connection reset"))

	err := s.AppendRow(context.Background(), []string{"25-1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ingest.ErrDuplicateRow)
	assert.Contains(t, err.Error(), "connection reset")
}
