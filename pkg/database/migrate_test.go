package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"002_folder_index.up.sql": {Data: []byte("CREATE INDEX images_folder_idx ON images (folder)")},
		"001_images.up.sql":       {Data: []byte("CREATE TABLE images (id UUID PRIMARY KEY)")},
		"001_images.down.sql":     {Data: []byte("DROP TABLE images")},
		"README.md":               {Data: []byte("docs")},
	}
}

func expectSetup(mock pgxmock.PgxPoolIface, applied ...string) {
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	rows := pgxmock.NewRows([]string{"version"})
	for _, v := range applied {
		rows.AddRow(v)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).WillReturnRows(rows)
}

func TestPendingFiles_SortedUpOnly(t *testing.T) {
	names, err := pendingFiles(testMigrations())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_images.up.sql", "002_folder_index.up.sql"}, names)
}

func TestRunMigrations_AppliesOnlyPending(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	expectSetup(mock, "001_images.up.sql")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX images_folder_idx ON images (folder)")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs("002_folder_index.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, testMigrations(), discardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_UpToDate(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	expectSetup(mock, "001_images.up.sql", "002_folder_index.up.sql")

	require.NoError(t, RunMigrations(context.Background(), mock, testMigrations(), discardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackWithoutRetry(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	files := fstest.MapFS{"001_bad.up.sql": {Data: []byte("CREAT TABLE x")}}
	expectSetup(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREAT TABLE x")).
		WillReturnError(&pgconn.PgError{Code: "42601", Message: `syntax error at or near "CREAT"`})
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, files, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_bad.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errStr("dial tcp 127.0.0.1:5432: connection refused"), true},
		{errStr("read: connection reset by peer"), true},
		{errStr("unexpected EOF"), true},
		{fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{errStr("duplicate key value violates unique constraint"), false},
		{&pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isConnectionError(tt.err), "%v", tt.err)
	}
}
