package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB, mock
}

var eventRowColumns = []string{"id", "host_id", "title", "capacity_limit", "attending_count", "is_private", "created_at"}

func TestEventRepository_GetByID(t *testing.T) {
	sqlDB, mock := newMock(t)
	repo := NewPostgresEventRepository(sqlDB)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + eventColumns + ` FROM events WHERE id = $1`)).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows(eventRowColumns).AddRow(42, 7, "Rooftop", nil, nil, true, created))

	event, err := repo.GetByID(context.Background(), nil, 42)
	require.NoError(t, err)
	assert.Equal(t, 7, event.HostID)
	assert.Nil(t, event.CapacityLimit)
	assert.Nil(t, event.AttendingCount)
	assert.Equal(t, 0, event.Attending())
	assert.True(t, event.IsPrivate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_GetForUpdate_NotFound(t *testing.T) {
	sqlDB, mock := newMock(t)
	repo := NewPostgresEventRepository(sqlDB)

	mock.ExpectQuery(`FROM events WHERE id = \$1 FOR UPDATE`).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetForUpdate(context.Background(), nil, 1)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventRepository_AdjustAttendingCount_Increment(t *testing.T) {
	sqlDB, mock := newMock(t)
	repo := NewPostgresEventRepository(sqlDB)

	mock.ExpectExec(`UPDATE events\s+SET attending_count = COALESCE\(attending_count, 0\) \+ \$2\s+WHERE id = \$1\s+AND \(capacity_limit IS NULL OR COALESCE\(attending_count, 0\) \+ \$2 <= capacity_limit\)`).
		WithArgs(5, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AdjustAttendingCount(context.Background(), nil, 5, 10))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_AdjustAttendingCount_Full(t *testing.T) {
	sqlDB, mock := newMock(t)
	repo := NewPostgresEventRepository(sqlDB)

	mock.ExpectExec(`UPDATE events`).
		WithArgs(5, 10).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AdjustAttendingCount(context.Background(), nil, 5, 10)
	assert.ErrorIs(t, err, ErrEventCapacityReached)
}

func TestEventRepository_AdjustAttendingCount_Decrement(t *testing.T) {
	sqlDB, mock := newMock(t)
	repo := NewPostgresEventRepository(sqlDB)

	mock.ExpectExec(`SET attending_count = GREATEST\(COALESCE\(attending_count, 0\) \+ \$2, 0\)`).
		WithArgs(5, -3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AdjustAttendingCount(context.Background(), nil, 5, -3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_AdjustAttendingCount_ZeroIsNoop(t *testing.T) {
	sqlDB, mock := newMock(t)
	repo := NewPostgresEventRepository(sqlDB)

	require.NoError(t, repo.AdjustAttendingCount(context.Background(), nil, 5, 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTransactor_CommitAndRollback(t *testing.T) {
	sqlDB, mock := newMock(t)
	tx := NewSQLTransactor(sqlDB, nil)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tx.WithinTx(context.Background(), func(exec SQLExecutor) error {
		_, err := exec.ExecContext(context.Background(), "UPDATE events SET title = 'x'")
		return err
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = tx.WithinTx(context.Background(), func(exec SQLExecutor) error {
		return ErrEventCapacityReached
	})
	assert.ErrorIs(t, err, ErrEventCapacityReached)
	assert.NoError(t, mock.ExpectationsWereMet())
}
