package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB), mock
}

func TestWithTxCommits(t *testing.T) {
	database, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM cart").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := database.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM cart WHERE user_id = ?", 1)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	database, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("stop")
	err := database.WithTx(context.Background(), func(*sql.Tx) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	database, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = database.WithTx(context.Background(), func(*sql.Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxReportsBeginAndCommitFailures(t *testing.T) {
	database, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := database.WithTx(context.Background(), func(*sql.Tx) error { return nil })
	assert.ErrorContains(t, err, "failed to begin transaction")

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("lost connection"))
	err = database.WithTx(context.Background(), func(*sql.Tx) error { return nil })
	assert.ErrorContains(t, err, "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}
