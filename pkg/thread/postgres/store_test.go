package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calibot/assistant-relay/pkg/thread"
)

const (
	pgTestUser   = thread.UserID("user-123")
	pgTestThread = thread.ID("thread-abc")
)

func TestUpsert_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db)

	mock.ExpectExec("INSERT INTO user_threads").
		WithArgs(string(pgTestUser), string(pgTestThread)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Upsert(context.Background(), pgTestUser, pgTestThread)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db)

	mock.ExpectExec("INSERT INTO user_threads").
		WillReturnError(errors.New("connection reset"))

	err = store.Upsert(context.Background(), pgTestUser, pgTestThread)
	assert.Error(t, err)
}

func TestGet_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db)

	mock.ExpectQuery("SELECT thread_id FROM user_threads").
		WithArgs(string(pgTestUser)).
		WillReturnRows(sqlmock.NewRows([]string{"thread_id"}).AddRow(string(pgTestThread)))

	got, err := store.Get(context.Background(), pgTestUser)
	require.NoError(t, err)
	assert.Equal(t, pgTestThread, got)
}

func TestGet_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db)

	mock.ExpectQuery("SELECT thread_id FROM user_threads").
		WithArgs(string(pgTestUser)).
		WillReturnRows(sqlmock.NewRows([]string{"thread_id"}))

	_, err = store.Get(context.Background(), pgTestUser)
	assert.ErrorIs(t, err, thread.ErrNotFound)
}

func TestGet_DBErrorIsNotNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db)

	mock.ExpectQuery("SELECT thread_id FROM user_threads").
		WillReturnError(errors.New("connection refused"))

	_, err = store.Get(context.Background(), pgTestUser)
	require.Error(t, err)
	assert.NotErrorIs(t, err, thread.ErrNotFound,
		"a store failure must never read as an empty session")
}

func TestListStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db)

	mock.ExpectQuery("SELECT user_id FROM user_threads").
		WithArgs("86400 seconds").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).
			AddRow("idle-1").
			AddRow("idle-2"))

	stale, err := store.ListStale(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []thread.UserID{"idle-1", "idle-2"}, stale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStale_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db)

	mock.ExpectQuery("SELECT user_id FROM user_threads").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	stale, err := store.ListStale(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
