// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekcraft/geekcraft/internal/auth"
	"github.com/geekcraft/geekcraft/pkg/errutil"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)

	s := New(mock)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestStore_CreateUser(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantID    int64
		wantErr   error
		wantCode  string
	}{
		{
			name: "returns generated id",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "hash", fixedNow).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
			},
			wantID: 7,
		},
		{
			name: "unique violation maps to conflict",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "hash", fixedNow).
					WillReturnError(&pgconn.PgError{
						Code:           pgerrcode.UniqueViolation,
						ConstraintName: "users_username_key",
						Message:        "duplicate key value violates unique constraint",
					})
			},
			wantErr:  auth.ErrConflict,
			wantCode: auth.CodeConflict,
		},
		{
			name: "other errors are not conflicts",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "hash", fixedNow).
					WillReturnError(errors.New("connection reset"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setupMock(mock)

			user, err := s.CreateUser(context.Background(), "alice", "hash")

			switch {
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				errutil.AssertErrorCode(t, err, tt.wantCode)
			case tt.wantID == 0:
				require.Error(t, err)
				assert.NotErrorIs(t, err, auth.ErrConflict)
				assert.Contains(t, err.Error(), "connection reset")
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, user.ID)
				assert.Equal(t, "alice", user.Username)
				assert.Equal(t, fixedNow, user.CreatedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestStore_GetUserByUsername(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT id, username, password_hash, created_at\s+FROM users`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
				AddRow(int64(3), "alice", "hash", fixedNow))

		user, err := s.GetUserByUsername(context.Background(), "alice")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, int64(3), user.ID)
		assert.Equal(t, "hash", user.PasswordHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent returns nil without error", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT id, username, password_hash, created_at\s+FROM users`).
			WithArgs("ghost").
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "created_at"}))

		user, err := s.GetUserByUsername(context.Background(), "ghost")
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_CreateSession(t *testing.T) {
	expires := fixedNow.Add(24 * time.Hour)

	t.Run("inserts one row", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs("tok", int64(3), fixedNow, expires).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.CreateSession(context.Background(), "tok", 3, expires))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user inserts nothing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs("tok", int64(99), fixedNow, expires).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		err := s.CreateSession(context.Background(), "tok", 99, expires)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, auth.CodeNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("foreign key violation maps to not found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs("tok", int64(99), fixedNow, expires).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})

		err := s.CreateSession(context.Background(), "tok", 99, expires)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestStore_GetSession(t *testing.T) {
	cols := []string{"token", "user_id", "username", "created_at", "expires_at"}

	t.Run("live session", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT token, user_id, username, created_at, expires_at`).
			WithArgs("tok").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("tok", int64(3), "alice", fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour)))

		sess, err := s.GetSession(context.Background(), "tok")
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "alice", sess.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired session is deleted and hidden", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT token, user_id, username, created_at, expires_at`).
			WithArgs("tok").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("tok", int64(3), "alice", fixedNow.Add(-2*time.Hour), fixedNow.Add(-time.Hour)))
		mock.ExpectExec(`DELETE FROM sessions WHERE token = \$1 AND expires_at <= \$2`).
			WithArgs("tok", fixedNow).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		sess, err := s.GetSession(context.Background(), "tok")
		require.NoError(t, err)
		assert.Nil(t, sess)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("session expiring exactly now is hidden", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT token, user_id, username, created_at, expires_at`).
			WithArgs("tok").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("tok", int64(3), "alice", fixedNow.Add(-time.Hour), fixedNow))
		mock.ExpectExec(`DELETE FROM sessions`).
			WithArgs("tok", fixedNow).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		sess, err := s.GetSession(context.Background(), "tok")
		require.NoError(t, err)
		assert.Nil(t, sess)
	})

	t.Run("query failure propagates", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT token`).
			WithArgs("tok").
			WillReturnError(errors.New("connection refused"))

		sess, err := s.GetSession(context.Background(), "tok")
		require.Error(t, err)
		assert.Nil(t, sess)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestStore_DeleteSessions(t *testing.T) {
	t.Run("delete session ignores missing rows", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE token = \$1`).
			WithArgs("never-issued").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.NoError(t, s.DeleteSession(context.Background(), "never-issued"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete expired uses the clock", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= \$1`).
			WithArgs(fixedNow).
			WillReturnResult(pgxmock.NewResult("DELETE", 4))

		require.NoError(t, s.DeleteExpiredSessions(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete expired failure propagates", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at`).
			WithArgs(fixedNow).
			WillReturnError(errors.New("disk full"))

		err := s.DeleteExpiredSessions(context.Background())
		require.Error(t, err)
		errutil.AssertErrorContext(t, err, "operation", "delete expired sessions")
	})
}
