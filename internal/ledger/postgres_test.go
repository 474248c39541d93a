package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payrelay/internal/types"
)

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

func TestPostgresSeen_Exists(t *testing.T) {
	db := new(mockDBTX)
	db.On("QueryRow", mock.Anything, mock.Anything, []any{"exchange", "tx-1"}).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*(dest[0].(*bool)) = true
			return nil
		}})

	seen, err := NewPostgres(db).Seen(context.Background(), "exchange", "tx-1")
	require.NoError(t, err)
	assert.True(t, seen)
	db.AssertExpectations(t)
}

func TestPostgresSeen_QueryError(t *testing.T) {
	db := new(mockDBTX)
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	_, err := NewPostgres(db).Seen(context.Background(), "exchange", "tx-1")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalLedger, appErr.Code)
}

func TestPostgresMark(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.Anything, []any{"exchange", "tx-1"}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := NewPostgres(db).Mark(context.Background(), "exchange", "tx-1")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPostgresMark_ExecError(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Return(pgconn.NewCommandTag(""), errors.New("duplicate key"))

	err := NewPostgres(db).Mark(context.Background(), "exchange", "tx-1")
	require.Error(t, err)
}

func TestPostgresPrune(t *testing.T) {
	cutoff := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.Anything, []any{cutoff}).
		Return(pgconn.NewCommandTag("DELETE 3"), nil)

	removed, err := NewPostgres(db).Prune(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	db.AssertExpectations(t)
}
