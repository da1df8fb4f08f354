package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/Spok95/iteach/internal/domain/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissingRowIsIdle(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT state, payload FROM dialog_states WHERE chat_id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	it, err := NewRepo(mock).Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, it.State)
	assert.Empty(t, it.Payload)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDecodesPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT state, payload FROM dialog_states`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"state", "payload"}).
			AddRow(string(StateAwaitPurgeAccept), []byte(`{"names":["Ada Lovelace","Alan Turing"]}`)))

	it, err := NewRepo(mock).Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitPurgeAccept, it.State)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, GetStrings(it.Payload, "names"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStorageFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT state, payload FROM dialog_states`).
		WithArgs(int64(7)).
		WillReturnError(errors.New("connection reset"))

	_, err = NewRepo(mock).Get(context.Background(), 7)
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
}

func TestSetAndReset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO dialog_states`).
		WithArgs(int64(7), string(StateAwaitImportFile), []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM dialog_states WHERE chat_id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	r := NewRepo(mock)
	require.NoError(t, r.Set(context.Background(), 7, StateAwaitImportFile, nil))
	require.NoError(t, r.Reset(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStrings(t *testing.T) {
	assert.Equal(t, []string{"a"}, GetStrings(Payload{"k": []string{"a"}}, "k"))
	assert.Equal(t, []string{"a"}, GetStrings(Payload{"k": []any{"a", 1}}, "k"))
	assert.Nil(t, GetStrings(Payload{}, "k"))
}
