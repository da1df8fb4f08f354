package users

import (
	"context"
	"testing"
	"time"

	"github.com/Spok95/iteach/internal/domain/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileColumns = []string{"id", "email", "first_name", "last_name", "role", "subject", "level", "interests", "created_at", "updated_at"}

func newMock(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepo(mock), mock
}

func TestGet(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(profileColumns).
			AddRow("u1", "a@b.fr", "Marie", "Curie", "", "physique", "lycée", []string(nil), now, now))

	p, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, p.Role)
	assert.Equal(t, []string{}, p.Interests)
	assert.True(t, p.Complete())
	assert.Equal(t, "Marie Curie", p.DisplayName())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissing(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`FROM users`).WithArgs("nobody").WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpsert(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users .+ ON CONFLICT \(id\)`).
		WithArgs("u1", "", "Marie", "Curie", "teacher", "physique", "lycée", []string{"espace"}).
		WillReturnRows(pgxmock.NewRows(profileColumns).
			AddRow("u1", "a@b.fr", "Marie", "Curie", "teacher", "physique", "lycée", []string{"espace"}, now, now))

	p, err := repo.Upsert(context.Background(), Profile{
		ID: "u1", FirstName: " Marie ", LastName: "Curie", Subject: "physique", Level: "lycée", Interests: []string{"espace"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a@b.fr", p.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRequiresID(t *testing.T) {
	repo, _ := newMock(t)
	_, err := repo.Upsert(context.Background(), Profile{FirstName: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestCounts(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "teachers"}).AddRow(10, 7))

	c, err := repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{Users: 10, Teachers: 7, Students: 3}, c)
}

func TestIncompleteProfile(t *testing.T) {
	var nilProfile *Profile
	assert.False(t, nilProfile.Complete())
	assert.False(t, (&Profile{FirstName: "Marie", LastName: "  "}).Complete())
}
