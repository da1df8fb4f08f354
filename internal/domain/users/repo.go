package users

import (
	"context"
	"errors"
	"strings"

	"github.com/Spok95/iteach/internal/domain/apperr"
	"github.com/Spok95/iteach/internal/infra/db"
	"github.com/jackc/pgx/v5"
)

type Repo struct {
	pool db.Pool
}

func NewRepo(pool db.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Get(ctx context.Context, id string) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, role, subject, level, interests, created_at, updated_at
		FROM users WHERE id = $1
	`, id)

	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage("users.get", err)
	}
	return p, nil
}

// Upsert сохраняет анкету. Пустой email не затирает уже сохранённый.
func (r *Repo) Upsert(ctx context.Context, p Profile) (*Profile, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, apperr.Invalid("empty user id")
	}
	normalize(&p)
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, subject, level, interests)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id)
		DO UPDATE SET
			email      = CASE WHEN EXCLUDED.email = '' THEN users.email ELSE EXCLUDED.email END,
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name,
			role       = EXCLUDED.role,
			subject    = EXCLUDED.subject,
			level      = EXCLUDED.level,
			interests  = EXCLUDED.interests,
			updated_at = now()
		RETURNING id, email, first_name, last_name, role, subject, level, interests, created_at, updated_at
	`, p.ID, p.Email, strings.TrimSpace(p.FirstName), strings.TrimSpace(p.LastName),
		string(p.Role), p.Subject, p.Level, p.Interests)

	out, err := scanProfile(row)
	if err != nil {
		return nil, apperr.Storage("users.upsert", err)
	}
	return out, nil
}

// ListWithExercises — все пользователи с числом их упражнений.
func (r *Repo) ListWithExercises(ctx context.Context) ([]WithExercises, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, u.first_name, u.last_name, u.role, u.subject, u.level, u.interests,
		       u.created_at, u.updated_at, COUNT(e.id)
		FROM users u
		LEFT JOIN exercises e ON e.user_id = u.id
		GROUP BY u.id
		ORDER BY u.last_name, u.first_name
	`)
	if err != nil {
		return nil, apperr.Storage("users.list", err)
	}
	defer rows.Close()

	var out []WithExercises
	for rows.Next() {
		var (
			w    WithExercises
			role string
		)
		if err := rows.Scan(&w.ID, &w.Email, &w.FirstName, &w.LastName, &role, &w.Subject, &w.Level,
			&w.Interests, &w.CreatedAt, &w.UpdatedAt, &w.ExercisesCount); err != nil {
			return nil, apperr.Storage("users.list", err)
		}
		w.Role = Role(role)
		normalize(&w.Profile)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("users.list", err)
	}
	return out, nil
}

func (r *Repo) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE role = 'teacher') FROM users
	`).Scan(&c.Users, &c.Teachers)
	if err != nil {
		return Counts{}, apperr.Storage("users.counts", err)
	}
	c.Students = c.Users - c.Teachers
	return c, nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p    Profile
		role string
	)
	if err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &role, &p.Subject, &p.Level,
		&p.Interests, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = Role(role)
	normalize(&p)
	return &p, nil
}
