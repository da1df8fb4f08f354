package exercises

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Spok95/iteach/internal/domain/apperr"
	"github.com/Spok95/iteach/internal/infra/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const selectExercise = `
SELECT id, user_id, author_name, title, description, subject, level, content, solution,
       type, difficulty, duration, language, status, tags, views, metadata, reports, created_at
FROM exercises`

// Repo — Store поверх Postgres; metadata и reports лежат в jsonb.
type Repo struct {
	pool db.Pool
}

func NewRepo(pool db.Pool) *Repo { return &Repo{pool: pool} }

const insertExercise = `
INSERT INTO exercises (id, user_id, author_name, title, description, subject, level, content, solution,
                       type, difficulty, duration, language, status, tags, views, metadata, reports, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

func insertArgs(e *Exercise) ([]any, error) {
	meta, err := json.Marshal(toDoc(e.Metadata))
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	reports, err := json.Marshal(e.Reports)
	if err != nil {
		return nil, fmt.Errorf("marshal reports: %w", err)
	}
	return []any{
		e.ID, e.UserID, e.AuthorName, e.Title, e.Description, e.Subject, e.Level, e.Content, e.Solution,
		string(e.Type), string(e.Difficulty), e.Duration, e.Language, string(e.Status), e.Tags, e.Views,
		meta, reports, e.CreatedAt,
	}, nil
}

func (r *Repo) Insert(ctx context.Context, e Exercise) error {
	normalize(&e)
	args, err := insertArgs(&e)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, insertExercise, args...); err != nil {
		return apperr.Storage("exercises.insert", err)
	}
	return nil
}

// InsertMany вставляет пачку в одной транзакции: либо все, либо ничего.
func (r *Repo) InsertMany(ctx context.Context, es []Exercise) (int, error) {
	if len(es) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, apperr.Storage("exercises.insert_many", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range es {
		e := es[i]
		normalize(&e)
		args, err := insertArgs(&e)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, insertExercise, args...); err != nil {
			return 0, apperr.Storage("exercises.insert_many", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, apperr.Storage("exercises.insert_many", err)
	}
	return len(es), nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Exercise, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.ErrNotFound
	}
	e, err := scanExercise(r.pool.QueryRow(ctx, selectExercise+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage("exercises.get", err)
	}
	return e, nil
}

func (r *Repo) List(ctx context.Context, f Filter, p Page) ([]Exercise, error) {
	var (
		where []string
		args  []any
	)
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("subject", f.Subject)
	add("level", f.Level)
	add("type", string(f.Type))
	add("difficulty", string(f.Difficulty))
	add("user_id", f.AuthorID)

	q := selectExercise
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if p.Limit > 0 {
		args = append(args, p.Limit, p.Offset)
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return r.query(ctx, "exercises.list", q, args...)
}

func (r *Repo) ListReported(ctx context.Context) ([]Exercise, error) {
	return r.query(ctx, "exercises.list_reported",
		selectExercise+` WHERE jsonb_array_length(reports) > 0 ORDER BY created_at DESC`)
}

// Mutate: SELECT ... FOR UPDATE, fn, UPDATE — в одной транзакции.
func (r *Repo) Mutate(ctx context.Context, id string, fn func(*Exercise) error) (*Exercise, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage("exercises.mutate", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanExercise(tx.QueryRow(ctx, selectExercise+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage("exercises.mutate", err)
	}

	if err := fn(e); err != nil {
		return nil, err
	}
	normalize(e)

	meta, err := json.Marshal(toDoc(e.Metadata))
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	reports, err := json.Marshal(e.Reports)
	if err != nil {
		return nil, fmt.Errorf("marshal reports: %w", err)
	}
	if _, err := tx.Exec(ctx, `
UPDATE exercises
SET title = $2, description = $3, subject = $4, level = $5, content = $6, solution = $7,
    type = $8, difficulty = $9, duration = $10, status = $11, tags = $12,
    metadata = $13, reports = $14
WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Subject, e.Level, e.Content, e.Solution,
		string(e.Type), string(e.Difficulty), e.Duration, string(e.Status), e.Tags,
		meta, reports,
	); err != nil {
		return nil, apperr.Storage("exercises.mutate", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage("exercises.mutate", err)
	}
	return e, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM exercises WHERE id = $1`, id)
	if err != nil {
		return apperr.Storage("exercises.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteByAuthors(ctx context.Context, names []string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM exercises WHERE author_name = ANY($1)`, names)
	if err != nil {
		return 0, apperr.Storage("exercises.delete_by_authors", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repo) IncrementViews(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `UPDATE exercises SET views = views + 1 WHERE id = $1`, id); err != nil {
		return apperr.Storage("exercises.increment_views", err)
	}
	return nil
}

func (r *Repo) Counts(ctx context.Context) (int, int, error) {
	var total, reported int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE jsonb_array_length(reports) > 0) FROM exercises
	`).Scan(&total, &reported)
	if err != nil {
		return 0, 0, apperr.Storage("exercises.counts", err)
	}
	return total, reported, nil
}

func (r *Repo) query(ctx context.Context, op, q string, args ...any) ([]Exercise, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	out := []Exercise{}
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return out, nil
}

func scanExercise(row pgx.Row) (*Exercise, error) {
	var (
		e                   Exercise
		typ, diff, status   string
		rawMeta, rawReports []byte
	)
	if err := row.Scan(
		&e.ID, &e.UserID, &e.AuthorName, &e.Title, &e.Description, &e.Subject, &e.Level,
		&e.Content, &e.Solution, &typ, &diff, &e.Duration, &e.Language, &status, &e.Tags,
		&e.Views, &rawMeta, &rawReports, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Type, e.Difficulty, e.Status = Type(typ), Difficulty(diff), Status(status)

	var doc metadataDoc
	if len(rawMeta) > 0 {
		if err := json.Unmarshal(rawMeta, &doc); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", e.ID, err)
		}
	}
	e.Metadata = doc.toMetadata()
	if len(rawReports) > 0 {
		if err := json.Unmarshal(rawReports, &e.Reports); err != nil {
			return nil, fmt.Errorf("decode reports of %s: %w", e.ID, err)
		}
	}
	normalize(&e)
	return &e, nil
}
