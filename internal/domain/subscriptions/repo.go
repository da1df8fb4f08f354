package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/Spok95/iteach/internal/domain/apperr"
	"github.com/Spok95/iteach/internal/infra/db"
	"github.com/jackc/pgx/v5"
)

const columns = `user_id, tier, status, current_period_end,
       exercise_views_remaining, exercise_creations_remaining, previous_tier,
       COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
       created_at, updated_at`

// Repo — Store поверх Postgres.
type Repo struct{ db db.Pool }

func NewRepo(pool db.Pool) *Repo { return &Repo{db: pool} }

func (r *Repo) Get(ctx context.Context, userID string) (*Subscription, error) {
	q := `SELECT ` + columns + ` FROM subscriptions WHERE user_id = $1`
	s, err := scan(r.db.QueryRow(ctx, q, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return s, err
}

func (r *Repo) Insert(ctx context.Context, s Subscription) (*Subscription, error) {
	const q = `
INSERT INTO subscriptions (user_id, tier, status, current_period_end,
                           exercise_views_remaining, exercise_creations_remaining)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, q,
		s.UserID, string(s.Tier), string(s.Status), s.CurrentPeriodEnd,
		s.ExerciseViewsRemaining, s.ExerciseCreationsRemaining,
	); err != nil {
		return nil, err
	}
	// при гонке двух GetOrCreate побеждает первая вставка, вторая читает её
	return r.Get(ctx, s.UserID)
}

func (r *Repo) Replace(ctx context.Context, s Subscription) (*Subscription, error) {
	q := `
INSERT INTO subscriptions AS s (user_id, tier, status, current_period_end,
                                exercise_views_remaining, exercise_creations_remaining, previous_tier)
VALUES ($1, $2, $3, $4, $5, $6, 'free')
ON CONFLICT (user_id) DO UPDATE
SET previous_tier = s.tier,
    tier = EXCLUDED.tier,
    status = EXCLUDED.status,
    current_period_end = EXCLUDED.current_period_end,
    exercise_views_remaining = EXCLUDED.exercise_views_remaining,
    exercise_creations_remaining = EXCLUDED.exercise_creations_remaining,
    updated_at = NOW()
RETURNING ` + columns
	return scan(r.db.QueryRow(ctx, q,
		s.UserID, string(s.Tier), string(s.Status), s.CurrentPeriodEnd,
		s.ExerciseViewsRemaining, s.ExerciseCreationsRemaining,
	))
}

// Decrement — одно условное UPDATE: счётчик не уходит ниже нуля, pro не трогаем.
func (r *Repo) Decrement(ctx context.Context, userID string, a Action) (bool, error) {
	col, err := counterColumn(a)
	if err != nil {
		return false, err
	}
	q := fmt.Sprintf(`
UPDATE subscriptions
SET %[1]s = CASE WHEN tier = 'pro' THEN %[1]s ELSE %[1]s - 1 END,
    updated_at = NOW()
WHERE user_id = $1
  AND (tier = 'pro' OR %[1]s > 0)`, col)
	tag, err := r.db.Exec(ctx, q, userID)
	if err != nil {
		return false, err
	}
	// 0 строк: записи нет либо лимит исчерпан
	return tag.RowsAffected() > 0, nil
}

func (r *Repo) AttachStripe(ctx context.Context, userID, customerID, subscriptionID string) error {
	const q = `
UPDATE subscriptions
SET stripe_customer_id = NULLIF($2, ''),
    stripe_subscription_id = NULLIF($3, ''),
    updated_at = NOW()
WHERE user_id = $1`
	tag, err := r.db.Exec(ctx, q, userID, customerID, subscriptionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func counterColumn(a Action) (string, error) {
	switch a {
	case ActionView:
		return "exercise_views_remaining", nil
	case ActionCreate:
		return "exercise_creations_remaining", nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, a)
}

func scan(row pgx.Row) (*Subscription, error) {
	var (
		s          Subscription
		tier, stat string
		prev       *string
	)
	if err := row.Scan(
		&s.UserID,
		&tier,
		&stat,
		&s.CurrentPeriodEnd,
		&s.ExerciseViewsRemaining,
		&s.ExerciseCreationsRemaining,
		&prev,
		&s.StripeCustomerID,
		&s.StripeSubscriptionID,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Tier = Tier(tier)
	s.Status = Status(stat)
	if prev != nil {
		pt := Tier(*prev)
		s.PreviousTier = &pt
	}
	normalize(&s)
	return &s, nil
}
