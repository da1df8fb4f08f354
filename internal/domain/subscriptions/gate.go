package subscriptions

import (
	"context"
	"log/slog"
)

// Quota — то, что гейту нужно от Ledger.
type Quota interface {
	HasRemainingQuota(ctx context.Context, userID string, a Action) (bool, error)
	ConsumeQuota(ctx context.Context, userID string, a Action) (bool, error)
}

// Gate оборачивает защищённое действие: проверка, действие, списание.
type Gate struct {
	quota Quota
	log   *slog.Logger
}

func NewGate(q Quota, log *slog.Logger) *Gate {
	return &Gate{quota: q, log: log}
}

// Check возвращает ErrQuotaExceeded, если действие сейчас не разрешено.
func (g *Gate) Check(ctx context.Context, userID string, a Action) error {
	ok, err := g.quota.HasRemainingQuota(ctx, userID, a)
	if err != nil {
		return err
	}
	if !ok {
		return ErrQuotaExceeded
	}
	return nil
}

// Consume списывает квоту после успешного действия.
func (g *Gate) Consume(ctx context.Context, userID string, a Action) error {
	ok, err := g.quota.ConsumeQuota(ctx, userID, a)
	if err != nil {
		return err
	}
	if !ok {
		return ErrQuotaExceeded
	}
	return nil
}

// Run выполняет fn только при наличии квоты и списывает её только если fn
// завершилась успешно. Если списание проиграло гонку, результат fn
// отбрасывается.
func Run[T any](ctx context.Context, g *Gate, userID string, a Action, fn func(context.Context) (T, error)) (T, error) {
	return RunUndo(ctx, g, userID, a, fn, nil)
}

// RunUndo — Run для действий с побочным эффектом: если списание не прошло,
// undo откатывает то, что успела сделать fn.
func RunUndo[T any](ctx context.Context, g *Gate, userID string, a Action, fn func(context.Context) (T, error), undo func(context.Context, T) error) (T, error) {
	var zero T
	if err := g.Check(ctx, userID, a); err != nil {
		return zero, err
	}
	out, err := fn(ctx)
	if err != nil {
		return zero, err
	}
	if err := g.Consume(ctx, userID, a); err != nil {
		g.log.Warn("quota consume failed after action", "user_id", userID, "action", a, "err", err)
		if undo != nil {
			if uerr := undo(context.WithoutCancel(ctx), out); uerr != nil {
				g.log.Error("undo after failed consume", "user_id", userID, "action", a, "err", uerr)
			}
		}
		return zero, err
	}
	return out, nil
}
