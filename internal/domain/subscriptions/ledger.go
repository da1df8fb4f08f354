package subscriptions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Spok95/iteach/internal/domain/apperr"
)

// QuotaRecorder получает решения по квотам (метрики).
type QuotaRecorder interface {
	QuotaDecision(action, result string)
}

type nopRecorder struct{}

func (nopRecorder) QuotaDecision(string, string) {}

// Ledger — источник истины о том, что пользователь ещё может сделать в периоде.
// Лимиты берутся из каталога, в записи хранятся только остатки: изменение
// каталога не пересчитывает уже выданные остатки до следующей смены тарифа.
type Ledger struct {
	store Store
	log   *slog.Logger
	rec   QuotaRecorder
	now   func() time.Time
}

func NewLedger(store Store, log *slog.Logger, rec QuotaRecorder) *Ledger {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Ledger{store: store, log: log, rec: rec, now: time.Now}
}

// WithClock подменяет часы (тесты).
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) GetOrCreate(ctx context.Context, userID string) (*Subscription, error) {
	if userID == "" {
		return nil, apperr.Invalid("empty user id")
	}
	s, err := l.store.Get(ctx, userID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Storage("subscriptions.get", err)
	}

	s, err = l.store.Insert(ctx, newRecord(userID, mustPlan(TierFree), l.now()))
	if err != nil {
		return nil, apperr.Storage("subscriptions.insert", err)
	}
	l.log.Info("subscription created", "user_id", userID, "tier", s.Tier)
	return s, nil
}

// ApplyPlanChange сбрасывает счётчики на полные лимиты нового тарифа и
// открывает новый период. Вызывается из самообслуживания и из вебхука.
func (l *Ledger) ApplyPlanChange(ctx context.Context, userID string, tier Tier) (*Subscription, error) {
	if userID == "" {
		return nil, apperr.Invalid("empty user id")
	}
	plan, err := LookupPlan(tier)
	if err != nil {
		return nil, err
	}
	s, err := l.store.Replace(ctx, newRecord(userID, plan, l.now()))
	if err != nil {
		return nil, apperr.Storage("subscriptions.replace", err)
	}
	prev := TierFree
	if s.PreviousTier != nil {
		prev = *s.PreviousTier
	}
	l.log.Info("plan changed", "user_id", userID, "tier", s.Tier, "previous_tier", prev)
	return s, nil
}

// HasRemainingQuota только читает: отсутствующая запись оценивается как
// свежая free-запись и не сохраняется.
func (l *Ledger) HasRemainingQuota(ctx context.Context, userID string, a Action) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	s, err := l.store.Get(ctx, userID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		fresh := newRecord(userID, mustPlan(TierFree), l.now())
		s = &fresh
	case err != nil:
		return false, apperr.Storage("subscriptions.get", err)
	}
	// разрешение не считается: итог действия запишет ConsumeQuota
	ok := s.allows(a)
	if !ok {
		l.rec.QuotaDecision(string(a), "denied")
	}
	return ok, nil
}

// ConsumeQuota списывает одну единицу. false без ошибки — лимит исчерпан,
// в том числе когда его выбрал конкурентный запрос.
func (l *Ledger) ConsumeQuota(ctx context.Context, userID string, a Action) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	s, err := l.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	if s.Tier == TierPro {
		l.rec.QuotaDecision(string(a), "unlimited")
		return true, nil
	}
	if !s.allows(a) {
		l.rec.QuotaDecision(string(a), "refused")
		return false, nil
	}

	ok, err := l.store.Decrement(ctx, userID, a)
	if err != nil {
		return false, apperr.Storage("subscriptions.decrement", err)
	}
	if !ok {
		l.log.Debug("quota decrement lost", "user_id", userID, "action", a)
		l.rec.QuotaDecision(string(a), "refused")
		return false, nil
	}
	l.rec.QuotaDecision(string(a), "consumed")
	return true, nil
}

type Usage struct {
	Subscription *Subscription `json:"subscription"`
	Plan         Plan          `json:"plan"`
}

func (l *Ledger) Usage(ctx context.Context, userID string) (Usage, error) {
	s, err := l.GetOrCreate(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Subscription: s, Plan: mustPlan(s.Tier)}, nil
}

func (l *Ledger) AttachStripe(ctx context.Context, userID, customerID, subscriptionID string) error {
	if _, err := l.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	if err := l.store.AttachStripe(ctx, userID, customerID, subscriptionID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Storage("subscriptions.attach_stripe", err)
	}
	return nil
}
