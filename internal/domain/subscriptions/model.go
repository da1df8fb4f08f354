package subscriptions

import (
	"errors"
	"fmt"
	"time"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
)

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
)

var (
	ErrQuotaExceeded = errors.New("subscriptions: quota exceeded")
	ErrInvalidAction = errors.New("subscriptions: invalid action")
)

func (a Action) Validate() error {
	switch a {
	case ActionView, ActionCreate:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidAction, a)
}

type Subscription struct {
	UserID                     string    `json:"userId"`
	Tier                       Tier      `json:"tier"`
	Status                     Status    `json:"status"`
	CurrentPeriodEnd           time.Time `json:"currentPeriodEnd"`
	ExerciseViewsRemaining     int       `json:"exerciseViewsRemaining"`
	ExerciseCreationsRemaining int       `json:"exerciseCreationsRemaining"`
	PreviousTier               *Tier     `json:"previousTier,omitempty"`
	StripeCustomerID           string    `json:"-"`
	StripeSubscriptionID       string    `json:"-"`
	CreatedAt                  time.Time `json:"createdAt"`
	UpdatedAt                  time.Time `json:"updatedAt"`
}

// Remaining — остаток по действию; Unlimited для pro.
func (s *Subscription) Remaining(a Action) int {
	if a == ActionCreate {
		return s.ExerciseCreationsRemaining
	}
	return s.ExerciseViewsRemaining
}

func (s *Subscription) allows(a Action) bool {
	if s.Tier == TierPro {
		return true
	}
	return s.Remaining(a) > 0
}

// newRecord — свежая запись с полными лимитами тарифа.
func newRecord(userID string, p Plan, now time.Time) Subscription {
	return Subscription{
		UserID:                     userID,
		Tier:                       p.Tier,
		Status:                     StatusActive,
		CurrentPeriodEnd:           now.AddDate(0, 0, periodDays),
		ExerciseViewsRemaining:     p.Limits.ExerciseViews,
		ExerciseCreationsRemaining: p.Limits.ExerciseCreation,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
}

// normalize приводит прочитанную запись к схеме: неизвестный tier считается free,
// пустой статус — active, отрицательные счётчики вне pro обнуляются.
func normalize(s *Subscription) {
	if _, err := LookupPlan(s.Tier); err != nil {
		s.Tier = TierFree
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	if s.Tier == TierPro {
		s.ExerciseViewsRemaining = Unlimited
		s.ExerciseCreationsRemaining = Unlimited
		return
	}
	if s.ExerciseViewsRemaining < 0 {
		s.ExerciseViewsRemaining = 0
	}
	if s.ExerciseCreationsRemaining < 0 {
		s.ExerciseCreationsRemaining = 0
	}
}
