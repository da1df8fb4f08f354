package subscriptions

import (
	"context"
	"sync"
	"time"

	"github.com/Spok95/iteach/internal/domain/apperr"
)

// Store — хранилище записей подписок. Decrement обязан быть атомарным
// уменьшением с полом в ноль: два конкурентных вызова на остатке 1 дают
// ровно один true.
type Store interface {
	Get(ctx context.Context, userID string) (*Subscription, error)
	// Insert создаёт запись, если её нет, и возвращает то, что лежит в хранилище.
	Insert(ctx context.Context, s Subscription) (*Subscription, error)
	// Replace перезаписывает запись целиком; previous_tier = прежний tier или free.
	Replace(ctx context.Context, s Subscription) (*Subscription, error)
	Decrement(ctx context.Context, userID string, a Action) (bool, error)
	AttachStripe(ctx context.Context, userID, customerID, subscriptionID string) error
}

// MemoryStore — Store в памяти процесса, используется в тестах и локальном режиме.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Subscription
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Subscription), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.recs[userID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Insert(_ context.Context, s Subscription) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.recs[s.UserID]; ok {
		return &cur, nil
	}
	m.recs[s.UserID] = s
	return &s, nil
}

func (m *MemoryStore) Replace(_ context.Context, s Subscription) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := TierFree
	if cur, ok := m.recs[s.UserID]; ok {
		prev = cur.Tier
		s.CreatedAt = cur.CreatedAt
		s.StripeCustomerID = cur.StripeCustomerID
		s.StripeSubscriptionID = cur.StripeSubscriptionID
	}
	s.PreviousTier = &prev
	m.recs[s.UserID] = s
	return &s, nil
}

func (m *MemoryStore) Decrement(_ context.Context, userID string, a Action) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.recs[userID]
	if !ok {
		return false, nil
	}
	if s.Tier == TierPro {
		return true, nil
	}
	switch a {
	case ActionView:
		if s.ExerciseViewsRemaining <= 0 {
			return false, nil
		}
		s.ExerciseViewsRemaining--
	case ActionCreate:
		if s.ExerciseCreationsRemaining <= 0 {
			return false, nil
		}
		s.ExerciseCreationsRemaining--
	default:
		return false, ErrInvalidAction
	}
	s.UpdatedAt = m.now()
	m.recs[userID] = s
	return true, nil
}

func (m *MemoryStore) AttachStripe(_ context.Context, userID, customerID, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.recs[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	s.StripeCustomerID = customerID
	s.StripeSubscriptionID = subscriptionID
	m.recs[userID] = s
	return nil
}

// Set кладёт запись как есть; для подготовки состояния в тестах.
func (m *MemoryStore) Set(s Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[s.UserID] = s
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}
