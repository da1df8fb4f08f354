package subscriptions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Spok95/iteach/internal/domain/apperr"
	"github.com/Spok95/iteach/internal/infra/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestLedger() (*Ledger, *MemoryStore) {
	store := NewMemoryStore()
	l := NewLedger(store, logger.Discard(), nil).WithClock(func() time.Time { return fixedNow })
	return l, store
}

func TestGetOrCreateCreatesFreeRecordOnce(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger()

	s, err := l.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, TierFree, s.Tier)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, 5, s.ExerciseViewsRemaining)
	assert.Equal(t, 0, s.ExerciseCreationsRemaining)
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), s.CurrentPeriodEnd)
	assert.Nil(t, s.PreviousTier)

	again, err := l.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, s, again)
	assert.Equal(t, 1, store.Len())
}

func TestGetOrCreateRejectsEmptyUser(t *testing.T) {
	l, _ := newTestLedger()
	_, err := l.GetOrCreate(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestApplyPlanChangeResetsCounters(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger()
	store.Set(Subscription{UserID: "u1", Tier: TierPremium, Status: StatusActive, ExerciseViewsRemaining: 3, ExerciseCreationsRemaining: 1})

	s, err := l.ApplyPlanChange(ctx, "u1", TierPremium)
	require.NoError(t, err)
	assert.Equal(t, 50, s.ExerciseViewsRemaining)
	assert.Equal(t, 20, s.ExerciseCreationsRemaining)
	require.NotNil(t, s.PreviousTier)
	assert.Equal(t, TierPremium, *s.PreviousTier)

	read, err := l.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, read.ExerciseViewsRemaining)
	assert.Equal(t, 20, read.ExerciseCreationsRemaining)
}

func TestApplyPlanChangeWithoutRecordStampsFree(t *testing.T) {
	l, _ := newTestLedger()

	s, err := l.ApplyPlanChange(context.Background(), "u2", TierPro)
	require.NoError(t, err)
	require.NotNil(t, s.PreviousTier)
	assert.Equal(t, TierFree, *s.PreviousTier)
	assert.Equal(t, Unlimited, s.ExerciseViewsRemaining)
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), s.CurrentPeriodEnd)
}

func TestApplyPlanChangeInvalidTier(t *testing.T) {
	l, store := newTestLedger()
	_, err := l.ApplyPlanChange(context.Background(), "u1", "platinum")
	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.Equal(t, 0, store.Len())
}

func TestHasRemainingQuotaDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger()

	ok, err := l.HasRemainingQuota(ctx, "ghost", ActionView)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.HasRemainingQuota(ctx, "ghost", ActionCreate)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestHasRemainingQuotaInvalidAction(t *testing.T) {
	l, _ := newTestLedger()
	_, err := l.HasRemainingQuota(context.Background(), "u1", "delete")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestFreeUserRunsOutOfViews(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger()

	for i := 0; i < 5; i++ {
		ok, err := l.ConsumeQuota(ctx, "u1", ActionView)
		require.NoError(t, err)
		require.True(t, ok, "view %d", i)
	}
	ok, err := l.ConsumeQuota(ctx, "u1", ActionView)
	require.NoError(t, err)
	assert.False(t, ok)

	has, err := l.HasRemainingQuota(ctx, "u1", ActionView)
	require.NoError(t, err)
	assert.False(t, has)

	s, _ := store.Get(ctx, "u1")
	assert.Equal(t, 0, s.ExerciseViewsRemaining)
}

func TestProNeverDecrements(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger()
	_, err := l.ApplyPlanChange(ctx, "u1", TierPro)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		ok, err := l.ConsumeQuota(ctx, "u1", ActionCreate)
		require.NoError(t, err)
		require.True(t, ok)
	}
	s, _ := store.Get(ctx, "u1")
	assert.Equal(t, Unlimited, s.ExerciseViewsRemaining)
	assert.Equal(t, Unlimited, s.ExerciseCreationsRemaining)
}

func TestConcurrentConsumeNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger()
	const k, n = 7, 40
	store.Set(Subscription{UserID: "u1", Tier: TierPremium, Status: StatusActive, ExerciseViewsRemaining: k, ExerciseCreationsRemaining: 0})

	var granted, refused atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := l.ConsumeQuota(ctx, "u1", ActionView)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				granted.Add(1)
			} else {
				refused.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(k), granted.Load())
	assert.Equal(t, int32(n-k), refused.Load())
	s, _ := store.Get(ctx, "u1")
	assert.Equal(t, 0, s.ExerciseViewsRemaining)
}

type failingStore struct{ MemoryStore }

var errBoom = errors.New("boom")

func (*failingStore) Get(context.Context, string) (*Subscription, error) { return nil, errBoom }

func TestStorageErrorsAreWrapped(t *testing.T) {
	l := NewLedger(&failingStore{}, logger.Discard(), nil)

	_, err := l.HasRemainingQuota(context.Background(), "u1", ActionView)
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
	assert.ErrorIs(t, err, errBoom)

	_, err = l.ConsumeQuota(context.Background(), "u1", ActionView)
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
}

type countingRecorder struct {
	mu  sync.Mutex
	got map[string]int
}

func (c *countingRecorder) QuotaDecision(action, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got[action+"/"+result]++
}

func TestDecisionsAreRecordedOncePerAction(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{got: map[string]int{}}
	l := NewLedger(NewMemoryStore(), logger.Discard(), rec)

	_, _ = l.HasRemainingQuota(ctx, "u1", ActionCreate)
	_, _ = l.HasRemainingQuota(ctx, "u1", ActionView)
	_, _ = l.ConsumeQuota(ctx, "u1", ActionView)
	_, _ = l.ConsumeQuota(ctx, "u1", ActionCreate)

	assert.Equal(t, map[string]int{
		"create/denied":  1,
		"view/consumed":  1,
		"create/refused": 1,
	}, rec.got)
}

func TestUsageAndAttachStripe(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger()

	require.NoError(t, l.AttachStripe(ctx, "u1", "cus_1", "sub_1"))
	s, _ := store.Get(ctx, "u1")
	assert.Equal(t, "cus_1", s.StripeCustomerID)

	u, err := l.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, TierFree, u.Plan.Tier)
	assert.Equal(t, 5, u.Subscription.ExerciseViewsRemaining)
}
