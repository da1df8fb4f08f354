package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/Spok95/iteach/internal/domain/subscriptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

type fakeSessions struct {
	got *stripe.CheckoutSessionParams
	err error
}

func (f *fakeSessions) New(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{URL: "https://checkout.stripe.com/c/pay/cs_test"}, nil
}

func TestCheckoutURL(t *testing.T) {
	fs := &fakeSessions{}
	s := newService(fs, testPrices, "https://iteach.example/")

	url, err := s.CheckoutURL(context.Background(), "u1", "prof@example.fr", subscriptions.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test", url)

	require.NotNil(t, fs.got)
	assert.Equal(t, "subscription", *fs.got.Mode)
	assert.Equal(t, "price_premium", *fs.got.LineItems[0].Price)
	assert.Equal(t, "u1", *fs.got.ClientReferenceID)
	assert.Equal(t, "u1", fs.got.SubscriptionData.Metadata["user_id"])
	assert.Equal(t, "https://iteach.example/pricing", *fs.got.CancelURL)
	assert.Equal(t, "prof@example.fr", *fs.got.CustomerEmail)
}

func TestCheckoutRejectsFreeAndUnconfigured(t *testing.T) {
	s := newService(&fakeSessions{}, Prices{Premium: "price_premium"}, "https://iteach.example")

	_, err := s.CheckoutURL(context.Background(), "u1", "", subscriptions.TierFree)
	assert.ErrorIs(t, err, subscriptions.ErrInvalidPlan)

	_, err = s.CheckoutURL(context.Background(), "u1", "", subscriptions.TierPro)
	assert.ErrorIs(t, err, subscriptions.ErrInvalidPlan)
}

func TestCheckoutStripeError(t *testing.T) {
	boom := errors.New("stripe down")
	s := newService(&fakeSessions{err: boom}, testPrices, "https://iteach.example")
	_, err := s.CheckoutURL(context.Background(), "u1", "", subscriptions.TierPro)
	assert.ErrorIs(t, err, boom)
}
