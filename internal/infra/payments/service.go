package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/Spok95/iteach/internal/domain/subscriptions"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// sessionCreator — то, что нужно от client.API.CheckoutSessions.
type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Service создаёт Stripe Checkout Session для платных тарифов.
type Service struct {
	sessions sessionCreator
	prices   Prices
	baseURL  string
}

func NewService(secretKey string, prices Prices, baseURL string) *Service {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return newService(sc.CheckoutSessions, prices, baseURL)
}

func newService(sessions sessionCreator, prices Prices, baseURL string) *Service {
	return &Service{sessions: sessions, prices: prices, baseURL: strings.TrimRight(baseURL, "/")}
}

// CheckoutURL возвращает ссылку на оплату. user_id уходит в metadata
// подписки, по нему вебхук найдёт запись.
func (s *Service) CheckoutURL(ctx context.Context, userID, email string, tier subscriptions.Tier) (string, error) {
	priceID, ok := s.prices.priceID(tier)
	if !ok {
		return "", fmt.Errorf("%w: %q is not purchasable", subscriptions.ErrInvalidPlan, tier)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(s.baseURL + "/subscription/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.baseURL + "/pricing"),
		ClientReferenceID: stripe.String(userID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID, "tier": string(tier)},
		},
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	sess, err := s.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}
