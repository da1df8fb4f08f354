package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Spok95/iteach/internal/domain/subscriptions"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	SignatureHeader  = "Stripe-Signature"
	maxBodyBytes     = 65536
	defaultTolerance = 5 * time.Minute
)

var (
	ErrSignatureInvalid = errors.New("payments: signature invalid")
	ErrMissingUser      = errors.New("payments: subscription has no user_id metadata")
	ErrUnknownPrice     = errors.New("payments: price does not match any plan")
)

// PlanChanger — часть Ledger, которую вызывает вебхук.
type PlanChanger interface {
	ApplyPlanChange(ctx context.Context, userID string, tier subscriptions.Tier) (*subscriptions.Subscription, error)
	AttachStripe(ctx context.Context, userID, customerID, subscriptionID string) error
}

type EventRecorder interface {
	WebhookEvent(eventType, outcome string)
}

// Prices — соответствие price id тарифам.
type Prices struct {
	Premium string
	Pro     string
}

func (p Prices) tier(priceID string) (subscriptions.Tier, bool) {
	switch {
	case priceID == "":
		return "", false
	case priceID == p.Premium:
		return subscriptions.TierPremium, true
	case priceID == p.Pro:
		return subscriptions.TierPro, true
	}
	return "", false
}

func (p Prices) priceID(t subscriptions.Tier) (string, bool) {
	switch t {
	case subscriptions.TierPremium:
		return p.Premium, p.Premium != ""
	case subscriptions.TierPro:
		return p.Pro, p.Pro != ""
	}
	return "", false
}

// Handler принимает события Stripe и переводит их в смену тарифа.
type Handler struct {
	log       *slog.Logger
	ledger    PlanChanger
	secret    string
	prices    Prices
	rec       EventRecorder
	tolerance time.Duration
}

func NewHandler(log *slog.Logger, ledger PlanChanger, secret string, prices Prices, rec EventRecorder) *Handler {
	return &Handler{
		log:       log,
		ledger:    ledger,
		secret:    secret,
		prices:    prices,
		rec:       rec,
		tolerance: defaultTolerance,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method Not Allowed"})
		return
	}

	// подпись проверяется раньше любого разбора тела
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		h.record("unknown", "missing_signature")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No signature found"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, h.secret, webhook.ConstructEventOptions{
		Tolerance:                h.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.log.Warn("stripe signature rejected", "err", err)
		h.record("unknown", "invalid_signature")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": ErrSignatureInvalid.Error()})
		return
	}

	eventType := string(event.Type)
	outcome, err := h.handle(r.Context(), eventType, event.Data.Raw)
	if err != nil {
		h.log.Error("stripe webhook failed", "event_id", event.ID, "type", eventType, "err", err)
		h.record(eventType, "failed")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	h.record(eventType, outcome)
	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

func (h *Handler) handle(ctx context.Context, eventType string, raw json.RawMessage) (string, error) {
	switch eventType {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
	default:
		return "ignored", nil
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return "", fmt.Errorf("decode subscription: %w", err)
	}
	userID := sub.Metadata["user_id"]
	if userID == "" {
		return "", ErrMissingUser
	}

	tier, ok, err := h.resolveTier(eventType, &sub)
	if err != nil {
		return "", err
	}
	if !ok {
		h.log.Info("subscription status left unchanged", "user_id", userID, "status", sub.Status)
		return "unchanged", nil
	}

	if _, err := h.ledger.ApplyPlanChange(ctx, userID, tier); err != nil {
		return "", fmt.Errorf("apply plan change: %w", err)
	}

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	subscriptionID := sub.ID
	if tier == subscriptions.TierFree {
		subscriptionID = ""
	}
	if err := h.ledger.AttachStripe(ctx, userID, customerID, subscriptionID); err != nil {
		// тариф уже применён; повтор события от Stripe это исправит
		h.log.Warn("attach stripe ids failed", "user_id", userID, "err", err)
	}
	h.log.Info("subscription reconciled", "user_id", userID, "tier", tier, "status", sub.Status)
	return "applied", nil
}

// resolveTier: false — статус не требует смены тарифа.
func (h *Handler) resolveTier(eventType string, sub *stripe.Subscription) (subscriptions.Tier, bool, error) {
	if eventType == "customer.subscription.deleted" {
		return subscriptions.TierFree, true, nil
	}
	switch sub.Status {
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		return subscriptions.TierFree, true, nil
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
	default:
		return "", false, nil
	}

	if sub.Items != nil {
		for _, it := range sub.Items.Data {
			if it == nil || it.Price == nil {
				continue
			}
			if t, ok := h.prices.tier(it.Price.ID); ok {
				return t, true, nil
			}
		}
	}
	if t := subscriptions.Tier(sub.Metadata["tier"]); t == subscriptions.TierPremium || t == subscriptions.TierPro {
		return t, true, nil
	}
	return "", false, ErrUnknownPrice
}

func (h *Handler) record(eventType, outcome string) {
	if h.rec != nil {
		h.rec.WebhookEvent(eventType, outcome)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
