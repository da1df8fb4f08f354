package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Spok95/iteach/internal/domain/subscriptions"
	"github.com/Spok95/iteach/internal/infra/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

var testPrices = Prices{Premium: "price_premium", Pro: "price_pro"}

type planCall struct {
	userID string
	tier   subscriptions.Tier
}

type fakeLedger struct {
	calls    []planCall
	attached []string
	err      error
}

func (f *fakeLedger) ApplyPlanChange(_ context.Context, userID string, tier subscriptions.Tier) (*subscriptions.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, planCall{userID, tier})
	return &subscriptions.Subscription{UserID: userID, Tier: tier}, nil
}

func (f *fakeLedger) AttachStripe(_ context.Context, userID, customerID, subscriptionID string) error {
	f.attached = append(f.attached, userID+"|"+customerID+"|"+subscriptionID)
	return nil
}

type outcomes map[string]int

func (o outcomes) WebhookEvent(eventType, outcome string) { o[eventType+"/"+outcome]++ }

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(t *testing.T, eventType string, object map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return raw
}

func subscriptionObject(status, priceID string) map[string]any {
	return map[string]any{
		"id":       "sub_1",
		"object":   "subscription",
		"status":   status,
		"customer": "cus_1",
		"metadata": map[string]any{"user_id": "u1"},
		"items": map[string]any{
			"object": "list",
			"data": []any{map[string]any{
				"id":    "si_1",
				"price": map[string]any{"id": priceID, "object": "price"},
			}},
		},
	}
}

func newTestHandler() (*Handler, *fakeLedger, outcomes) {
	l := &fakeLedger{}
	o := outcomes{}
	return NewHandler(logger.Discard(), l, testSecret, testPrices, o), l, o
}

func post(h http.Handler, payload []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	if sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsNonPost(t *testing.T) {
	h, _, _ := newTestHandler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestWebhookMissingSignatureRejectedBeforeParsing(t *testing.T) {
	h, l, o := newTestHandler()
	rec := post(h, []byte("{not json"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No signature found")
	assert.Empty(t, l.calls)
	assert.Equal(t, 1, o["unknown/missing_signature"])
}

func TestWebhookInvalidSignature(t *testing.T) {
	h, l, _ := newTestHandler()
	payload := eventPayload(t, "customer.subscription.created", subscriptionObject("active", "price_premium"))

	rec := post(h, payload, sign(payload, "whsec_other", time.Now()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrSignatureInvalid.Error())

	rec = post(h, payload, sign(payload, testSecret, time.Now().Add(-time.Hour)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, l.calls)
}

func TestWebhookAppliesTierFromPrice(t *testing.T) {
	h, l, o := newTestHandler()
	payload := eventPayload(t, "customer.subscription.created", subscriptionObject("active", "price_pro"))

	rec := post(h, payload, sign(payload, testSecret, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Equal(t, []planCall{{"u1", subscriptions.TierPro}}, l.calls)
	assert.Equal(t, []string{"u1|cus_1|sub_1"}, l.attached)
	assert.Equal(t, 1, o["customer.subscription.created/applied"])
}

func TestWebhookDowngrades(t *testing.T) {
	for _, tc := range []struct {
		name, eventType, status string
	}{
		{"deleted", "customer.subscription.deleted", "active"},
		{"canceled", "customer.subscription.updated", "canceled"},
		{"unpaid", "customer.subscription.updated", "unpaid"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h, l, _ := newTestHandler()
			payload := eventPayload(t, tc.eventType, subscriptionObject(tc.status, "price_premium"))

			rec := post(h, payload, sign(payload, testSecret, time.Now()))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []planCall{{"u1", subscriptions.TierFree}}, l.calls)
			assert.Equal(t, []string{"u1|cus_1|"}, l.attached)
		})
	}
}

func TestWebhookPastDueLeavesTier(t *testing.T) {
	h, l, o := newTestHandler()
	payload := eventPayload(t, "customer.subscription.updated", subscriptionObject("past_due", "price_premium"))

	rec := post(h, payload, sign(payload, testSecret, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, l.calls)
	assert.Equal(t, 1, o["customer.subscription.updated/unchanged"])
}

func TestWebhookIgnoresUnknownEventTypes(t *testing.T) {
	h, l, o := newTestHandler()
	for _, typ := range []string{"checkout.session.completed", "invoice.paid"} {
		payload := eventPayload(t, typ, map[string]any{"id": "cs_1"})
		rec := post(h, payload, sign(payload, testSecret, time.Now()))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	}
	assert.Empty(t, l.calls)
	assert.Equal(t, 1, o["invoice.paid/ignored"])
}

func TestWebhookProcessingFailures(t *testing.T) {
	h, l, _ := newTestHandler()

	noUser := subscriptionObject("active", "price_premium")
	noUser["metadata"] = map[string]any{}
	payload := eventPayload(t, "customer.subscription.created", noUser)
	rec := post(h, payload, sign(payload, testSecret, time.Now()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_id")

	payload = eventPayload(t, "customer.subscription.created", subscriptionObject("active", "price_unknown"))
	rec = post(h, payload, sign(payload, testSecret, time.Now()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	l.err = subscriptions.ErrInvalidPlan
	payload = eventPayload(t, "customer.subscription.created", subscriptionObject("active", "price_premium"))
	rec = post(h, payload, sign(payload, testSecret, time.Now()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}
