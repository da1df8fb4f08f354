package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Spok95/iteach/internal/infra/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeBundle() Bundle {
	return Bundle{
		Firebase: Firebase{
			APIKey: "fb-key", AuthDomain: "iteach.firebaseapp.com", DatabaseURL: "https://iteach.firebaseio.com",
			ProjectID: "iteach", StorageBucket: "iteach.appspot.com", MessagingSenderID: "123",
			AppID: "1:123:web:abc", MeasurementID: "G-XYZ",
		},
		OpenAI: OpenAI{APIKey: "sk-openai"},
		Stripe: Stripe{PublishableKey: "pk_test", SecretKey: "sk_test", WebhookSecret: "whsec_test"},
		Gemini: Gemini{APIKey: "gm-key"},
	}
}

func TestValidateListsMissingFields(t *testing.T) {
	require.NoError(t, completeBundle().Validate())

	b := completeBundle()
	b.Stripe.WebhookSecret = ""
	b.Firebase.AppID = " "
	err := b.Validate()
	require.ErrorIs(t, err, ErrIncomplete)
	var ie *IncompleteError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []string{"firebase.appId", "stripe.webhookSecret"}, ie.Missing)
}

func gatewayRequest(h http.Handler, method, key, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/secrets", nil)
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGateway(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const origin = "https://iteach-gpt.netlify.app"
	h := NewGateway("gw-key", completeBundle(), logger.Discard()).Handler([]string{origin})

	rec := gatewayRequest(h, http.MethodGet, "gw-key", origin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
	var got Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, completeBundle(), got)

	rec = gatewayRequest(h, http.MethodGet, "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or missing API key")
	assert.Equal(t, http.StatusUnauthorized, gatewayRequest(h, http.MethodGet, "", "").Code)

	assert.Equal(t, http.StatusMethodNotAllowed, gatewayRequest(h, http.MethodPost, "gw-key", "").Code)
	assert.Equal(t, http.StatusForbidden, gatewayRequest(h, http.MethodGet, "gw-key", "https://evil.example").Code)
}

func TestGatewayWithoutKeyConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewGateway("", completeBundle(), logger.Discard()).Handler(nil)

	rec := gatewayRequest(h, http.MethodGet, "anything", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Configuration Error")
}

func TestClientFetchesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "gw-key", r.Header.Get(HeaderAPIKey))
		time.Sleep(20 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(completeBundle())
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "gw-key", time.Second, logger.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := c.Load(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "sk_test", b.Stripe.SecretKey)
		}()
	}
	wg.Wait()

	_, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestClientUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized","details":"Invalid or missing API key"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bad", time.Second, logger.Discard()).Load(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "Invalid or missing API key")
}

func TestClientFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	fallback := completeBundle()
	fallback.Stripe.SecretKey = "sk_local"
	b, err := NewClient(url, "k", time.Second, logger.Discard()).WithFallback(fallback).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk_local", b.Stripe.SecretKey)

	_, err = NewClient("", "k", time.Second, logger.Discard()).WithFallback(Bundle{}).Load(context.Background())
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestClientIncompleteGatewayBundle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Bundle{OpenAI: OpenAI{APIKey: "x"}})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", time.Second, logger.Discard()).Load(context.Background())
	assert.ErrorIs(t, err, ErrIncomplete)

	b, err := NewClient(srv.URL, "k", time.Second, logger.Discard()).WithFallback(completeBundle()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fb-key", b.Firebase.APIKey)
}
