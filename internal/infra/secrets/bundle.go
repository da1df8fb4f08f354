package secrets

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrIncomplete   = errors.New("secrets: incomplete bundle")
	ErrUnauthorized = errors.New("secrets: unauthorized")
)

// Bundle — набор ключей сторонних сервисов, сгруппированный по провайдерам.
type Bundle struct {
	Firebase Firebase `json:"firebase" mapstructure:"firebase"`
	OpenAI   OpenAI   `json:"openai" mapstructure:"openai"`
	Stripe   Stripe   `json:"stripe" mapstructure:"stripe"`
	Gemini   Gemini   `json:"gemini" mapstructure:"gemini"`
}

type Firebase struct {
	APIKey            string `json:"apiKey" mapstructure:"api_key"`
	AuthDomain        string `json:"authDomain" mapstructure:"auth_domain"`
	DatabaseURL       string `json:"databaseUrl" mapstructure:"database_url"`
	ProjectID         string `json:"projectId" mapstructure:"project_id"`
	StorageBucket     string `json:"storageBucket" mapstructure:"storage_bucket"`
	MessagingSenderID string `json:"messagingSenderId" mapstructure:"messaging_sender_id"`
	AppID             string `json:"appId" mapstructure:"app_id"`
	MeasurementID     string `json:"measurementId" mapstructure:"measurement_id"`
}

type OpenAI struct {
	APIKey string `json:"apiKey" mapstructure:"api_key"`
}

type Stripe struct {
	PublishableKey string `json:"publishableKey" mapstructure:"publishable_key"`
	SecretKey      string `json:"secretKey" mapstructure:"secret_key"`
	WebhookSecret  string `json:"webhookSecret" mapstructure:"webhook_secret"`
	PremiumPriceID string `json:"premiumPriceId" mapstructure:"premium_price_id"`
	ProPriceID     string `json:"proPriceId" mapstructure:"pro_price_id"`
}

type Gemini struct {
	APIKey string `json:"apiKey" mapstructure:"api_key"`
	Model  string `json:"model,omitempty" mapstructure:"model"`
}

// Validate проверяет обязательные поля: весь блок firebase и ключи stripe,
// без которых не работает оплата.
func (b Bundle) Validate() error {
	var missing []string
	fb := map[string]string{
		"firebase.apiKey":            b.Firebase.APIKey,
		"firebase.authDomain":        b.Firebase.AuthDomain,
		"firebase.databaseUrl":       b.Firebase.DatabaseURL,
		"firebase.projectId":         b.Firebase.ProjectID,
		"firebase.storageBucket":     b.Firebase.StorageBucket,
		"firebase.messagingSenderId": b.Firebase.MessagingSenderID,
		"firebase.appId":             b.Firebase.AppID,
		"firebase.measurementId":     b.Firebase.MeasurementID,
		"stripe.secretKey":           b.Stripe.SecretKey,
		"stripe.webhookSecret":       b.Stripe.WebhookSecret,
	}
	for k, v := range fb {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &IncompleteError{Missing: missing}
	}
	return nil
}

type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "secrets: incomplete bundle, missing " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteError) Unwrap() error { return ErrIncomplete }
