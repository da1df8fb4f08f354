package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Spok95/iteach/internal/infra/secrets"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env         string
		AdminEmails []string `mapstructure:"admin_emails"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr           string
		AllowedOrigins []string      `mapstructure:"allowed_origins"`
		PublicURL      string        `mapstructure:"public_url"`
		ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	} `mapstructure:"http"`

	Postgres struct {
		DSN        string
		Migrations bool
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
		Issuer    string
	} `mapstructure:"auth"`

	// Secrets — клиент шлюза секретов (получение ключей при старте).
	Secrets struct {
		URL     string
		APIKey  string        `mapstructure:"api_key"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"secrets"`

	// Gateway — сам шлюз секретов (cmd/secrets-gateway).
	Gateway struct {
		Addr           string
		APIKey         string   `mapstructure:"api_key"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"gateway"`

	// Credentials отдаёт шлюз; в API используются как запасной вариант.
	Credentials secrets.Bundle `mapstructure:"credentials"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
		Timeout     int
	} `mapstructure:"telegram"`

	Generator struct {
		Model             string
		RequestsPerMinute int `mapstructure:"requests_per_minute"`
		Burst             int
	} `mapstructure:"generator"`
}

func Load(path string) (Config, error) {
	// .env необязателен: в проде всё приходит из окружения
	_ = gotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("postgres.migrations", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("auth.issuer", "iteach")
	v.SetDefault("secrets.timeout", 10*time.Second)
	v.SetDefault("gateway.addr", ":8787")
	v.SetDefault("telegram.timeout", 30)
	v.SetDefault("generator.model", "gemini-1.5-flash")
	v.SetDefault("generator.requests_per_minute", 6)
	v.SetDefault("generator.burst", 2)
	// ключи без значения по умолчанию всё равно регистрируем, иначе AutomaticEnv их не увидит
	for _, k := range []string{
		"postgres.dsn", "auth.jwt_secret", "secrets.url", "secrets.api_key", "gateway.api_key",
		"telegram.token", "telegram.admin_chat_id",
		"credentials.stripe.secret_key", "credentials.stripe.webhook_secret",
		"credentials.stripe.premium_price_id", "credentials.stripe.pro_price_id",
		"credentials.gemini.api_key", "credentials.openai.api_key",
	} {
		v.SetDefault(k, nil)
	}
}
