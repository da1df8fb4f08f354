package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const HeaderAPIKey = "X-API-Key"

// Client получает Bundle со шлюза один раз за жизнь процесса.
// Параллельные вызовы до первого ответа делят один запрос.
type Client struct {
	url      string
	apiKey   string
	http     *http.Client
	log      *slog.Logger
	fallback *Bundle

	group  singleflight.Group
	mu     sync.RWMutex
	cached *Bundle
}

func NewClient(url, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    strings.TrimSpace(url),
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
		log:    log,
	}
}

// WithFallback задаёт локальный набор ключей на случай недоступности шлюза.
func (c *Client) WithFallback(b Bundle) *Client {
	c.fallback = &b
	return c
}

func (c *Client) Load(ctx context.Context) (Bundle, error) {
	c.mu.RLock()
	if c.cached != nil {
		b := *c.cached
		c.mu.RUnlock()
		return b, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("bundle", func() (any, error) {
		c.mu.RLock()
		if c.cached != nil {
			b := *c.cached
			c.mu.RUnlock()
			return b, nil
		}
		c.mu.RUnlock()

		b, err := c.resolve(context.WithoutCancel(ctx))
		if err != nil {
			return Bundle{}, err
		}
		c.mu.Lock()
		c.cached = &b
		c.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return Bundle{}, err
	}
	return v.(Bundle), nil
}

func (c *Client) resolve(ctx context.Context) (Bundle, error) {
	if c.url == "" {
		return c.useFallback(errors.New("secrets gateway url is not configured"))
	}
	b, err := c.fetch(ctx)
	if err == nil {
		err = b.Validate()
	}
	if err != nil {
		return c.useFallback(err)
	}
	c.log.Info("secrets loaded from gateway")
	return b, nil
}

func (c *Client) useFallback(cause error) (Bundle, error) {
	if c.fallback == nil {
		return Bundle{}, fmt.Errorf("fetch secrets: %w", cause)
	}
	if err := c.fallback.Validate(); err != nil {
		return Bundle{}, fmt.Errorf("fetch secrets: %w (fallback: %w)", cause, err)
	}
	c.log.Warn("secrets gateway unavailable, using local credentials", "err", cause)
	return *c.fallback, nil
}

func (c *Client) fetch(ctx context.Context) (Bundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Bundle{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return Bundle{}, fmt.Errorf("request gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Bundle{}, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		_ = json.Unmarshal(body, &e)
		msg := strings.TrimSpace(e.Error + " " + e.Details)
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return Bundle{}, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return Bundle{}, fmt.Errorf("gateway returned %s: %s", resp.Status, msg)
	}

	var b Bundle
	if err := json.Unmarshal(body, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode gateway response: %w", err)
	}
	return b, nil
}
