package secrets

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Gateway отдаёт Bundle по GET с ключом в заголовке X-API-Key.
type Gateway struct {
	apiKey string
	bundle Bundle
	log    *slog.Logger
}

func NewGateway(apiKey string, bundle Bundle, log *slog.Logger) *Gateway {
	return &Gateway{apiKey: apiKey, bundle: bundle, log: log}
}

// Handler собирает gin-движок шлюза. CORS пускает только origin из allowed.
func (g *Gateway) Handler(allowed []string) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.HandleMethodNotAllowed = true

	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		origins[o] = struct{}{}
	}
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			_, ok := origins[origin]
			return ok
		},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", HeaderAPIKey},
		MaxAge:       24 * time.Hour,
	}))

	r.GET("/", g.serve)
	r.GET("/secrets", g.serve)
	return r
}

func (g *Gateway) serve(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	if g.apiKey == "" {
		g.log.Error("gateway api key is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Configuration Error",
			"details": "Gateway API key is not configured",
		})
		return
	}

	key := c.GetHeader(HeaderAPIKey)
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(g.apiKey)) != 1 {
		g.log.Warn("gateway authentication failed", "has_key", key != "", "origin", c.GetHeader("Origin"))
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"details": "Invalid or missing API key",
		})
		return
	}

	c.JSON(http.StatusOK, g.bundle)
}
