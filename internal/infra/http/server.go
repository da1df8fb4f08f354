package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Spok95/iteach/internal/auth"
	"github.com/Spok95/iteach/internal/domain/exercises"
	"github.com/Spok95/iteach/internal/domain/subscriptions"
	"github.com/Spok95/iteach/internal/domain/users"
	"github.com/Spok95/iteach/internal/infra/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Profiles — хранилище анкет пользователей.
type Profiles interface {
	Get(ctx context.Context, id string) (*users.Profile, error)
	Upsert(ctx context.Context, p users.Profile) (*users.Profile, error)
	ListWithExercises(ctx context.Context) ([]users.WithExercises, error)
}

type Checkout interface {
	CheckoutURL(ctx context.Context, userID, email string, tier subscriptions.Tier) (string, error)
}

type Deps struct {
	Log       *slog.Logger
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer // nil — без /metrics
	Auth      *auth.Verifier
	Ledger    *subscriptions.Ledger
	Profiles  Profiles
	Exercises *exercises.Service
	Checkout  Checkout
	Webhook   http.Handler

	AllowedOrigins []string
	Generation     RateLimitConfig
	ReadTimeout    time.Duration
}

type Server struct {
	srv *http.Server
}

func New(addr string, d Deps) *Server {
	timeout := d.ReadTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           newEngine(d),
		ReadHeaderTimeout: timeout,
	}}
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func newEngine(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log, d.Metrics))

	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	if d.Webhook != nil {
		r.POST("/webhooks/stripe", gin.WrapH(d.Webhook))
	}

	h := &handlers{
		log:       d.Log,
		ledger:    d.Ledger,
		profiles:  d.Profiles,
		exercises: d.Exercises,
		checkout:  d.Checkout,
	}

	v1 := r.Group("/api/v1")
	v1.GET("/plans", h.plans)

	api := v1.Group("")
	api.Use(auth.Middleware(d.Auth))
	{
		api.GET("/me/profile", h.getProfile)
		api.PUT("/me/profile", h.putProfile)
		api.GET("/me/subscription", h.usage)

		api.POST("/subscription/checkout", h.checkoutSession)
		api.POST("/subscription/free", h.switchToFree)

		api.GET("/exercises", h.listExercises)
		api.GET("/exercises/mine", h.myExercises)
		api.GET("/exercises/stats", h.stats)
		api.POST("/exercises", h.createExercise)
		api.POST("/exercises/generate", rateLimit(d.Generation), h.generateExercise)
		api.GET("/exercises/:id", h.getExercise)
		api.PUT("/exercises/:id", h.updateExercise)
		api.DELETE("/exercises/:id", h.deleteExercise)
		api.POST("/exercises/:id/like", h.toggleLike)
		api.POST("/exercises/:id/comments", h.addComment)
		api.PUT("/exercises/:id/comments/:commentID", h.editComment)
		api.DELETE("/exercises/:id/comments/:commentID", h.deleteComment)
		api.POST("/exercises/:id/reports", h.report)
	}

	admin := api.Group("/admin")
	admin.Use(auth.RequireAdmin())
	{
		admin.GET("/reports", h.reported)
		admin.PUT("/exercises/:id/reports/:reportID", h.setReportStatus)
		admin.POST("/exercises/bulk-delete", h.bulkDelete)
		admin.GET("/users", h.listUsers)
		admin.GET("/stats", h.globalStats)
		admin.POST("/exercises/import", h.importExercises)
		admin.GET("/exercises/export", h.exportExercises)
	}

	return r
}
