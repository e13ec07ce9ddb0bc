package router

import (
	"fmt"
	"net/http"
	"strings"

	"mood/internal/config"
	"mood/internal/handlers"
	"mood/internal/metrics"
	"mood/internal/middleware"
	"mood/internal/services"
	"mood/internal/utils"
	"mood/web"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	SessionName   = "mood_session"
	cacheCapacity = 4096
)

// Deps is everything the HTTP layer needs from the process.
type Deps struct {
	Config   config.Config
	DB       *gorm.DB
	Logger   *zap.SugaredLogger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// New builds a fully wired engine: sessions, templates, current user and routes.
func New(d Deps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	r.Use(gin.Recovery())
	if d.Config.IsDevEnvironment() {
		r.Use(gin.Logger())
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	store := cookie.NewStore([]byte(d.Config.Auth.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   strings.HasPrefix(d.Config.BaseURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(SessionName, store))

	renderer, err := web.LoadTemplates()
	if err != nil {
		return nil, err
	}
	r.HTMLRender = renderer

	r.Use(middleware.LoadUser(d.DB))

	if err := RegisterRoutes(r, d); err != nil {
		return nil, err
	}
	return r, nil
}

func RegisterRoutes(r *gin.Engine, d Deps) error {
	cache, err := utils.NewCache(cacheCapacity)
	if err != nil {
		return err
	}
	throttle := middleware.LoginThrottle(cache, d.Config.Auth.LoginRateLimit, d.Config.Auth.LoginRateWindow, d.Metrics)

	// Services
	voteService := services.NewVoteService(d.DB, d.Logger, d.Metrics)
	resultsService := services.NewResultsService(d.DB, d.Logger)
	campaignService := services.NewCampaignService(d.DB, d.Logger, d.Metrics, d.Config.PollURL)
	authService := services.NewAuthService(d.DB, d.Logger, d.Metrics, cache, d.Config.Auth.InvitationKey)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, d.Logger)
	voteHandler := handlers.NewVoteHandler(voteService, d.Logger)
	pollHandler := handlers.NewPollHandler(voteService, d.Logger)
	campaignHandler := handlers.NewCampaignHandler(campaignService, d.Logger)
	resultsHandler := handlers.NewResultsHandler(resultsService, campaignService, d.Metrics, d.Logger)
	healthHandler := handlers.NewHealthHandler(d.DB, d.Logger)

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/admin")
	})
	r.GET("/healthz", healthHandler.Healthz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// Authentication pages
	r.GET("/register", authHandler.ShowRegister)
	r.POST("/register", throttle, authHandler.Register)
	r.GET("/login", authHandler.ShowLogin)
	r.POST("/login", throttle, authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	// Anonymous voting
	r.GET("/poll/closed", pollHandler.Closed)
	r.GET("/poll/:token", pollHandler.Show)
	r.POST("/poll/:token", pollHandler.Submit)
	r.POST("/votes", voteHandler.Submit)
	r.GET("/votes/status", voteHandler.Status)

	// Admin pages
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired())
	{
		admin.GET("", campaignHandler.AdminIndex)
		admin.POST("/campaigns", campaignHandler.AdminCreate)
		admin.GET("/campaigns/:id", campaignHandler.AdminDetail)
		admin.POST("/campaigns/:id/managers", campaignHandler.AdminAddManager)
		admin.POST("/campaigns/:id/archive", campaignHandler.AdminArchive)
		admin.GET("/results", resultsHandler.Page)
	}

	api := r.Group("/api")
	api.GET("/poll/:token", pollHandler.Info)
	api.GET("/auth/can-register", authHandler.CanRegister)
	api.POST("/auth/login", throttle, authHandler.APILogin)
	api.POST("/auth/register", throttle, authHandler.APIRegister)
	api.POST("/auth/logout", authHandler.APILogout)

	// Admin JSON API
	authorized := r.Group("/")
	authorized.Use(middleware.APIAuthRequired())
	{
		authorized.GET("/campaigns", campaignHandler.List)
		authorized.POST("/campaigns", campaignHandler.Create)
		authorized.GET("/campaigns/:id/links", campaignHandler.Links)
		authorized.GET("/campaigns/:id/managers", campaignHandler.Managers)
		authorized.POST("/campaigns/:id/managers", campaignHandler.AddManager)
		authorized.PATCH("/campaigns/:id/archive", campaignHandler.Archive)
		authorized.GET("/campaigns/:id/export.csv", resultsHandler.Export)
		authorized.GET("/managers", campaignHandler.AllManagers)
		authorized.GET("/results", resultsHandler.Results)
		authorized.GET("/results/campaigns", resultsHandler.CampaignOptions)
	}

	r.NoRoute(func(c *gin.Context) {
		handlers.RenderError(c, http.StatusNotFound, "Page introuvable")
	})
	return nil
}
