package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/postgen/postgen/clients"
	"github.com/postgen/postgen/config"
	"github.com/postgen/postgen/controllers"
	"github.com/postgen/postgen/middleware"
	"github.com/postgen/postgen/services"
	"github.com/postgen/postgen/utils"
)

// Dependencies are the long-lived objects built in main and shared by handlers.
type Dependencies struct {
	DB        *gorm.DB
	Posts     *services.PostService
	Accounts  *services.AccountService
	Publisher *services.PublishService
	Mastodon  *clients.MastodonClient
	JWT       *utils.JWTManager
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Dependencies) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	gl := utils.Logger
	if cfg.GinPath != "" {
		if l, err := utils.NewRollingFileLogger(cfg, cfg.GinPath); err == nil {
			gl = l
		} else {
			utils.Sugar.Warnf("gin file logger disabled: %v", err)
		}
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		// browsers refuse credentials with a literal "*", so echo the origin back
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.Metrics())
	r.Use(middleware.Identity(deps.JWT))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	postController := controllers.NewPostController(deps.Posts)
	accountController := controllers.NewAccountController(deps.Accounts)
	mastodonController := controllers.NewMastodonController(deps.Publisher)
	authController := controllers.NewAuthController(deps.Accounts, deps.Mastodon, deps.JWT, controllers.AuthOptions{
		ClientID:     cfg.MastodonClientID,
		ClientSecret: cfg.MastodonClientSecret,
		RedirectBase: cfg.OAuthRedirectBase,
		SecureCookie: strings.HasPrefix(cfg.OAuthRedirectBase, "https://"),
	})
	statsController := controllers.NewStatsController(deps.DB)
	configController := controllers.NewConfigController(cfg)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMinute)

	r.POST("/generate/", limiter.Middleware(), postController.Generate)
	r.GET("/posts/", postController.ListPosts)
	r.POST("/edit-post/:id/", postController.EditPost)
	r.GET("/post-history/:id/", postController.PostHistory)
	r.DELETE("/delete-post/:id/", postController.DeletePost)
	r.POST("/restore-post/:id/", postController.RestorePost)

	r.GET("/check-auth/", authController.CheckAuth)
	r.GET("/linked-accounts/", accountController.LinkedAccounts)
	r.POST("/link-mastodon/", accountController.LinkMastodon)
	r.POST("/unlink-account/", accountController.UnlinkAccount)

	r.Any("/mastodon/:message/", mastodonController.PublishPath)
	r.POST("/mastodon-post/", mastodonController.PublishBody)

	auth := r.Group("/auth")
	auth.Use(limiter.Middleware())
	auth.GET("/login/mastodon/", authController.OAuthLogin)
	auth.GET("/complete/mastodon/", authController.OAuthCallback)
	r.POST("/logout/", authController.Logout)

	r.GET("/stats/", statsController.GetStats)
	r.GET("/config/", configController.GetPublicConfig)

	r.NoMethod(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusMethodNotAllowed, "Invalid request method")
	})
	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, "Not found")
	})

	return r
}
