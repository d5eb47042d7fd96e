package main

import (
	"time"

	"github.com/postgen/postgen/clients"
	"github.com/postgen/postgen/config"
	"github.com/postgen/postgen/models"
	"github.com/postgen/postgen/routes"
	"github.com/postgen/postgen/services"
	"github.com/postgen/postgen/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.InitDatabase(cfg, models.All()...)
	if err != nil {
		utils.Sugar.Fatalf("database init failed: %v", err)
	}
	utils.InitRedis(cfg)

	ai := clients.NewAIClient(clients.AIConfig{
		BaseURL:     cfg.OpenAIBaseURL,
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.OutboundTimeout(),
		MaxRetries:  cfg.AIMaxRetries,
	})
	mastodon := clients.NewMastodonClient(clients.MastodonConfig{
		InstanceURL: cfg.MastodonInstance,
		Timeout:     cfg.OutboundTimeout(),
	})
	if !mastodon.Configured() {
		utils.Sugar.Warn("SOCIAL_AUTH_MASTODON_INSTANCE not set, publishing and Mastodon login are disabled")
	}

	sealKey := cfg.TokenEncryptionKey
	if sealKey == "" {
		sealKey = cfg.JWTSecret
	}
	accounts := services.NewAccountService(db, utils.NewTokenSealer(sealKey))

	r := routes.SetupRouter(cfg, routes.Dependencies{
		DB:        db,
		Posts:     services.NewPostService(db, ai, time.Duration(cfg.PostsCacheTTLSec)*time.Second),
		Accounts:  accounts,
		Publisher: services.NewPublishService(accounts, mastodon),
		Mastodon:  mastodon,
		JWT:       utils.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL()),
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
