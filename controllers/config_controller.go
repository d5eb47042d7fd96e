package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postgen/postgen/config"
	"github.com/postgen/postgen/models"
)

// ConfigController serves the non-secret settings the front-end needs.
type ConfigController struct {
	cfg config.AppConfig
}

func NewConfigController(cfg config.AppConfig) *ConfigController { return &ConfigController{cfg: cfg} }

// GetPublicConfig returns platform and login settings. Secrets are never included.
func (c *ConfigController) GetPublicConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"platforms":         models.SupportedPlatforms,
		"mastodon_instance": c.cfg.MastodonInstance,
		"mastodon_login":    c.cfg.MastodonClientID != "" && c.cfg.MastodonInstance != "",
		"ai_model":          c.cfg.OpenAIModel,
	})
}
