package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postgen/postgen/clients"
	"github.com/postgen/postgen/middleware"
	"github.com/postgen/postgen/services"
	"github.com/postgen/postgen/utils"
)

// MastodonController publishes statuses to the caller's linked Mastodon account.
type MastodonController struct {
	publisher *services.PublishService
}

// NewMastodonController creates a new MastodonController instance.
func NewMastodonController(publisher *services.PublishService) *MastodonController {
	return &MastodonController{publisher: publisher}
}

// PublishPath publishes the :message path segment.
func (m *MastodonController) PublishPath(ctx *gin.Context) {
	m.publish(ctx, ctx.Param("message"))
}

// PublishBody publishes {"message": ...}.
func (m *MastodonController) PublishBody(ctx *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := bindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err, gin.H{"success": false})
		return
	}
	m.publish(ctx, req.Message)
}

func (m *MastodonController) publish(ctx *gin.Context, message string) {
	result, err := m.publisher.PublishForUser(ctx.Request.Context(), middleware.CurrentIdentity(ctx), message)
	if err != nil {
		utils.Fail(ctx, err, gin.H{"success": false})
		return
	}
	ctx.JSON(publishStatus(result), result)
}

// publishStatus reports a provider rejection as an upstream failure.
func publishStatus(result clients.PublishResult) int {
	if result.Success {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
