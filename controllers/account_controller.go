package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/postgen/postgen/middleware"
	"github.com/postgen/postgen/models"
	"github.com/postgen/postgen/services"
	"github.com/postgen/postgen/utils"
)

// AccountController manages the caller's linked platform accounts.
type AccountController struct {
	accounts *services.AccountService
}

// NewAccountController creates a new AccountController instance.
func NewAccountController(accounts *services.AccountService) *AccountController {
	return &AccountController{accounts: accounts}
}

// LinkedAccounts lists the caller's linked accounts.
func (a *AccountController) LinkedAccounts(ctx *gin.Context) {
	accounts, err := a.accounts.List(ctx.Request.Context(), middleware.CurrentIdentity(ctx))
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"linked_accounts": accounts})
}

// LinkMastodon stores a Mastodon token obtained by the client.
func (a *AccountController) LinkMastodon(ctx *gin.Context) {
	id := middleware.CurrentIdentity(ctx)
	if !id.Authenticated() {
		// identity is checked before the body is parsed
		utils.Fail(ctx, services.ErrNotAuthenticated, nil)
		return
	}

	var req struct {
		AccessToken string `json:"access_token"`
		Username    string `json:"username"`
	}
	if err := bindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err, nil)
		return
	}

	if err := a.accounts.Link(ctx.Request.Context(), id, models.PlatformMastodon, req.AccessToken, req.Username); err != nil {
		utils.Fail(ctx, err, nil)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": "Mastodon account linked!"})
}

// UnlinkAccount removes the caller's account on a platform.
func (a *AccountController) UnlinkAccount(ctx *gin.Context) {
	id := middleware.CurrentIdentity(ctx)
	if !id.Authenticated() {
		utils.Fail(ctx, services.ErrNotAuthenticated, nil)
		return
	}

	var req struct {
		Platform string `json:"platform"`
	}
	if err := bindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err, nil)
		return
	}

	if err := a.accounts.Unlink(ctx.Request.Context(), id, req.Platform); err != nil {
		utils.Fail(ctx, err, nil)
		return
	}
	platform := strings.TrimSpace(req.Platform)
	ctx.JSON(http.StatusOK, gin.H{"success": platform + " account unlinked successfully!"})
}
