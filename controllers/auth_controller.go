package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/postgen/postgen/clients"
	"github.com/postgen/postgen/common"
	"github.com/postgen/postgen/middleware"
	"github.com/postgen/postgen/models"
	"github.com/postgen/postgen/services"
	"github.com/postgen/postgen/utils"
)

const oauthStateTTL = 10 * time.Minute

// AuthOptions configures the Mastodon login flow.
type AuthOptions struct {
	ClientID     string
	ClientSecret string
	RedirectBase string // public base URL of this server
	SecureCookie bool
}

// AuthController handles Mastodon OAuth login, session checks and logout.
type AuthController struct {
	accounts *services.AccountService
	mastodon *clients.MastodonClient
	jwt      *utils.JWTManager
	opts     AuthOptions
}

// NewAuthController creates an AuthController.
func NewAuthController(accounts *services.AccountService, mastodon *clients.MastodonClient, jwt *utils.JWTManager, opts AuthOptions) *AuthController {
	return &AuthController{accounts: accounts, mastodon: mastodon, jwt: jwt, opts: opts}
}

// CheckAuth reports whether the request carries a valid session.
func (a *AuthController) CheckAuth(ctx *gin.Context) {
	id := middleware.CurrentIdentity(ctx)
	body := gin.H{"authenticated": id.Authenticated()}
	if id.Authenticated() {
		body["username"] = id.Username
	}
	ctx.JSON(http.StatusOK, body)
}

func (a *AuthController) oauthConfig() (*oauth2.Config, error) {
	if a.opts.ClientID == "" || a.opts.ClientSecret == "" || !a.mastodon.Configured() {
		return nil, common.Validation("Mastodon login is not configured")
	}
	return &oauth2.Config{
		ClientID:     a.opts.ClientID,
		ClientSecret: a.opts.ClientSecret,
		RedirectURL:  strings.TrimRight(a.opts.RedirectBase, "/") + "/auth/complete/mastodon/",
		Scopes:       []string{"read", "write"},
		Endpoint:     a.mastodon.OAuthEndpoint(),
	}, nil
}

// OAuthLogin returns the Mastodon authorization URL.
func (a *AuthController) OAuthLogin(ctx *gin.Context) {
	cfg, err := a.oauthConfig()
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}

	state := uuid.NewString()
	utils.SaveState(ctx.Request.Context(), state, oauthStateTTL)
	ctx.JSON(http.StatusOK, gin.H{"authorization_url": cfg.AuthCodeURL(state), "state": state})
}

// OAuthCallback exchanges the authorization code, links the Mastodon account
// to the local user and starts a session.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, "Missing code or state")
		return
	}
	if !utils.ConsumeState(ctx.Request.Context(), state) {
		utils.Error(ctx, http.StatusBadRequest, "Invalid or expired state")
		return
	}

	cfg, err := a.oauthConfig()
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}

	exchangeCtx := context.WithValue(ctx.Request.Context(), oauth2.HTTPClient, a.mastodon.HTTPClient())
	token, err := cfg.Exchange(exchangeCtx, code)
	if err != nil {
		utils.Sugar.Warnw("mastodon code exchange failed", "err", err)
		utils.Error(ctx, http.StatusBadRequest, "Failed to exchange code")
		return
	}

	acct, err := a.mastodon.VerifyCredentials(ctx.Request.Context(), token.AccessToken)
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}

	user, err := a.accounts.LoginWithProvider(ctx.Request.Context(), models.PlatformMastodon, acct.ID, acct.Username, token.AccessToken)
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}

	session, expiresAt, err := a.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}
	a.setSessionCookie(ctx, session, int(time.Until(expiresAt).Seconds()))
	ctx.JSON(http.StatusOK, gin.H{"token": session, "username": user.Username})
}

// Logout revokes the current session token until it would have expired.
func (a *AuthController) Logout(ctx *gin.Context) {
	if token := middleware.CurrentToken(ctx); token != "" {
		expiresAt := time.Now().Add(72 * time.Hour)
		if claims, err := a.jwt.ParseToken(token); err == nil && claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
		utils.BlacklistToken(ctx.Request.Context(), token, expiresAt)
	}
	a.setSessionCookie(ctx, "", -1)
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *AuthController) setSessionCookie(ctx *gin.Context, value string, maxAge int) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middleware.SessionCookie, value, maxAge, "/", "", a.opts.SecureCookie, true)
}
