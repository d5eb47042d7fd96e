package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/postgen/postgen/services"
	"github.com/postgen/postgen/utils"
)

const (
	// SessionCookie carries the session JWT for browser clients.
	SessionCookie = "sessionid"

	contextIdentityKey = "identity"
	contextTokenKey    = "session_token"
)

// Identity resolves the caller from a Bearer token or the session cookie.
// It never rejects a request; handlers decide what an anonymous caller may do.
func Identity(jwt *utils.JWTManager) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearerToken(ctx.GetHeader("Authorization"))
		if token == "" {
			token, _ = ctx.Cookie(SessionCookie)
		}
		if token == "" {
			ctx.Next()
			return
		}

		if utils.IsTokenBlacklisted(ctx.Request.Context(), token) {
			ctx.Next()
			return
		}

		claims, err := jwt.ParseToken(token)
		if err != nil {
			utils.Sugar.Debugw("ignoring invalid session token", "err", err)
			ctx.Next()
			return
		}

		ctx.Set(contextIdentityKey, services.Identity{UserID: claims.UserID, Username: claims.Username})
		ctx.Set(contextTokenKey, token)
		ctx.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CurrentIdentity returns the identity resolved by Identity, or services.Anonymous.
func CurrentIdentity(ctx *gin.Context) services.Identity {
	if v, ok := ctx.Get(contextIdentityKey); ok {
		if id, ok := v.(services.Identity); ok {
			return id
		}
	}
	return services.Anonymous
}

// CurrentToken returns the raw session token of an authenticated request.
func CurrentToken(ctx *gin.Context) string {
	return ctx.GetString(contextTokenKey)
}
