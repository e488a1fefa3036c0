package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/services"
	"github.com/thereayou/loci-chat/pkg/auth"
)

const (
	UserIDKey = "userID"
	ClaimsKey = "claims"
)

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "code": "UNAUTHORIZED", "message": msg})
}

// AuthMiddleware checks the bearer token in the Authorization header.
// revocations may be nil when no blacklist is configured.
func AuthMiddleware(verifier services.TokenVerifier, revocations services.TokenRevocations) gin.HandlerFunc {
	return authenticate(verifier, revocations, auth.ExtractTokenFromHeader)
}

// WSAuthMiddleware also accepts ?token= since browsers cannot set headers on upgrade.
func WSAuthMiddleware(verifier services.TokenVerifier, revocations services.TokenRevocations) gin.HandlerFunc {
	return authenticate(verifier, revocations, auth.ExtractToken)
}

func authenticate(verifier services.TokenVerifier, revocations services.TokenRevocations, extract func(*http.Request) (string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extract(c.Request)
		if err != nil {
			unauthorized(c, "missing or invalid token")
			return
		}

		if revocations != nil {
			revoked, err := revocations.IsRevoked(c.Request.Context(), token)
			if err != nil {
				logger.Ctx(c.Request.Context()).Warn().Err(err).Msg("token revocation check failed")
			}
			if err != nil || revoked {
				unauthorized(c, "token is blacklisted")
				return
			}
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			unauthorized(c, "invalid user id")
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the verified token claims of the request.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
