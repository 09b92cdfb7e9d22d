package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/yoockh/scribe/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// JWTConfig describes the HS256 tokens issued by the identity provider.
// Issuer and Audience are checked only when set.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// ContextUserID is the gin context key holding the token subject.
const ContextUserID = "user_id"

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{Code: utils.CodeUnauthorized, Message: msg})
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter since browsers cannot set headers on a
// WebSocket handshake.
func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(c.Query("access_token"))
}

func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apiError{
				Code:    utils.CodeInternal,
				Message: "JWT_SECRET is not set",
			})
			return
		}

		raw := bearerToken(c)
		if raw == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}

		claims := &jwt.RegisteredClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(cfg.Secret), nil
		}, opts...)
		if err != nil || tok == nil || !tok.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		if cfg.Audience != "" && !slices.Contains(claims.Audience, cfg.Audience) {
			abortUnauthorized(c, "invalid token audience")
			return
		}

		if claims.Subject == "" {
			abortUnauthorized(c, "missing subject")
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Next()
	}
}
