package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/degree-audit-api/pkg/config"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
	"github.com/noah-isme/degree-audit-api/pkg/response"
)

// ContextCallerKey is the gin context key storing the validated caller
// identity from the service token.
const ContextCallerKey = "caller"

// ServiceToken protects routes by requiring a valid bearer token issued
// to an upstream service (SIS, advising portal). When no secret is
// configured the middleware is a no-op so local development works
// without a token issuer.
func ServiceToken(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Secret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		parser := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
		if cfg.Issuer != "" {
			parser = append(parser, jwt.WithIssuer(cfg.Issuer))
		}
		if cfg.Audience != "" {
			parser = append(parser, jwt.WithAudience(cfg.Audience))
		}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		}, parser...)
		if err != nil || !token.Valid {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid service token"))
			c.Abort()
			return
		}

		if sub, _ := claims.GetSubject(); sub != "" {
			c.Set(ContextCallerKey, sub)
		}
		c.Next()
	}
}
