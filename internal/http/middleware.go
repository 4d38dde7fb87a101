package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// TokenAuth guards the ingestion endpoint. The credential is the last
// whitespace-separated segment of the Authorization header, so "Token k",
// "Bearer k" and a bare "k" all work. A segment that is not the configured
// key is additionally tried as an HS256 JWT signed with that key, for
// camera fleets that rotate short-lived tokens.
func TokenAuth(apiKey string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Not allowed",
				"error":   "Missing authorization header",
			})
			return
		}

		parts := strings.Fields(header)
		token := parts[len(parts)-1]

		if token == apiKey {
			c.Next()
			return
		}

		if _, err := parseHS256(token, apiKey); err == nil {
			c.Next()
			return
		}

		log.Warn().Str("ip", c.ClientIP()).Msg("rejected ingestion request with invalid credential")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"message": "Wrong credentials",
			"error":   "Invalid API key",
		})
	}
}

// OperatorAuth guards the acknowledge endpoints. It requires a valid JWT
// and records the subject as the acknowledging operator.
func OperatorAuth(apiKey string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Not allowed",
				"error":   "Missing authorization header",
			})
			return
		}

		parts := strings.Fields(header)
		claims, err := parseHS256(parts[len(parts)-1], apiKey)
		if err != nil {
			log.Warn().Err(err).Str("ip", c.ClientIP()).Msg("rejected operator request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Wrong credentials",
				"error":   "Invalid operator token",
			})
			return
		}

		operator := "unknown"
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			operator = sub
		}
		c.Set("operator", operator)
		c.Next()
	}
}

func parseHS256(token, secret string) (jwt.Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return parsed.Claims, nil
}
