package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"registra/internal/config"
)

// Context keys set by AuthMiddleware for downstream handlers.
const (
	ContextActorID = "actorID"
	ContextRoles   = "actorRoles"
)

// getJWTKey returns the JWT key from configuration
func getJWTKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// ActorClaims are the claims the external identity provider issues. The
// service trusts them as given and only records the actor id in audit
// fields; it never resolves roles itself.
type ActorClaims struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for an actor with the given role codes.
// Used by tests and local development; production tokens come from the
// identity provider.
func GenerateToken(actorID string, roles []string) (string, error) {
	claims := &ActorClaims{
		ActorID: actorID,
		Roles:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(config.Get().JWTExpirationDur)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "registra-api",
			Subject:   actorID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTKey())
}

// AuthMiddleware verifies the bearer token and sets the actor id and role
// codes in the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims := &ActorClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return getJWTKey(), nil
		})

		if err != nil || !token.Valid || claims.ActorID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextActorID, claims.ActorID)
		c.Set(ContextRoles, claims.Roles)
		c.Next()
	}
}
