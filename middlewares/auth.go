package middlewares

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// ParticipantKey is the gin context key the identity middleware sets.
	ParticipantKey = "participantId"

	guestCookie = "sparhub_guest"
	guestMaxAge = 60 * 60 * 24 * 365
)

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IdentityMiddleware resolves the calling participant. A valid bearer token
// supplies the identity; otherwise the caller gets a stable guest identity
// carried in a cookie. Requests are never rejected for missing identity;
// guest access is a supported mode.
func IdentityMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := identityFromToken(c, jwtSecret); ok {
			c.Set(ParticipantKey, id)
			c.Next()
			return
		}
		c.Set(ParticipantKey, guestIdentity(c))
		c.Next()
	}
}

func identityFromToken(c *gin.Context, jwtSecret string) (string, bool) {
	if jwtSecret == "" {
		return "", false
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}

	parsed := &claims{}
	token, err := jwt.ParseWithClaims(parts[1], parsed, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	if parsed.Email != "" {
		return parsed.Email, true
	}
	if parsed.Subject != "" {
		return parsed.Subject, true
	}
	return "", false
}

// guestIdentity reads the guest cookie, issuing one on first contact so the
// same anonymous caller keeps a stable identity (vote deduplication and
// session listing depend on it).
func guestIdentity(c *gin.Context) string {
	if id, err := c.Cookie(guestCookie); err == nil && id != "" {
		return id
	}
	id := "guest-" + uuid.NewString()
	c.SetCookie(guestCookie, id, guestMaxAge, "/", "", false, true)
	return id
}
