package control

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer token's claim set: just a registered-claims
// envelope, the way JWTClaims wraps jwt.RegisteredClaims
// with nothing extra (the control plane doesn't need per-user scoping,
// just "does the caller hold a token signed with our secret").
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken mints a bearer token for an operator session, signed with
// secret and valid for ttl, mirroring an authService.generateAccessToken
// shape (HS256 over jwt.RegisteredClaims).
func IssueToken(secret string, subject string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// RequireAuth guards the control-plane API with an HS256 bearer token,
// extracted the same three ways AuthMiddleware tries
// (query param, then Authorization header) minus the JSON-body fallback,
// which doesn't apply to GET-heavy ops endpoints.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		_, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if q := c.Query("token"); q != "" {
		return q
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
