package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	domainbooking "courtbook/internal/domain/booking"
)

const principalContextKey = "courtbook.principal"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	// RoleSystem is held by trusted services reporting payment outcomes.
	RoleSystem = "system"
)

// Claims is the token payload. The subject is the numeric user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type principal struct {
	UserID int64
	Role   string
}

func (p principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p principal) Actor() domainbooking.Actor {
	switch p.Role {
	case RoleAdmin:
		return domainbooking.ActorAdmin
	case RoleSystem:
		return domainbooking.ActorSystem
	}
	return domainbooking.ActorCustomer
}

// AuthMiddleware resolves a bearer token into a principal. Requests without a
// token pass through anonymous; a bad token is rejected.
type AuthMiddleware struct {
	Secret []byte
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.Next()
		return
	}
	p, err := m.parse(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set(principalContextKey, p)
	c.Next()
}

func (m AuthMiddleware) parse(raw string) (principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return principal{}, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return principal{}, errors.New("subject is not a user id")
	}
	role := strings.ToLower(strings.TrimSpace(claims.Role))
	if role == "" {
		role = RoleCustomer
	}
	return principal{UserID: id, Role: role}, nil
}

// IssueToken signs a token for userID. Used by tests and local tooling.
func IssueToken(secret []byte, userID int64, role string) (string, error) {
	claims := Claims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(userID, 10)},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireRole(c *gin.Context, role string) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	if role != "" && p.Role != role {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
