package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/dto"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/service"
)

const (
	userIDKey   = "userID"
	userRoleKey = "userRole"
)

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return authenticate(secret, false)
}

// OptionalAuth lets anonymous requests through but still rejects a
// malformed or expired token.
func OptionalAuth(secret string) gin.HandlerFunc {
	return authenticate(secret, true)
}

func authenticate(secret string, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" && optional {
			c.Next()
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(c, "missing bearer token")
			return
		}

		token, err := jwt.Parse(header[len("Bearer "):], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			unauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(c, "invalid claims")
			return
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			unauthorized(c, "invalid user id")
			return
		}

		roleClaim, _ := claims["role"].(string)
		role, err := model.ParseRole(roleClaim)
		if err != nil {
			unauthorized(c, "invalid role")
			return
		}

		c.Set(userIDKey, userID)
		c.Set(userRoleKey, role)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized", Message: msg})
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := GetActor(c); actor == nil || !actor.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden", Message: "admin only"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(userIDKey)
	uid, _ := id.(uuid.UUID)
	return uid
}

func GetUserRole(c *gin.Context) model.Role {
	role, _ := c.Get(userRoleKey)
	r, _ := role.(model.Role)
	return r
}

// GetActor returns the authenticated caller, or nil for anonymous requests.
func GetActor(c *gin.Context) *service.Actor {
	if _, ok := c.Get(userIDKey); !ok {
		return nil
	}
	return &service.Actor{UserID: GetUserID(c), Role: GetUserRole(c)}
}
