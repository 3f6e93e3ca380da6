package middleware

import (
	"net/http"
	"strings"

	"swadhan-eats/pkg/auth"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID       = "user_id"
	ctxRestaurantID = "restaurant_id"
	ctxRole         = "role"
	ctxEmail        = "email"
)

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
}

func NewAuthMiddleware(jwtManager *auth.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// AuthRequired accepts only access tokens presented as "Bearer <token>".
func (a *AuthMiddleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := a.jwtManager.ValidateAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRestaurantID, claims.RestaurantID)
		c.Set(ctxRole, claims.Role)
		c.Set(ctxEmail, claims.Email)
		c.Next()
	}
}

// RoleRequired must run after AuthRequired.
func (a *AuthMiddleware) RoleRequired(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetUserRole(c)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Role information missing"})
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

// FulfilmentRequired lets through anyone who can move an order along.
func (a *AuthMiddleware) FulfilmentRequired() gin.HandlerFunc {
	return a.RoleRequired("restaurant_staff", "courier", "admin")
}

func (a *AuthMiddleware) AdminRequired() gin.HandlerFunc {
	return a.RoleRequired("admin")
}

func contextString(c *gin.Context, key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func GetUserID(c *gin.Context) string {
	return contextString(c, ctxUserID)
}

func GetRestaurantID(c *gin.Context) string {
	return contextString(c, ctxRestaurantID)
}

func GetUserRole(c *gin.Context) string {
	return contextString(c, ctxRole)
}
