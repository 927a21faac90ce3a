package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JACT-22/cobranza-funeraria/config"
	"github.com/JACT-22/cobranza-funeraria/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// CachedCollector is the authenticated identity kept in the cache between
// requests.
type CachedCollector struct {
	UserID uint   `json:"user_id"`
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// AuthMiddleware validates the session token and attaches the collector
// identity to the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie("auth_token")
		if err != nil || tokenStr == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				handleAuthError(c, "Missing token")
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handleAuthError(c, "Invalid Authorization header format")
				return
			}
			tokenStr = parts[1]
		}

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return config.JwtKey, nil
		})
		if err != nil || !token.Valid {
			handleAuthError(c, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			handleAuthError(c, "Invalid token claims")
			return
		}
		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			handleAuthError(c, "Invalid subject in token")
			return
		}

		cacheKey := "collector:" + sub
		if config.RDB != nil {
			cached, err := config.RDB.Get(config.Ctx, cacheKey).Result()
			if err == nil {
				var data CachedCollector
				if json.Unmarshal([]byte(cached), &data) == nil {
					setContextAndProceed(c, &data)
					return
				}
				slog.Warn("Failed to unmarshal cached collector", "key", cacheKey)
			} else if err != redis.Nil {
				slog.Error("Redis GET command failed", "error", err, "key", cacheKey)
			}
		}

		var dbUser models.User
		if err := config.DB.Where("uuid = ? AND active = ?", sub, true).First(&dbUser).Error; err != nil {
			handleAuthError(c, "User from token not found")
			return
		}

		data := CachedCollector{
			UserID: dbUser.ID,
			UUID:   dbUser.UUID,
			Name:   dbUser.Name,
			Role:   dbUser.Role,
		}

		if config.RDB != nil {
			if jsonData, err := json.Marshal(data); err == nil {
				if err := config.RDB.Set(config.Ctx, cacheKey, jsonData, 10*time.Minute).Err(); err != nil {
					slog.Error("Failed to cache collector", "error", err, "key", cacheKey)
				}
			}
		}

		setContextAndProceed(c, &data)
	}
}

func setContextAndProceed(c *gin.Context, data *CachedCollector) {
	c.Set("collector_id", data.UserID)
	c.Set("collector_uuid", data.UUID)
	c.Set("userName", data.Name)
	c.Set("role", data.Role)
	c.Next()
}

// RequireAdmin gates routes reserved for the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, exists := c.Get("role"); exists {
			if roleName, ok := role.(string); ok && roleName == "admin" {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "FORBIDDEN", "message": "Permission denied"}})
		c.Abort()
	}
}

func handleAuthError(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": message}})
	c.Abort()
}
