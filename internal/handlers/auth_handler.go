package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/JACT-22/cobranza-funeraria/config"
	"github.com/JACT-22/cobranza-funeraria/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=3"`
}

// LoginHandler checks collector credentials and issues a short-lived token.
func LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid credentials payload")
		return
	}

	var user models.User
	if err := config.DB.Where("username = ? AND active = ?", req.Username, true).First(&user).Error; err != nil {
		errorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		errorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
		return
	}

	claims := jwt.MapClaims{
		"sub":  user.UUID,
		"role": user.Role,
		"name": user.Name,
		"exp":  time.Now().Add(2 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(config.JwtKey)
	if err != nil {
		slog.Error("Failed to sign token", "error", err, "user", user.Username)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"user": gin.H{
			"uuid": user.UUID,
			"role": user.Role,
			"name": user.Name,
		},
	})
}
