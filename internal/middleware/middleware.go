package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/supabase-community/gotrue-go/types"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		// Log request completion
		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		requestID, _ := c.Get("request_id")

		level := slog.LevelInfo
		if statusCode >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "HTTP Request",
			"request_id", requestID,
			"method", method,
			"path", path,
			"status", statusCode,
			"latency", latency,
			"client_ip", clientIP,
		)
	}
}

// ErrorHandler provides centralized error handling
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Handle any errors that occurred during request processing
		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			requestID, _ := c.Get("request_id")

			logger.Error("Request error",
				"request_id", requestID,
				"error", err.Error(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)

			// handlers that already answered only need the log line
			if !c.Writer.Written() {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": requestID,
				})
			}
		}
	}
}

type TokenVerifier interface {
	Validate(token string) (*helpers.CustomClaims, error)
}

// SessionStore refreshes expired sessions and loads the caller's profile.
type SessionStore interface {
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error)
	GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error)
}

func unauthorized(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, helpers.ErrorResponse(detail, "Unauthorized access"))
}

func AuthMiddleware(verifier TokenVerifier, sessions SessionStore, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil {
			unauthorized(c, "JWT token not found in cookie")
			return
		}

		claims, err := verifier.Validate(token)
		if err != nil {
			// expired or invalid, try the refresh token once
			refreshToken, refreshErr := c.Cookie("refresh_token")
			if refreshErr != nil {
				unauthorized(c, err.Error())
				return
			}

			tokenRes, refreshErr := sessions.RefreshToken(c.Request.Context(), refreshToken)
			if refreshErr != nil || tokenRes == nil || tokenRes.AccessToken == "" {
				logger.Warn("Token refresh failed", "error", refreshErr)
				unauthorized(c, "Token expired and refresh failed")
				return
			}
			logger.Info("Token refreshed successfully",
				"user_id", tokenRes.User.ID,
				"expires_in", tokenRes.ExpiresIn,
			)
			helpers.SetAuthCookies(c, tokenRes)

			token = tokenRes.AccessToken
			claims, err = verifier.Validate(token)
			if err != nil {
				unauthorized(c, "Refreshed token validation failed")
				return
			}
		}

		enhanced := &helpers.EnhancedClaims{
			CustomClaims: claims,
			Role:         "guest",
			UserID:       claims.Subject,
			Email:        claims.Email,
		}

		userID, parseErr := uuid.Parse(claims.Subject)
		if parseErr != nil {
			logger.Error("Invalid user ID in token", "user_id", claims.Subject, "error", parseErr)
		} else {
			user, err := sessions.GetUser(c.Request.Context(), userID, token)
			switch {
			case err == nil:
				enhanced.HasProfile = true
				if user.Role != "" {
					enhanced.Role = user.Role
				}
				enhanced.Fullname = user.FullName
				enhanced.Gender = string(user.Gender)
				enhanced.AvatarURL = user.AvatarURL
				enhanced.CreatedAt = user.CreatedAt.Format(time.RFC3339)
			case errors.Is(err, models.ErrUserNotFound):
				logger.Info("Profile not found, using default role", "user_id", claims.Subject)
			default:
				logger.Warn("Profile lookup failed, using default role", "user_id", claims.Subject, "error", err)
			}
		}

		c.Set(helpers.ClaimsKey, enhanced)
		c.Set(helpers.AccessTokenKey, token)
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := helpers.CurrentUser(c)
		if !ok {
			unauthorized(c, "missing user claims")
			return
		}
		if !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, helpers.ErrorResponse("admin role required", "only event organisers can do this"))
			return
		}
		c.Next()
	}
}
