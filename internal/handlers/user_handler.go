package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/services"
)

// Profile echoes what the auth middleware resolved for the caller.
func Profile() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{
			"user_id":     claims.UserID,
			"email":       claims.Email,
			"fullname":    claims.Fullname,
			"gender":      claims.Gender,
			"avatar_url":  claims.AvatarURL,
			"role":        claims.GetSafeRole(),
			"is_admin":    claims.IsAdmin(),
			"has_profile": claims.HasProfile,
			"created_at":  claims.CreatedAt,
		}, ""))
	}
}

// targetUser parses :id and checks the caller may act on it: users reach
// their own record, admins reach any.
func targetUser(c *gin.Context) (uuid.UUID, bool) {
	claims, ok := currentUser(c)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		badRequest(c, "invalid user ID format", "user ID must be a UUID")
		return uuid.Nil, false
	}
	if claims.UserID != id.String() && !claims.IsAdmin() {
		c.JSON(http.StatusForbidden, helpers.ErrorResponse("access denied", "you can only access your own profile"))
		return uuid.Nil, false
	}
	return id, true
}

func GetUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := targetUser(c)
		if !ok {
			return
		}
		user, err := u.GetUser(c.Request.Context(), userId, accessToken(c))
		if err != nil {
			respondError(c, err, "failed to load user")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(user, ""))
	}
}

func UpdateUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := targetUser(c)
		if !ok {
			return
		}
		var fields map[string]interface{}
		if err := c.ShouldBindJSON(&fields); err != nil {
			badRequest(c, err.Error(), "invalid request payload")
			return
		}

		data, err := u.UpdateUser(c.Request.Context(), fields, userId, accessToken(c))
		if err != nil {
			respondError(c, err, "failed to update profile")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(data, "profile updated"))
	}
}

func UploadAvatar(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := targetUser(c)
		if !ok {
			return
		}
		fh, err := c.FormFile("avatar")
		if err != nil {
			badRequest(c, "avatar file is required", "send the image as multipart field avatar")
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, err.Error(), "could not read uploaded image")
			return
		}
		defer f.Close()

		url, err := u.UploadAvatar(c.Request.Context(), userId, f, accessToken(c))
		if err != nil {
			respondError(c, err, "failed to upload avatar")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"avatar_url": url}, "avatar updated"))
	}
}
