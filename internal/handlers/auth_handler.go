package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/services"
)

func CreateUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user models.User
		if err := c.ShouldBindJSON(&user); err != nil {
			badRequest(c, err.Error(), "invalid request payload")
			return
		}

		createdUser, err := u.CreateUser(c.Request.Context(), &user)
		if err != nil {
			respondError(c, err, "sign up failed")
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(createdUser, "account created, check your email to confirm"))
	}
}

func AuthenticateUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error(), "invalid request payload")
			return
		}

		tokenRes, err := u.AuthenticateUser(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if statusFor(err) == http.StatusBadRequest {
				respondError(c, err, "invalid email or password")
				return
			}
			c.JSON(http.StatusUnauthorized, helpers.ErrorResponse(err.Error(), "invalid email or password"))
			return
		}
		if tokenRes == nil || tokenRes.AccessToken == "" {
			c.JSON(http.StatusInternalServerError, helpers.ErrorResponse("invalid token response", "login failed"))
			return
		}

		helpers.SetAuthCookies(c, tokenRes)
		// tokens stay in the http-only cookies
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"user": tokenRes.User}, "logged in"))
	}
}

func RequestPasswordReset(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error(), "invalid request payload")
			return
		}
		if err := u.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
			respondError(c, err, "could not send the reset email")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "if the address is registered, a reset link is on its way"))
	}
}

func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		helpers.ClearAuthCookies(c)
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "logged out successfully"))
	}
}
