package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
)

type errorMapping struct {
	target error
	status int
}

// order matters: the first match wins
var errorMappings = []errorMapping{
	{models.ErrValidation, http.StatusBadRequest},
	{models.ErrNoBioProvided, http.StatusBadRequest},
	{models.ErrForbidden, http.StatusForbidden},
	{models.ErrAudienceMismatch, http.StatusForbidden},
	{models.ErrEventNotFound, http.StatusNotFound},
	{models.ErrUserNotFound, http.StatusNotFound},
	{models.ErrEventFull, http.StatusConflict},
	{models.ErrAlreadyJoined, http.StatusConflict},
	{models.ErrNotJoined, http.StatusConflict},
	{models.ErrCapacityBelowAttendance, http.StatusConflict},
	{models.ErrStoreUnavailable, http.StatusServiceUnavailable},
	{models.ErrServiceUnavailable, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope. Client errors carry the error text;
// server errors are logged by the error middleware and replaced by message.
func respondError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	switch {
	case status == http.StatusServiceUnavailable:
		_ = c.Error(err)
		c.JSON(status, helpers.ErrorResponse("service temporarily unavailable, please retry", message))
	case status >= http.StatusInternalServerError:
		_ = c.Error(err)
		c.JSON(status, helpers.ErrorResponse("internal server error", message))
	default:
		c.JSON(status, helpers.ErrorResponse(err.Error(), message))
	}
}

func badRequest(c *gin.Context, detail, message string) {
	c.JSON(http.StatusBadRequest, helpers.ErrorResponse(detail, message))
}

// currentUser returns the caller's claims or writes 401.
func currentUser(c *gin.Context) (*helpers.EnhancedClaims, bool) {
	claims, ok := helpers.CurrentUser(c)
	if !ok || claims.UserID == "" {
		c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("unauthorized", "please log in"))
		return nil, false
	}
	return claims, true
}

func claimsGender(claims *helpers.EnhancedClaims) models.Gender {
	return models.Gender(claims.Gender)
}

// accessToken prefers the token the auth middleware validated, which may be
// fresher than the request cookie after a refresh.
func accessToken(c *gin.Context) string {
	if t := c.GetString(helpers.AccessTokenKey); t != "" {
		return t
	}
	t, _ := c.Cookie("access_token")
	return t
}
