package helpers

import (
	"github.com/gin-gonic/gin"
)

const (
	ClaimsKey      = "user"
	AccessTokenKey = "access_token"
)

type EnhancedClaims struct {
	*CustomClaims
	Role      string `json:"role"`
	UserID    string `json:"id"`
	Email     string `json:"email,omitempty"`
	Fullname  string `json:"fullname,omitempty"`
	Gender    string `json:"gender,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	// HasProfile is false when the token is valid but no profiles row exists.
	HasProfile bool `json:"has_profile"`
}

// Helper methods for role checking
func (ec *EnhancedClaims) IsAdmin() bool {
	return ec.Role == "admin"
}

func (ec *EnhancedClaims) HasRole(role string) bool {
	return ec.Role == role
}

func (ec *EnhancedClaims) IsOwner(userID string) bool {
	return ec.UserID == userID
}

func (ec *EnhancedClaims) GetSafeRole() string {
	if ec.Role == "" {
		return "guest"
	}
	return ec.Role
}

// CurrentUser returns the claims stored by the auth middleware.
func CurrentUser(c *gin.Context) (*EnhancedClaims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*EnhancedClaims)
	return claims, ok
}
