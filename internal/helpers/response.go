package helpers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/supabase-community/gotrue-go/types"
)

type ApiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Total   int         `json:"total,omitempty"`
}

func SuccessResponse(data interface{}, message string) ApiResponse {
	return ApiResponse{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func ErrorResponse(err string, message string) ApiResponse {
	return ApiResponse{
		Success: false,
		Error:   err,
		Message: message,
	}
}

func ListResponse(data interface{}, total int, message string) ApiResponse {
	return ApiResponse{
		Success: true,
		Data:    data,
		Total:   total,
		Message: message,
	}
}

func isProduction() bool {
	return os.Getenv("ENVIRONMENT") == "production"
}

// SetAuthCookies stores the Supabase session in http-only cookies.
func SetAuthCookies(c *gin.Context, tokenRes *types.TokenResponse) {
	secure := isProduction()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", tokenRes.AccessToken, tokenRes.ExpiresIn, "/", "", secure, true)
	// 30 days
	c.SetCookie("refresh_token", tokenRes.RefreshToken, 3600*24*30, "/", "", secure, true)
}

func ClearAuthCookies(c *gin.Context) {
	secure := isProduction()
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}
