package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeVerifier accepts tokens listed in valid and maps them to a subject.
type fakeVerifier struct {
	valid map[string]string
}

func (f fakeVerifier) Validate(token string) (*helpers.CustomClaims, error) {
	sub, ok := f.valid[token]
	if !ok {
		return nil, errors.New("token is expired")
	}
	return &helpers.CustomClaims{
		Email:            "ama@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	}, nil
}

type fakeSessions struct {
	refreshed  *types.TokenResponse
	refreshErr error
	users      map[uuid.UUID]*models.User
	userErr    error
	seenToken  string
}

func (f *fakeSessions) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	return f.refreshed, f.refreshErr
}

func (f *fakeSessions) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error) {
	f.seenToken = accessToken
	if f.userErr != nil {
		return nil, f.userErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return u, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(h gin.HandlerFunc, cookies ...*http.Cookie) (*httptest.ResponseRecorder, *helpers.EnhancedClaims) {
	var got *helpers.EnhancedClaims
	r := gin.New()
	r.GET("/", h, func(c *gin.Context) {
		got, _ = helpers.CurrentUser(c)
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, got
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	profile := &models.User{ID: userID, FullName: "Ama Mensah", Gender: models.GenderFemale, Role: models.RoleAdmin}

	t.Run("missing cookie", func(t *testing.T) {
		h := AuthMiddleware(fakeVerifier{}, &fakeSessions{}, quietLogger())
		w, claims := serve(h)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, claims)
	})

	t.Run("valid token loads profile", func(t *testing.T) {
		sessions := &fakeSessions{users: map[uuid.UUID]*models.User{userID: profile}}
		h := AuthMiddleware(fakeVerifier{valid: map[string]string{"good": userID.String()}}, sessions, quietLogger())
		w, claims := serve(h, &http.Cookie{Name: "access_token", Value: "good"})
		require.Equal(t, http.StatusNoContent, w.Code)
		require.NotNil(t, claims)
		assert.Equal(t, userID.String(), claims.UserID)
		assert.Equal(t, "female", claims.Gender)
		assert.True(t, claims.IsAdmin())
		assert.True(t, claims.HasProfile)
		assert.Equal(t, "good", sessions.seenToken)
	})

	t.Run("missing profile is a guest", func(t *testing.T) {
		h := AuthMiddleware(fakeVerifier{valid: map[string]string{"good": userID.String()}}, &fakeSessions{}, quietLogger())
		w, claims := serve(h, &http.Cookie{Name: "access_token", Value: "good"})
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "guest", claims.Role)
		assert.False(t, claims.HasProfile)
		assert.Empty(t, claims.Gender)
	})

	t.Run("expired token is refreshed", func(t *testing.T) {
		sessions := &fakeSessions{
			refreshed: &types.TokenResponse{Session: types.Session{AccessToken: "fresh", RefreshToken: "r2", ExpiresIn: 3600}},
			users:     map[uuid.UUID]*models.User{userID: profile},
		}
		h := AuthMiddleware(fakeVerifier{valid: map[string]string{"fresh": userID.String()}}, sessions, quietLogger())
		w, claims := serve(h,
			&http.Cookie{Name: "access_token", Value: "stale"},
			&http.Cookie{Name: "refresh_token", Value: "r1"},
		)
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, userID.String(), claims.UserID)
		assert.Equal(t, "fresh", sessions.seenToken)

		var names []string
		for _, ck := range w.Result().Cookies() {
			names = append(names, ck.Name)
		}
		assert.ElementsMatch(t, []string{"access_token", "refresh_token"}, names)
	})

	t.Run("refresh failure", func(t *testing.T) {
		sessions := &fakeSessions{refreshErr: errors.New("invalid refresh token")}
		h := AuthMiddleware(fakeVerifier{}, sessions, quietLogger())
		w, claims := serve(h,
			&http.Cookie{Name: "access_token", Value: "stale"},
			&http.Cookie{Name: "refresh_token", Value: "r1"},
		)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, claims)
	})
}

func TestRequireAdmin(t *testing.T) {
	withClaims := func(role string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(helpers.ClaimsKey, &helpers.EnhancedClaims{UserID: "u1", Role: role})
			c.Next()
		}
	}

	for role, expected := range map[string]int{
		"admin": http.StatusNoContent,
		"user":  http.StatusForbidden,
		"guest": http.StatusForbidden,
	} {
		r := gin.New()
		r.GET("/", withClaims(role), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, expected, w.Code, role)
	}

	r := gin.New()
	r.GET("/", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
