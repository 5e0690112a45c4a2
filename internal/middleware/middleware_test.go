package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

func serve(e *echo.Echo, path, token string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoleGuards(t *testing.T) {
	tokens := utils.NewTokens("k", time.Hour)
	pid := int64(7)
	issue := func(u model.User) string {
		s, err := tokens.Issue(&u)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	admin := issue(model.User{ID: "u1", Email: "ops@example.com", Role: model.RoleAdmin})
	provider := issue(model.User{ID: "u2", Email: "pro@example.com", Role: model.RoleProvider, ProviderID: &pid})
	unlinked := issue(model.User{ID: "u3", Email: "new@example.com", Role: model.RoleProvider})
	customer := issue(model.User{ID: "u4", Email: "c@example.com", Role: model.RoleCustomer})

	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/admin", ok, JWT(tokens), AdminGuard)
	e.GET("/provider", func(c echo.Context) error {
		id, _ := ProviderID(c)
		return c.JSON(http.StatusOK, id)
	}, JWT(tokens), RequireProvider)
	e.GET("/staff", ok, JWT(tokens), RequireRoles(model.RoleAdmin, model.RoleProvider))
	e.GET("/open", func(c echo.Context) error {
		if UserID(c) == "" {
			return c.NoContent(http.StatusNoContent)
		}
		return c.NoContent(http.StatusOK)
	}, OptionalJWT(tokens))

	tests := []struct {
		path  string
		token string
		want  int
	}{
		{"/admin", "", http.StatusUnauthorized},
		{"/admin", "not-a-jwt", http.StatusUnauthorized},
		{"/admin", customer, http.StatusForbidden},
		{"/admin", admin, http.StatusOK},
		{"/provider", admin, http.StatusForbidden},
		{"/provider", unlinked, http.StatusForbidden},
		{"/provider", provider, http.StatusOK},
		{"/staff", provider, http.StatusOK},
		{"/staff", customer, http.StatusForbidden},
		{"/open", "", http.StatusNoContent},
		{"/open", "not-a-jwt", http.StatusNoContent},
		{"/open", customer, http.StatusOK},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, serve(e, tt.path, tt.token), "%s with %q", tt.path, tt.token)
	}
}

func TestJWT_RejectsOtherSecretAndExpired(t *testing.T) {
	tokens := utils.NewTokens("k", time.Hour)
	other := utils.NewTokens("other", time.Hour)
	expired := utils.NewTokens("k", -time.Minute)
	u := &model.User{ID: "u1", Email: "a@example.com", Role: model.RoleAdmin}

	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, JWT(tokens))

	s, _ := other.Issue(u)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/", s))
	s, _ = expired.Issue(u)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/", s))
	s, _ = tokens.Issue(u)
	assert.Equal(t, http.StatusOK, serve(e, "/", s))
}
