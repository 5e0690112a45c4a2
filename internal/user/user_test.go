package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/homeswift/internal/middleware"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

func setup(t *testing.T) (*echo.Echo, *store.MemoryStore, *utils.Tokens) {
	t.Helper()
	st := store.NewMemoryStore()
	tokens := utils.NewTokens("k", time.Hour)
	h := NewHandler(st, st)
	e := echo.New()
	e.Validator = utils.NewValidator()
	e.PATCH("/me/profile", h.UpdateProfile, middleware.JWT(tokens))
	e.GET("/providers/:id", h.GetProviderProfile)
	return e, st, tokens
}

func TestUpdateProfile(t *testing.T) {
	e, st, tokens := setup(t)
	u := &model.User{Name: "Cara", Email: "cara@example.com", Role: model.RoleCustomer}
	require.NoError(t, st.CreateUser(context.Background(), u))
	tok, err := tokens.Issue(u)
	require.NoError(t, err)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/me/profile", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := send(`{"phone":" 021 555 0101 ","role":"admin","email":"x@y.z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got, err := st.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "021 555 0101", got.Phone)
	assert.Equal(t, model.RoleCustomer, got.Role, "role is not self-service")
	assert.Equal(t, "cara@example.com", got.Email)

	assert.Equal(t, http.StatusBadRequest, send(`{}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(`{"name":""}`).Code)
}

func TestGetProviderProfileHidesContact(t *testing.T) {
	e, st, _ := setup(t)
	p := &model.Provider{Name: "Sipho", Email: "s@pros.test", Phone: "555", Rating: 4.9, ServiceAreas: []string{"Cape Town"}, Active: true}
	require.NoError(t, st.CreateProvider(context.Background(), p))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers/"+strconv.FormatInt(p.ID, 10), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Sipho", body["name"])
	assert.NotContains(t, body, "email")
	assert.NotContains(t, body, "phone")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
