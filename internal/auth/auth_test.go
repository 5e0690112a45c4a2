package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/homeswift/internal/middleware"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

type sentMail struct{ to, subject string }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *recordingNotifier) Send(_ context.Context, to, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{to, subject})
	return nil
}

type harness struct {
	e      *echo.Echo
	users  *store.MemoryStore
	tokens *utils.Tokens
	mail   *recordingNotifier
}

func newHarness(t *testing.T, secret string) *harness {
	t.Helper()
	users := store.NewMemoryStore()
	tokens := utils.NewTokens("test-secret", time.Hour)
	mail := &recordingNotifier{}
	h := NewHandler(users, tokens, mail, nil, Config{AppURL: "https://app.test", BootstrapSecret: secret})
	h.cost = bcrypt.MinCost

	e := echo.New()
	e.Validator = utils.NewValidator()
	e.POST("/auth/signup", h.Signup)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/bootstrap-admin", h.BootstrapAdmin)
	e.POST("/auth/password/request", h.RequestPasswordReset)
	e.POST("/auth/password/reset", h.ResetPassword)
	e.GET("/auth/me", h.Me, middleware.JWT(tokens))
	return &harness{e: e, users: users, tokens: tokens, mail: mail}
}

func (h *harness) do(t *testing.T, method, path, body, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestSignupLoginMe(t *testing.T) {
	h := newHarness(t, "")

	code, body := h.do(t, http.MethodPost, "/auth/signup",
		`{"name":"Thandi","email":"Thandi@Example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, code, body)
	user := body["user"].(map[string]any)
	assert.Equal(t, "thandi@example.com", user["email"])
	assert.Equal(t, "customer", user["role"])
	assert.NotContains(t, user, "password_hash")

	code, body = h.do(t, http.MethodPost, "/auth/login", `{"email":"thandi@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, code, body)
	token := body["token"].(string)

	claims, err := h.tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, claims.Role)

	code, body = h.do(t, http.MethodGet, "/auth/me", "", token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Thandi", body["user"].(map[string]any)["name"])
}

func TestSignup_Rejections(t *testing.T) {
	h := newHarness(t, "")
	code, _ := h.do(t, http.MethodPost, "/auth/signup", `{"name":"A","email":"a@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, code)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate email any case", `{"name":"B","email":"A@example.com","password":"secret1"}`, http.StatusConflict},
		{"short password", `{"name":"B","email":"b@example.com","password":"123"}`, http.StatusBadRequest},
		{"bad email", `{"name":"B","email":"nope","password":"secret1"}`, http.StatusBadRequest},
		{"malformed json", `{"name":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := h.do(t, http.MethodPost, "/auth/signup", tt.body, "")
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t, "")
	h.do(t, http.MethodPost, "/auth/signup", `{"name":"A","email":"a@example.com","password":"secret1"}`, "")

	code, body := h.do(t, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"wrong!"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid credentials", body["error"])

	code, _ = h.do(t, http.MethodPost, "/auth/login", `{"email":"ghost@example.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestMe_RequiresToken(t *testing.T) {
	h := newHarness(t, "")
	code, _ := h.do(t, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = h.do(t, http.MethodGet, "/auth/me", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestBootstrapAdmin(t *testing.T) {
	t.Run("disabled without secret", func(t *testing.T) {
		h := newHarness(t, "")
		code, _ := h.do(t, http.MethodPost, "/auth/bootstrap-admin", `{"email":"a@example.com","secret":"x"}`, "")
		assert.Equal(t, http.StatusForbidden, code)
	})

	h := newHarness(t, "open-sesame")
	h.do(t, http.MethodPost, "/auth/signup", `{"name":"A","email":"a@example.com","password":"secret1"}`, "")

	code, _ := h.do(t, http.MethodPost, "/auth/bootstrap-admin", `{"email":"a@example.com","secret":"wrong"}`, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = h.do(t, http.MethodPost, "/auth/bootstrap-admin", `{"email":"missing@example.com","secret":"open-sesame"}`, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodPost, "/auth/bootstrap-admin", `{"email":"A@example.com","secret":"open-sesame"}`, "")
	require.Equal(t, http.StatusOK, code)
	u, err := h.users.GetUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t, "")
	h.do(t, http.MethodPost, "/auth/signup", `{"name":"A","email":"a@example.com","password":"secret1"}`, "")

	code, body := h.do(t, http.MethodPost, "/auth/password/request", `{"email":"ghost@example.com"}`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, resetSent, body["message"])
	assert.Empty(t, h.mail.sent)

	code, body = h.do(t, http.MethodPost, "/auth/password/request", `{"email":"a@example.com"}`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, resetSent, body["message"])
	require.Len(t, h.mail.sent, 1)
	assert.Equal(t, "a@example.com", h.mail.sent[0].to)
	assert.Equal(t, "Password reset instructions", h.mail.sent[0].subject)

	u, err := h.users.GetUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)

	session, err := h.tokens.Issue(u)
	require.NoError(t, err)
	code, _ = h.do(t, http.MethodPost, "/auth/password/reset", `{"token":"`+session+`","new_password":"brandnew"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code, "session tokens cannot reset passwords")

	reset, err := h.tokens.IssuePasswordReset(u, time.Minute)
	require.NoError(t, err)
	code, _ = h.do(t, http.MethodGet, "/auth/me", "", reset)
	assert.Equal(t, http.StatusUnauthorized, code, "reset tokens cannot open a session")

	code, _ = h.do(t, http.MethodPost, "/auth/password/reset", `{"token":"`+reset+`","new_password":"brandnew"}`, "")
	require.Equal(t, http.StatusOK, code)

	code, _ = h.do(t, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"brandnew"}`, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(t, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}
