package auth

import (
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/homeswift/internal/alerts"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

type Config struct {
	AppURL          string
	BootstrapSecret string
	ResetTTL        time.Duration
}

// Handler serves the account endpoints: signup, login, me, password reset and
// the one-off admin bootstrap.
type Handler struct {
	users    store.UserStore
	tokens   *utils.Tokens
	notifier alerts.Notifier
	logger   *slog.Logger
	cfg      Config
	cost     int
}

func NewHandler(users store.UserStore, tokens *utils.Tokens, notifier alerts.Notifier, logger *slog.Logger, cfg Config) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 30 * time.Minute
	}
	return &Handler{users: users, tokens: tokens, notifier: notifier, logger: logger, cfg: cfg, cost: bcrypt.DefaultCost}
}

// HashPassword bcrypt-hashes a plaintext password at the default cost.
func HashPassword(password string) (string, error) {
	return hashPassword(password, bcrypt.DefaultCost)
}

func hashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
