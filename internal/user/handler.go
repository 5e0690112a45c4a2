package user

import (
	"github.com/sudo-init-do/homeswift/internal/store"
)

// Handler serves self-service profile edits and public provider cards.
type Handler struct {
	users     store.UserStore
	providers store.ProviderDirectory
}

func NewHandler(users store.UserStore, providers store.ProviderDirectory) *Handler {
	return &Handler{users: users, providers: providers}
}
