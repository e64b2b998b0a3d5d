package dto

import (
	"github.com/spec-kit/factory-portal/internal/domain"
)

// LoginRequest payload for the portal login form.
type LoginRequest struct {
	Identifier string `json:"identifier" form:"identifier"`
	Password   string `json:"password" form:"password"`
	IsUsername bool   `json:"is_username" form:"is_username"`
	Next       string `json:"next" form:"next"`
}

// SessionView is the identity block embedded in page view models.
type SessionView struct {
	UserID        string      `json:"user_id"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	Role          domain.Role `json:"role"`
	EffectiveRole domain.Role `json:"effective_role"`
	ActingAsAdmin bool        `json:"acting_as_admin"`
}

// NewSessionView projects a session for rendering.
func NewSessionView(sess *domain.Session) SessionView {
	return SessionView{
		UserID:        sess.UserID,
		Name:          sess.Name,
		Email:         sess.Email,
		Role:          sess.Role,
		EffectiveRole: sess.EffectiveRole(),
		ActingAsAdmin: sess.ActingAsAdmin(),
	}
}

// LoginView is the view model for the login page.
type LoginView struct {
	View string `json:"view"`
	Next string `json:"next,omitempty"`
}
