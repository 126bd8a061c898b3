package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/AaronLay10/NarrativeEngine/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
)

// Auth checks HTTP Basic credentials. A nil *Auth, or one without admin
// credentials, lets every request through as admin.
type Auth struct {
	admin  config.Credentials
	player config.Credentials
}

func NewAuth(admin, player config.Credentials) *Auth {
	return &Auth{admin: admin, player: player}
}

// LoadAuth reads NARRATIVE_ADMIN_USER/PASS and NARRATIVE_PLAYER_USER/PASS,
// honouring their _FILE forms.
func LoadAuth() (*Auth, error) {
	admin, err := config.ResolveCredentials(string(RoleAdmin))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve admin credentials: %w", err)
	}
	player, err := config.ResolveCredentials(string(RolePlayer))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve player credentials: %w", err)
	}
	return NewAuth(admin, player), nil
}

// Enabled reports whether requests are checked at all.
func (a *Auth) Enabled() bool {
	return a != nil && a.admin.Set()
}

// authenticate returns the role of the caller, or "" for bad credentials.
func (a *Auth) authenticate(r *http.Request) Role {
	if !a.Enabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	if matches(a.admin, user, pass) {
		return RoleAdmin
	}
	if a.player.Set() && matches(a.player, user, pass) {
		return RolePlayer
	}
	return ""
}

func matches(c config.Credentials, user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.User)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(c.Password)) == 1
	return userOK && passOK
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Narrative Engine"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the specified roles.
func (a *Auth) RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := a.authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequirePlayer admits players and admins.
func (a *Auth) RequirePlayer(handler http.HandlerFunc) http.HandlerFunc {
	return a.RequireRole(handler, RoleAdmin, RolePlayer)
}

func (a *Auth) RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return a.RequireRole(handler, RoleAdmin)
}
