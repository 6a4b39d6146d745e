package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"chrona.app/internal/audit"
	"chrona.app/internal/auth"
	"chrona.app/internal/obs"
)

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	TenantKey string `json:"tenantKey,omitempty"`
}

type userSummary struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

type tokenPairResponse struct {
	AccessToken      string      `json:"accessToken"`
	RefreshToken     string      `json:"refreshToken"`
	AccessExpiresAt  time.Time   `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time   `json:"refreshExpiresAt"`
	User             userSummary `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, principal, err := a.auth.Login(r.Context(), req.Email, req.Password, req.TenantKey)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials),
			errors.Is(err, auth.ErrTenantKeyRequired),
			errors.Is(err, auth.ErrTenantKeyInvalid),
			errors.Is(err, auth.ErrTenantAccessDenied):
			obs.ObserveLogin("denied")
		default:
			obs.ObserveLogin("error")
		}
		handleAuthError(w, r, err)
		return
	}
	obs.ObserveLogin("allowed")

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":   principal.ID,
		"tenant_id": principal.TenantID,
	})
	_ = a.auth.AppendAudit(r.Context(), &auth.AuditEntry{
		ActorID:    principal.ID,
		TenantID:   principal.TenantID,
		Action:     "auth.login",
		TargetType: "user",
		TargetID:   principal.ID,
	})

	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User: userSummary{
			ID:    principal.ID,
			Email: principal.Email,
			Roles: principal.Roles,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, principal, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": principal.ID,
	})

	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User: userSummary{
			ID:    principal.ID,
			Email: principal.Email,
			Roles: principal.Roles,
		},
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type meResponse struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	TenantID     string   `json:"tenantId,omitempty"`
	Roles        []string `json:"roles"`
	Capabilities []string `json:"capabilities"`
	ActorID      string   `json:"actorId,omitempty"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	caps := make([]string, 0, len(principal.Capabilities))
	for k := range principal.Capabilities {
		caps = append(caps, k)
	}
	sort.Strings(caps)
	writeJSON(w, http.StatusOK, meResponse{
		ID:           principal.ID,
		Email:        principal.Email,
		TenantID:     principal.TenantID,
		Roles:        principal.Roles,
		Capabilities: caps,
		ActorID:      principal.ActorID,
	})
}
