package httpapi

import (
	"net/http"
	"strings"
	"time"

	"chrona.app/internal/audit"
	"chrona.app/internal/auth"
)

type impersonationResponse struct {
	ImpersonationToken string    `json:"impersonationToken"`
	ExpiresAt          time.Time `json:"expiresAt"`
	SessionID          string    `json:"sessionId"`
	TargetID           string    `json:"targetId"`
}

// handleImpersonate serves POST /v1/impersonate/{targetUserId} and
// POST /v1/impersonate/stop.
func (a *API) handleImpersonate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/impersonate/"), "/")
	if rest == "" || strings.Contains(rest, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if rest == "stop" {
		a.stopImpersonation(w, r)
		return
	}
	a.startImpersonation(w, r, rest)
}

func (a *API) startImpersonation(w http.ResponseWriter, r *http.Request, targetID string) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	result, err := a.auth.Impersonate(r.Context(), actor, targetID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.impersonate.start", map[string]any{
		"session_id": result.Session.ID,
		"target_id":  result.Session.TargetID,
	})
	_ = a.auth.AppendAudit(r.Context(), &auth.AuditEntry{
		ActorID:    actor.ID,
		TenantID:   actor.TenantID,
		Action:     "auth.impersonate.start",
		TargetType: "user",
		TargetID:   result.Session.TargetID,
		Metadata:   map[string]string{"session_id": result.Session.ID},
	})

	writeJSON(w, http.StatusOK, impersonationResponse{
		ImpersonationToken: result.Token,
		ExpiresAt:          result.ExpiresAt,
		SessionID:          result.Session.ID,
		TargetID:           result.Session.TargetID,
	})
}

func (a *API) stopImpersonation(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.auth.StopImpersonation(r.Context(), principal); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.impersonate.stop", map[string]any{
		"target_id": principal.ID,
	})
	_ = a.auth.AppendAudit(r.Context(), &auth.AuditEntry{
		ActorID:    principal.ActorID,
		TenantID:   principal.TenantID,
		Action:     "auth.impersonate.stop",
		TargetType: "user",
		TargetID:   principal.ID,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
