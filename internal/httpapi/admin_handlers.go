package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"chrona.app/internal/audit"
	"chrona.app/internal/auth"
)

type createTenantRequest struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	DBHost string `json:"db_host"`
	DBName string `json:"db_name"`
}

type createTenantResponse struct {
	*auth.Tenant
	Key string `json:"tenant_key"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type setGrantsRequest struct {
	Grants []auth.Grant `json:"grants"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) handleTenants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if _, ok := a.requireCapability(w, r, auth.CapManageTenants); !ok {
			return
		}
		var req createTenantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		tenant, err := a.admin.CreateTenant(r.Context(), req.Name, req.Slug, req.DBHost, req.DBName)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.tenant.create", map[string]any{
			"tenant_id": tenant.ID, "slug": tenant.Slug,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/tenants/%s", tenant.ID))
		// The key is returned exactly once, at provisioning time.
		writeJSON(w, http.StatusCreated, createTenantResponse{Tenant: tenant, Key: tenant.Key})
	case http.MethodGet:
		if _, ok := a.requireCapability(w, r, auth.CapManageTenants); !ok {
			return
		}
		tenants, err := a.admin.ListTenants(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": tenants})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

// handleTenantScoped serves /v1/tenants/{id}/(deactivate|users|roles).
func (a *API) handleTenantScoped(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/v1/tenants/")
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	tenantID := parts[0]
	switch parts[1] {
	case "deactivate":
		a.deactivateTenant(w, r, tenantID)
	case "users":
		a.createTenantUser(w, r, tenantID)
	case "roles":
		a.createTenantRole(w, r, tenantID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) deactivateTenant(w http.ResponseWriter, r *http.Request, tenantID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireCapability(w, r, auth.CapManageTenants); !ok {
		return
	}
	if err := a.admin.DeactivateTenant(r.Context(), tenantID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.tenant.deactivate", map[string]any{
		"tenant_id": tenantID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) createTenantUser(w http.ResponseWriter, r *http.Request, tenantID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireCapability(w, r, auth.CapManageUsers); !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.admin.CreateUser(r.Context(), tenantID, req.Email, req.Password)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.create", map[string]any{
		"user_id": user.ID, "tenant_id": tenantID,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) createTenantRole(w http.ResponseWriter, r *http.Request, tenantID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireCapability(w, r, auth.CapManageRoles); !ok {
		return
	}
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.admin.CreateRole(r.Context(), tenantID, req.Name, req.Description)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.role.create", map[string]any{
		"role_id": role.ID, "tenant_id": tenantID,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
	writeJSON(w, http.StatusCreated, role)
}

// handleUserScoped serves /v1/users/{id}/(deactivate|roles[/{roleID}]).
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/v1/users/")
	if len(parts) < 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]
	switch {
	case parts[1] == "deactivate" && len(parts) == 2:
		a.deactivateUser(w, r, userID)
	case parts[1] == "roles" && len(parts) == 2:
		a.assignUserRole(w, r, userID)
	case parts[1] == "roles" && len(parts) == 3:
		a.removeUserRole(w, r, userID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) deactivateUser(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireCapability(w, r, auth.CapManageUsers); !ok {
		return
	}
	if err := a.admin.DeactivateUser(r.Context(), userID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.deactivate", map[string]any{
		"user_id": userID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) assignUserRole(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireCapability(w, r, auth.CapManageRoles); !ok {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	assignment, err := a.admin.AssignRole(r.Context(), userID, req.RoleID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.assign_role", map[string]any{
		"user_id": userID, "role_id": assignment.RoleID,
	})
	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) removeUserRole(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if _, ok := a.requireCapability(w, r, auth.CapManageRoles); !ok {
		return
	}
	if err := a.admin.RemoveAssignment(r.Context(), userID, roleID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.remove_role", map[string]any{
		"user_id": userID, "role_id": roleID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleRoleScoped serves /v1/roles/{id}/grants.
func (a *API) handleRoleScoped(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/v1/roles/")
	if len(parts) != 2 || parts[1] != "grants" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if _, ok := a.requireCapability(w, r, auth.CapManageRoles); !ok {
		return
	}
	roleID := parts[0]
	var req setGrantsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.admin.SetRoleGrants(r.Context(), roleID, req.Grants); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.role.set_grants", map[string]any{
		"role_id": roleID, "grants": len(req.Grants),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireCapability(w, r, auth.CapManageRoles); !ok {
		return
	}
	caps, err := a.admin.ListCapabilities(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": caps})
}

func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
