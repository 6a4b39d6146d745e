package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chrona.app/internal/auth"
	"chrona.app/internal/tenantdb"
)

func TestHandleAuthErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{auth.ErrTenantKeyRequired, http.StatusBadRequest},
		{auth.ErrTenantKeyInvalid, http.StatusUnauthorized},
		{auth.ErrTenantAccessDenied, http.StatusForbidden},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{auth.ErrPermissionDenied, http.StatusForbidden},
		{auth.ErrInvalidInput, http.StatusBadRequest},
		{auth.ErrNotFound, http.StatusNotFound},
		{auth.ErrConflict, http.StatusConflict},
		{tenantdb.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handleAuthError(rr, req, tc.err)
		if rr.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rr.Code)
		}
	}
}

func TestHandleAuthErrorWrapsAreStillMapped(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handleAuthError(rr, req, fmt.Errorf("%w: dial tcp refused", tenantdb.ErrStoreUnavailable))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("wrapped store errors must map to 503, got %d", rr.Code)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","surprise":true}`))
	var dst struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestDecodeJSONRejectsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var dst struct{}
	err := decodeJSON(httptest.NewRecorder(), req, &dst)
	if err == nil || err.Error() != "request body is required" {
		t.Fatalf("expected body-required error, got %v", err)
	}
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}{"again":1}`))
	var dst struct{}
	if err := decodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatalf("expected trailing data to be rejected")
	}
}

func TestMethodNotAllowedSetsAllowHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/v1/auth/login", nil)
	rr := httptest.NewRecorder()
	methodNotAllowed(rr, req, http.MethodPost, http.MethodGet)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if got := rr.Header().Get("Allow"); got != "POST, GET" {
		t.Fatalf("unexpected Allow header: %q", got)
	}
}
