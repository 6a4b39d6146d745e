package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"chrona.app/internal/auth"
	"chrona.app/internal/obs"
	"chrona.app/internal/tenantdb"
)

// ReadyProbe reports whether the control-plane database is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Limits carries the request throttling knobs for the middleware chain.
type Limits struct {
	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

func defaultLimits() Limits {
	return Limits{RateBurst: 20, RatePerSecond: 10, MaxBodyBytes: 1 << 20}
}

// API is the HTTP layer over the auth core.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	admin      *auth.AdminService
	store      auth.Store
	router     *tenantdb.Router
	readyProbe ReadyProbe
	version    string
	limits     Limits
}

// New wires the route table.
func New(svc *auth.Service, admin *auth.AdminService, store auth.Store, router *tenantdb.Router, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       svc,
		admin:      admin,
		store:      store,
		router:     router,
		readyProbe: rp,
		version:    version,
		limits:     defaultLimits(),
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	a.mux.HandleFunc("/v1/impersonate/", a.handleImpersonate)

	a.mux.HandleFunc("/v1/tenants", a.handleTenants)
	a.mux.HandleFunc("/v1/tenants/", a.handleTenantScoped)
	a.mux.HandleFunc("/v1/users/", a.handleUserScoped)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleScoped)
	a.mux.HandleFunc("/v1/capabilities", a.handleCapabilities)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// SetLimits overrides the default throttling knobs. Call before Handler.
func (a *API) SetLimits(l Limits) {
	if l.RateBurst > 0 && l.RatePerSecond > 0 {
		a.limits.RateBurst = l.RateBurst
		a.limits.RatePerSecond = l.RatePerSecond
	}
	if l.MaxBodyBytes > 0 {
		a.limits.MaxBodyBytes = l.MaxBodyBytes
	}
}

// Handler returns the full middleware chain around the route table.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withTenantStore(h)
	h = a.withAuth(h)
	h = RateLimit(h, a.limits.RateBurst, a.limits.RatePerSecond)
	h = MaxBodyBytes(h, a.limits.MaxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- service endpoints ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "chrona-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "chrona-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
