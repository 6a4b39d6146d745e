// Package tenantdb routes authenticated requests to the data store of the
// tenant they are scoped to. Every handle it returns is physically bound to
// one tenant's database, so isolation is structural rather than filter-based.
package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"chrona.app/internal/auth"
	"chrona.app/internal/obs"
)

// ErrStoreUnavailable means the tenant's database could not be reached. The
// request fails; it is never routed to another tenant's store.
var ErrStoreUnavailable = errors.New("tenantdb: store unavailable")

// Credentials are shared connection credentials for tenant databases; host
// and database name come from the tenant record.
type Credentials struct {
	User     string
	Password string
	SSLMode  string
}

// Opener dials a tenant database. Swapped out in tests.
type Opener func(dsn string) (*sql.DB, error)

type entry struct {
	once sync.Once
	db   *sql.DB
	err  error
}

// Router caches one pooled connection per tenant. First access from many
// concurrent requests converges on a single pool via per-key initialization;
// eviction closes the pool and removes the entry.
type Router struct {
	creds  Credentials
	opener Opener

	mu    sync.Mutex
	pools map[string]*entry
}

// NewRouter constructs a Router. A nil opener uses the pgx stdlib driver
// with the pool tuning used across the service.
func NewRouter(creds Credentials, opener Opener) *Router {
	if opener == nil {
		opener = openPool
	}
	return &Router{
		creds:  creds,
		opener: opener,
		pools:  make(map[string]*entry),
	}
}

// Resolve returns the pooled handle for the tenant's isolated store, opening
// it on first use. Deactivated tenants are refused. Dial failures surface as
// ErrStoreUnavailable and are not cached, so a recovered database is retried
// on the next request.
func (r *Router) Resolve(ctx context.Context, tenant *auth.Tenant) (*sql.DB, error) {
	if tenant == nil {
		return nil, fmt.Errorf("%w: no tenant scope", ErrStoreUnavailable)
	}
	if tenant.Status != auth.TenantStatusActive {
		return nil, fmt.Errorf("%w: tenant %s is deactivated", ErrStoreUnavailable, tenant.ID)
	}

	r.mu.Lock()
	e, ok := r.pools[tenant.ID]
	if !ok {
		e = &entry{}
		r.pools[tenant.ID] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		db, err := r.opener(r.dsn(tenant))
		if err != nil {
			e.err = err
			return
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			e.err = err
			return
		}
		e.db = db
	})

	if e.err != nil {
		// Drop the failed entry so a later request can retry the dial.
		r.mu.Lock()
		if r.pools[tenant.ID] == e {
			delete(r.pools, tenant.ID)
		}
		obs.SetTenantPools(len(r.pools))
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, e.err)
	}

	r.mu.Lock()
	obs.SetTenantPools(len(r.pools))
	r.mu.Unlock()
	return e.db, nil
}

// Evict closes and removes the cached pool for a tenant. Called on tenant
// deactivation; a subsequent Resolve opens a fresh pool.
func (r *Router) Evict(tenantID string) {
	r.mu.Lock()
	e, ok := r.pools[tenantID]
	if ok {
		delete(r.pools, tenantID)
	}
	obs.SetTenantPools(len(r.pools))
	r.mu.Unlock()

	if ok && e.db != nil {
		_ = e.db.Close()
	}
}

// Close shuts down every cached pool.
func (r *Router) Close() error {
	r.mu.Lock()
	pools := r.pools
	r.pools = make(map[string]*entry)
	obs.SetTenantPools(0)
	r.mu.Unlock()

	var firstErr error
	for _, e := range pools {
		if e.db == nil {
			continue
		}
		if err := e.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) dsn(tenant *auth.Tenant) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(r.creds.User, r.creds.Password),
		Host:   tenant.DBHost,
		Path:   "/" + tenant.DBName,
	}
	q := url.Values{}
	if r.creds.SSLMode != "" {
		q.Set("sslmode", r.creds.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func openPool(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}
