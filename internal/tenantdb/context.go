package tenantdb

import (
	"context"
	"database/sql"
)

type handleContextKey struct{}

// ContextWithStore attaches the tenant-scoped database handle to the context.
func ContextWithStore(ctx context.Context, db *sql.DB) context.Context {
	if db == nil {
		return ctx
	}
	return context.WithValue(ctx, handleContextKey{}, db)
}

// StoreFromContext returns the tenant-scoped handle resolved for this
// request. This is the second half of the collaborator interface consumed by
// the business-CRUD layer; unscoped (system-level) requests carry no handle.
func StoreFromContext(ctx context.Context) (*sql.DB, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(handleContextKey{}).(*sql.DB)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
