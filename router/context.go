package router

import (
	"net/http"

	"github.com/marcelom97/scimgateway/authctx"
	"github.com/marcelom97/scimgateway/scimerr"
)

// tenantID extracts the tenant authctx.Middleware already attached to
// the request; absence means Middleware was not installed in front of
// this Router, a wiring error rather than a client error.
func tenantID(r *http.Request) (string, error) {
	ac, ok := authctx.FromContext(r.Context())
	if !ok || ac.TenantID == "" {
		return "", scimerr.Unauthorized("no tenant context on request")
	}
	return ac.TenantID, nil
}

func ifMatch(r *http.Request) string {
	return r.Header.Get("If-Match")
}
