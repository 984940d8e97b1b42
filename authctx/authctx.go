// Package authctx extracts the already-validated actor identity a request
// carries (tenant, actor id, actor type) and makes it available through
// context.Context. It deliberately does not validate bearer tokens or
// secrets itself — that is assumed to happen upstream of the gateway —
// mirroring the shape of plugin.PerPluginAuthMiddleware (wrap the next
// handler, inspect the request, populate state) without reimplementing
// auth.Authenticator's credential-checking.
package authctx

import (
	"context"
	"net/http"
)

// ActorType distinguishes the kind of principal that authenticated
// upstream (the IdP itself, vs. an administrative actor working through
// the gateway's own management surface).
type ActorType string

const (
	ActorTypeIdentityProvider ActorType = "idp"
	ActorTypeAdmin            ActorType = "admin"
	ActorTypeSystem           ActorType = "system"
)

// Context is the opaque auth context spec.md's external-interfaces
// section names: who is making this request, and on whose behalf.
type Context struct {
	TenantID  string
	ActorID   string
	ActorType ActorType
}

type ctxKey struct{}

// WithContext attaches ac to ctx.
func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext retrieves the Context previously attached by Middleware,
// or the zero value and false if none is present.
func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(ctxKey{}).(Context)
	return ac, ok
}

const (
	headerTenantID  = "X-Tenant-Id"
	headerActorID   = "X-Actor-Id"
	headerActorType = "X-Actor-Type"
)

// Middleware reads the X-Tenant-Id / X-Actor-Id / X-Actor-Type headers —
// set by whatever upstream component already validated the caller's
// credentials — and attaches the resulting Context to the request before
// calling next. A request with no X-Tenant-Id is rejected outright: every
// operation downstream of the router requires a tenant to scope against.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get(headerTenantID)
		if tenantID == "" {
			http.Error(w, `{"detail":"missing X-Tenant-Id header"}`, http.StatusUnauthorized)
			return
		}

		actorType := ActorType(r.Header.Get(headerActorType))
		if actorType == "" {
			actorType = ActorTypeIdentityProvider
		}

		ac := Context{
			TenantID:  tenantID,
			ActorID:   r.Header.Get(headerActorID),
			ActorType: actorType,
		}

		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), ac)))
	})
}
