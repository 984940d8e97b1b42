package router

import (
	"net/http"
	"strings"

	"github.com/marcelom97/scimgateway/scim"
)

// hasMeta is the subset of scim.Meta accessors writeResourceWithETag needs;
// satisfied by both *scim.User and *scim.Group via their GetMeta method.
type hasMeta interface {
	GetMeta() *scim.Meta
}

// writeResourceWithETag sets the ETag header from the resource's stored
// version and, on GET, honors If-None-Match for a 304 — the teacher's
// conditional-GET path (scim/etag.go CheckPreconditions), kept distinct
// from the mutation path's VersionMismatch (409) handling.
func (rt *Router) writeResourceWithETag(w http.ResponseWriter, r *http.Request, resource hasMeta) {
	etag := ""
	if m := resource.GetMeta(); m != nil {
		etag = m.Version
	}

	if r.Method == http.MethodGet {
		status, err := rt.etagGen.CheckPreconditions(r, etag)
		if err != nil && status == http.StatusNotModified {
			rt.etagGen.SetETag(w, etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if err != nil && status == http.StatusPreconditionFailed {
			rt.handler.WriteError(w, http.StatusPreconditionFailed, err.Error(), "")
			return
		}
	}

	rt.etagGen.SetETag(w, etag)
	rt.handler.WriteJSON(w, http.StatusOK, resource)
}

func (rt *Router) writeCreated(w http.ResponseWriter, resourceType, id string, resource hasMeta) {
	location := rt.handler.GetResourceLocation("scim/v2", resourceType, id)
	w.Header().Set("Location", location)
	if m := resource.GetMeta(); m != nil {
		m.Location = location
		rt.etagGen.SetETag(w, m.Version)
	}
	rt.handler.WriteJSON(w, http.StatusCreated, resource)
}

// resolveExpectedVersion implements spec.md §6's "If-Match tolerated-but-
// optional" contract: when the client supplies If-Match, that value
// becomes the optimistic-concurrency precondition repository.Repo enforces
// as a hard 409 on mismatch; when absent, the currently-stored version is
// read and used instead, so the write always succeeds on the precondition
// check (no precondition is the same as "match whatever is there now").
func (rt *Router) resolveExpectedVersion(r *http.Request, readCurrentVersion func() (string, error)) (string, error) {
	if v := ifMatch(r); v != "" {
		return unwrapVersion(v), nil
	}
	current, err := readCurrentVersion()
	if err != nil {
		return "", err
	}
	return unwrapVersion(current), nil
}

// unwrapVersion strips the weak-ETag wrapper (`W/"..."`) meta.Version and
// If-Match both carry, recovering the bare opaque version store.Record
// actually compares against.
func unwrapVersion(v string) string {
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

// writeListResponse applies attribute selection across every resource in
// resp.Resources when requested, mirroring the teacher's getUsers
// (scim/server.go) behavior of converting to []any only when attributes
// or excludedAttributes narrow the response.
func writeListResponse[T any](rt *Router, w http.ResponseWriter, resp *scim.ListResponse[T], params scim.QueryParams) {
	if len(params.Attributes) == 0 && len(params.ExcludedAttr) == 0 {
		rt.handler.WriteJSON(w, http.StatusOK, resp)
		return
	}

	selector := scim.NewAttributeSelector(params.Attributes, params.ExcludedAttr)
	boxed := make([]any, len(resp.Resources))
	for i, item := range resp.Resources {
		boxed[i] = item
	}
	filtered, err := selector.FilterResources(boxed)
	if err != nil {
		rt.handler.WriteError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	rt.handler.WriteJSON(w, http.StatusOK, &scim.ListResponse[any]{
		Schemas:      resp.Schemas,
		TotalResults: resp.TotalResults,
		StartIndex:   resp.StartIndex,
		ItemsPerPage: resp.ItemsPerPage,
		Resources:    filtered,
	})
}
