package router

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/scimerr"
)

func (rt *Router) handleListGroups(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	params, err := rt.handler.ParseQueryParams(r)
	if err != nil {
		rt.writeError(w, scimerr.InvalidFilter(err.Error()))
		return
	}

	pred, err := rt.compilePredicate(tenant, params.Filter)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	groups, err := rt.groups.List(r.Context(), tenant, pred)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	sorted := scim.SortResources(groups, params.SortBy, params.SortOrder)
	paged, startIndex, itemsPerPage := scim.ApplyPagination(sorted, params.StartIndex, params.Count)

	resp := &scim.ListResponse[*scim.Group]{
		Schemas:      []string{scim.SchemaListResponse},
		TotalResults: len(sorted),
		StartIndex:   startIndex,
		ItemsPerPage: itemsPerPage,
		Resources:    paged,
	}
	writeListResponse(rt, w, resp, params)
}

func (rt *Router) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		rt.writeError(w, scimerr.InvalidSyntax("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var group scim.Group
	if err := json.Unmarshal(body, &group); err != nil {
		rt.writeError(w, scimerr.InvalidSyntax("invalid JSON"))
		return
	}

	created, err := rt.groups.Create(r.Context(), tenant, &group)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	rt.dispatchGroupChange(r.Context(), tenant, created)
	rt.writeCreated(w, "Groups", created.ID, created)
}

func (rt *Router) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	group, err := rt.groups.Read(r.Context(), tenant, id)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeResourceWithETag(w, r, group)
}

func (rt *Router) handleReplaceGroup(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		rt.writeError(w, scimerr.InvalidSyntax("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var incoming scim.Group
	if err := json.Unmarshal(body, &incoming); err != nil {
		rt.writeError(w, scimerr.InvalidSyntax("invalid JSON"))
		return
	}

	expectedVersion, err := rt.resolveExpectedVersion(r, func() (string, error) {
		current, err := rt.groups.Read(r.Context(), tenant, id)
		if err != nil {
			return "", err
		}
		return current.Meta.Version, nil
	})
	if err != nil {
		rt.writeError(w, err)
		return
	}

	updated, err := rt.groups.Replace(r.Context(), tenant, id, &incoming, expectedVersion)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.dispatchGroupChange(r.Context(), tenant, updated)
	rt.writeResourceWithETag(w, r, updated)
}

func (rt *Router) handlePatchGroup(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		rt.writeError(w, scimerr.InvalidSyntax("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var patch scim.PatchOp
	if err := json.Unmarshal(body, &patch); err != nil {
		rt.writeError(w, scimerr.InvalidSyntax("invalid JSON"))
		return
	}

	expectedVersion, err := rt.resolveExpectedVersion(r, func() (string, error) {
		current, err := rt.groups.Read(r.Context(), tenant, id)
		if err != nil {
			return "", err
		}
		return current.Meta.Version, nil
	})
	if err != nil {
		rt.writeError(w, err)
		return
	}

	updated, err := rt.groups.Patch(r.Context(), tenant, id, &patch, expectedVersion)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.dispatchGroupChange(r.Context(), tenant, updated)
	rt.writeResourceWithETag(w, r, updated)
}

// handleDeleteGroup never cascades to user deletion, per spec.md §1's
// Non-goals — deleting a group removes only the group record itself.
func (rt *Router) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	if err := rt.groups.Delete(r.Context(), tenant, id); err != nil {
		rt.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
