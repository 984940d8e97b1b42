package router

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/scimerr"
	"github.com/marcelom97/scimgateway/store/translate"
)

func (rt *Router) handleListUsers(w http.ResponseWriter, r *http.Request) {
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

	users, err := rt.users.List(r.Context(), tenant, pred)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	sorted := scim.SortResources(users, params.SortBy, params.SortOrder)
	paged, startIndex, itemsPerPage := scim.ApplyPagination(sorted, params.StartIndex, params.Count)

	resp := &scim.ListResponse[*scim.User]{
		Schemas:      []string{scim.SchemaListResponse},
		TotalResults: len(sorted),
		StartIndex:   startIndex,
		ItemsPerPage: itemsPerPage,
		Resources:    paged,
	}
	writeListResponse(rt, w, resp, params)
}

func (rt *Router) handleCreateUser(w http.ResponseWriter, r *http.Request) {
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

	var user scim.User
	if err := json.Unmarshal(body, &user); err != nil {
		rt.writeError(w, scimerr.InvalidSyntax("invalid JSON"))
		return
	}
	if user.Active == nil {
		user.Active = scim.Bool(true)
	}

	created, err := rt.users.Create(r.Context(), tenant, &user)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	rt.writeCreated(w, "Users", created.ID, created)
}

func (rt *Router) handleGetUser(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	user, err := rt.users.Read(r.Context(), tenant, id)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeResourceWithETag(w, r, user)
}

func (rt *Router) handleReplaceUser(w http.ResponseWriter, r *http.Request) {
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

	var incoming scim.User
	if err := json.Unmarshal(body, &incoming); err != nil {
		rt.writeError(w, scimerr.InvalidSyntax("invalid JSON"))
		return
	}

	expectedVersion, err := rt.resolveExpectedVersion(r, func() (string, error) {
		current, err := rt.users.Read(r.Context(), tenant, id)
		if err != nil {
			return "", err
		}
		return current.Meta.Version, nil
	})
	if err != nil {
		rt.writeError(w, err)
		return
	}

	updated, err := rt.users.Replace(r.Context(), tenant, id, &incoming, expectedVersion)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeResourceWithETag(w, r, updated)
}

func (rt *Router) handlePatchUser(w http.ResponseWriter, r *http.Request) {
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
		current, err := rt.users.Read(r.Context(), tenant, id)
		if err != nil {
			return "", err
		}
		return current.Meta.Version, nil
	})
	if err != nil {
		rt.writeError(w, err)
		return
	}

	updated, err := rt.users.Patch(r.Context(), tenant, id, &patch, expectedVersion)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeResourceWithETag(w, r, updated)
}

func (rt *Router) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	if err := rt.users.Delete(r.Context(), tenant, id); err != nil {
		rt.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) compilePredicate(tenant, filterStr string) (translate.Predicate, error) {
	if filterStr == "" {
		return translate.Compile(tenant, nil)
	}
	f, err := scim.NewFilterParser(filterStr).Parse()
	if err != nil {
		return translate.Predicate{}, scimerr.InvalidFilter(err.Error())
	}
	return translate.Compile(tenant, f)
}
