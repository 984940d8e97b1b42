package router

import (
	"encoding/json"
	"io"
	"net/http"
	"slices"

	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/scimerr"
)

// searchRequest mirrors scim.SearchRequest's shape exactly; kept local
// rather than imported since this router's own decode/dispatch flow
// replaces the teacher's handleSearch method wholesale.
type searchRequest struct {
	Schemas            []string `json:"schemas"`
	Attributes         []string `json:"attributes,omitempty"`
	ExcludedAttributes []string `json:"excludedAttributes,omitempty"`
	Filter             string   `json:"filter,omitempty"`
	SortBy             string   `json:"sortBy,omitempty"`
	SortOrder          string   `json:"sortOrder,omitempty"`
	StartIndex         int      `json:"startIndex,omitempty"`
	Count              int      `json:"count,omitempty"`
}

// handleSearch implements POST /.search across both Users and Groups (and
// the resource-scoped /Users/.search, /Groups/.search variants, which
// simply get the same combined result set — the teacher's handleSearch
// does the same thing for its single-plugin case).
func (rt *Router) handleSearch(w http.ResponseWriter, r *http.Request) {
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

	var req searchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rt.writeError(w, scimerr.InvalidSyntax("invalid JSON"))
		return
	}
	if !slices.Contains(req.Schemas, scim.SchemaSearchRequest) {
		rt.writeError(w, scimerr.InvalidSyntax("invalid schema"))
		return
	}
	if req.StartIndex == 0 {
		req.StartIndex = 1
	}
	if req.Count == 0 {
		req.Count = 100
	}

	pred, err := rt.compilePredicate(tenant, req.Filter)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	var all []any
	if users, err := rt.users.List(r.Context(), tenant, pred); err == nil {
		for _, u := range users {
			all = append(all, u)
		}
	}
	if groups, err := rt.groups.List(r.Context(), tenant, pred); err == nil {
		for _, g := range groups {
			all = append(all, g)
		}
	}

	sorted := scim.SortResources(all, req.SortBy, req.SortOrder)
	paged, startIndex, itemsPerPage := scim.ApplyPagination(sorted, req.StartIndex, req.Count)

	selector := scim.NewAttributeSelector(req.Attributes, req.ExcludedAttributes)
	resources, err := selector.FilterResources(paged)
	if err != nil {
		rt.writeError(w, scimerr.ServerUnavailable(err.Error()))
		return
	}

	resp := &scim.ListResponse[any]{
		Schemas:      []string{scim.SchemaListResponse},
		TotalResults: len(sorted),
		StartIndex:   startIndex,
		ItemsPerPage: itemsPerPage,
		Resources:    resources,
	}
	rt.handler.WriteJSON(w, http.StatusOK, resp)
}
