package scim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	SchemaListResponse = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	SchemaError        = "urn:ietf:params:scim:api:messages:2.0:Error"
	SchemaUser         = "urn:ietf:params:scim:schemas:core:2.0:User"
	SchemaGroup        = "urn:ietf:params:scim:schemas:core:2.0:Group"
	SchemaPatchOp      = "urn:ietf:params:scim:api:messages:2.0:PatchOp"
)

// Handler carries the wire-format helpers (query-param parsing, JSON
// envelopes, resource locations) the router calls into for every
// endpoint; it holds no resource state of its own.
type Handler struct {
	baseURL string
}

func NewHandler(baseURL string) *Handler {
	return &Handler{baseURL: baseURL}
}

// WriteError writes a SCIM Error resource (RFC 7644 §3.12) with the given
// status and scimType.
func (h *Handler) WriteError(w http.ResponseWriter, status int, detail string, scimType string) {
	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(Error{
		Schemas:  []string{SchemaError},
		Status:   strconv.Itoa(status),
		Detail:   detail,
		ScimType: scimType,
	})
}

// WriteJSON writes any successful SCIM response body.
func (h *Handler) WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ParseQueryParams extracts the list-operation query parameters a
// GET/.search request carries. attributes and excludedAttributes are
// mutually exclusive per RFC 7644 §3.9; anything else malformed is
// clamped rather than rejected.
func (h *Handler) ParseQueryParams(r *http.Request) (QueryParams, error) {
	params := QueryParams{
		StartIndex: 1,
		Count:      100,
		SortOrder:  "ascending",
	}

	q := r.URL.Query()

	if filter := q.Get("filter"); filter != "" {
		params.Filter = filter
	}

	hasAttributes := false
	if attrs := q.Get("attributes"); attrs != "" {
		params.Attributes = splitTrimmed(attrs)
		hasAttributes = true
	}

	hasExcluded := false
	if excluded := q.Get("excludedAttributes"); excluded != "" {
		params.ExcludedAttr = splitTrimmed(excluded)
		hasExcluded = true
	}

	if hasAttributes && hasExcluded {
		return params, fmt.Errorf("attributes and excludedAttributes are mutually exclusive")
	}

	if startIndex := q.Get("startIndex"); startIndex != "" {
		if idx, err := strconv.Atoi(startIndex); err == nil && idx > 0 {
			params.StartIndex = idx
		}
	}

	if count := q.Get("count"); count != "" {
		if c, err := strconv.Atoi(count); err == nil && c > 0 {
			params.Count = c
		}
	}

	if sortBy := q.Get("sortBy"); sortBy != "" {
		params.SortBy = sortBy
	}

	if sortOrder := q.Get("sortOrder"); sortOrder != "" {
		params.SortOrder = strings.ToLower(sortOrder)
	}

	return params, nil
}

func splitTrimmed(csv string) []string {
	parts := strings.Split(csv, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// GetResourceLocation builds a resource's Location header value.
func (h *Handler) GetResourceLocation(basePath, resourceType, id string) string {
	return fmt.Sprintf("%s/%s/%s/%s", h.baseURL, basePath, resourceType, id)
}
