package scim

import (
	"encoding/json"
)

// applyResourceFilter narrows resources to the ones filter matches; an
// empty filter is a no-op, not an error.
func applyResourceFilter[T any](resources []T, filter string) ([]T, error) {
	if filter == "" {
		return resources, nil
	}

	expr, err := NewFilterParser(filter).Parse()
	if err != nil {
		return nil, ErrInvalidFilter(err.Error())
	}
	if expr == nil {
		return resources, nil
	}

	matched := make([]T, 0, len(resources))
	for _, resource := range resources {
		if expr.Matches(resource) {
			matched = append(matched, resource)
		}
	}
	return matched, nil
}

// applyResourcePagination slices resources to one page, clamping
// startIndex/count to sane bounds the way RFC 7644 §3.4.2.4 expects a
// server to (rather than erroring on an out-of-range request).
func applyResourcePagination[T any](resources []T, startIndex, count int) ([]T, int, int) {
	total := len(resources)
	if startIndex < 1 {
		startIndex = 1
	}
	if count <= 0 {
		count = total
	}

	start := min(startIndex-1, total)
	end := min(start+count, total)
	page := resources[start:end]
	return page, startIndex, len(page)
}

// applyAttributeSelection narrows each resource to the requested
// attributes, round-tripping through JSON since AttributeSelector works
// against a decoded map rather than T directly.
func applyAttributeSelection[T any](resources []T, attributes, excludedAttr []string) ([]T, error) {
	if len(attributes) == 0 && len(excludedAttr) == 0 {
		return resources, nil
	}

	selector := NewAttributeSelector(attributes, excludedAttr)
	result := make([]T, len(resources))
	for i, resource := range resources {
		filtered, err := selector.FilterResource(resource)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(filtered)
		if err != nil {
			return nil, err
		}
		var narrowed T
		if err := json.Unmarshal(data, &narrowed); err != nil {
			return nil, err
		}
		result[i] = narrowed
	}
	return result, nil
}

// ProcessListQuery runs the full filter -> sort -> paginate -> select
// pipeline a SCIM list endpoint needs in one call; used by plugins (like
// memory.Getter) that implement scim.PluginGetter directly rather than
// going through the router's own per-step pipeline.
func ProcessListQuery[T any](allResources []T, params QueryParams) (*ListResponse[T], error) {
	filtered, err := applyResourceFilter(allResources, params.Filter)
	if err != nil {
		return nil, err
	}
	totalResults := len(filtered)

	sorted := SortResources(filtered, params.SortBy, params.SortOrder)
	paged, startIndex, itemsPerPage := applyResourcePagination(sorted, params.StartIndex, params.Count)

	resources, err := applyAttributeSelection(paged, params.Attributes, params.ExcludedAttr)
	if err != nil {
		return nil, err
	}

	return &ListResponse[T]{
		Schemas:      []string{SchemaListResponse},
		TotalResults: totalResults,
		StartIndex:   startIndex,
		ItemsPerPage: itemsPerPage,
		Resources:    resources,
	}, nil
}
