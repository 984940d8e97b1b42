package scim

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// AttributeSelector narrows a resource to a requested set of attributes
// (RFC 7644 §3.9) or strips an excluded set, at arbitrary nesting depth
// ("emails.type", "addresses.street.postalCode", ...). The two modes are
// mutually exclusive at the HTTP layer (scim.Handler.ParseQueryParams
// rejects both present at once) but the selector itself just does
// whichever map is non-empty.
type AttributeSelector struct {
	attributes    map[string]bool
	excluded      map[string]bool
	includeSubs   map[string][]string
	excludeSubs   map[string][]string
	includeAll    bool
	hasExclusions bool
}

func NewAttributeSelector(attributes, excluded []string) *AttributeSelector {
	as := &AttributeSelector{
		attributes:    make(map[string]bool),
		excluded:      make(map[string]bool),
		includeSubs:   make(map[string][]string),
		excludeSubs:   make(map[string][]string),
		includeAll:    len(attributes) == 0,
		hasExclusions: len(excluded) > 0,
	}

	for _, attr := range attributes {
		parent, sub, nested := splitAttributePath(attr)
		as.attributes[parent] = true
		if nested {
			as.includeSubs[parent] = append(as.includeSubs[parent], sub)
		}
	}

	for _, attr := range excluded {
		parent, sub, nested := splitAttributePath(attr)
		as.excluded[parent] = true
		if nested {
			as.excludeSubs[parent] = append(as.excludeSubs[parent], sub)
		}
	}

	return as
}

// splitAttributePath lower-cases attr and, if it names a sub-attribute
// ("name.familyName"), splits it into its immediate parent and remainder.
func splitAttributePath(attr string) (parent, remainder string, nested bool) {
	lower := strings.ToLower(attr)
	if !strings.Contains(lower, ".") {
		return lower, "", false
	}
	parts := strings.SplitN(lower, ".", 2)
	return parts[0], parts[1], true
}

// coreAttributes are always present regardless of selection/exclusion —
// id, schemas and meta are structural, not data the client opted into.
var coreAttributes = map[string]bool{"id": true, "schemas": true, "meta": true}

// FilterResource applies the selector to a single resource, round-tripping
// it through JSON so nested map/slice structure can be pruned generically.
func (as *AttributeSelector) FilterResource(resource any) (any, error) {
	if as.includeAll && !as.hasExclusions {
		return resource, nil
	}

	data, err := json.Marshal(resource)
	if err != nil {
		return nil, err
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}

	filtered := make(map[string]any)
	for key, value := range decoded {
		lowerKey := strings.ToLower(key)

		if coreAttributes[lowerKey] {
			filtered[key] = value
			continue
		}
		if as.excluded[lowerKey] {
			continue
		}

		if !as.includeAll {
			switch {
			case as.attributes[lowerKey]:
				filtered[key] = value
			default:
				if subs, ok := as.includeSubs[lowerKey]; ok {
					if narrowed := as.keepSubAttributes(value, subs); narrowed != nil {
						filtered[key] = narrowed
					}
				}
			}
			continue
		}

		if subs, ok := as.excludeSubs[lowerKey]; ok {
			if narrowed := as.dropSubAttributes(value, subs); narrowed != nil {
				filtered[key] = narrowed
			}
		} else {
			filtered[key] = value
		}
	}

	return filtered, nil
}

func (as *AttributeSelector) FilterResources(resources []any) ([]any, error) {
	if as.includeAll && !as.hasExclusions {
		return resources, nil
	}

	filtered := make([]any, 0, len(resources))
	for _, resource := range resources {
		f, err := as.FilterResource(resource)
		if err != nil {
			return nil, err
		}
		filtered = append(filtered, f)
	}
	return filtered, nil
}

// groupByImmediateChild turns a flat list of dotted sub-attribute
// references ("type", "street.postalCode") into a map from the
// immediate child name to whatever remains nested below it.
func groupByImmediateChild(subs []string) map[string][]string {
	grouped := make(map[string][]string)
	for _, sub := range subs {
		parent, remainder, nested := splitAttributePath(sub)
		if nested {
			grouped[parent] = append(grouped[parent], remainder)
		} else if _, exists := grouped[parent]; !exists {
			grouped[parent] = []string{}
		}
	}
	return grouped
}

// keepSubAttributes narrows a complex or multi-valued attribute to only
// the sub-attributes named in requestedSubs, at any nesting depth.
func (as *AttributeSelector) keepSubAttributes(value any, requestedSubs []string) any {
	if value == nil {
		return nil
	}
	children := groupByImmediateChild(requestedSubs)

	if arr, ok := value.([]any); ok {
		kept := make([]any, 0, len(arr))
		for _, item := range arr {
			if itemMap, ok := item.(map[string]any); ok {
				if narrowed := as.keepFromMap(itemMap, children); len(narrowed) > 0 {
					kept = append(kept, narrowed)
				}
			}
		}
		if len(kept) > 0 {
			return kept
		}
		return nil
	}

	if objMap, ok := value.(map[string]any); ok {
		if narrowed := as.keepFromMap(objMap, children); len(narrowed) > 0 {
			return narrowed
		}
		return nil
	}

	return value
}

func (as *AttributeSelector) keepFromMap(objMap map[string]any, children map[string][]string) map[string]any {
	out := make(map[string]any)
	for k, v := range objMap {
		grandchildren, wanted := children[strings.ToLower(k)]
		if !wanted {
			continue
		}
		if len(grandchildren) == 0 {
			out[k] = v
			continue
		}
		if narrowed := as.keepSubAttributes(v, grandchildren); narrowed != nil {
			out[k] = narrowed
		}
	}
	return out
}

// dropSubAttributes is keepSubAttributes' mirror: it removes the named
// sub-attributes instead of keeping only them.
func (as *AttributeSelector) dropSubAttributes(value any, excludedSubs []string) any {
	if value == nil {
		return nil
	}
	children := groupByImmediateChild(excludedSubs)

	if arr, ok := value.([]any); ok {
		out := make([]any, 0, len(arr))
		for _, item := range arr {
			if itemMap, ok := item.(map[string]any); ok {
				if narrowed := as.dropFromMap(itemMap, children); len(narrowed) > 0 {
					out = append(out, narrowed)
				}
			} else {
				out = append(out, item)
			}
		}
		return out
	}

	if objMap, ok := value.(map[string]any); ok {
		return as.dropFromMap(objMap, children)
	}

	return value
}

func (as *AttributeSelector) dropFromMap(objMap map[string]any, children map[string][]string) map[string]any {
	out := make(map[string]any)
	for k, v := range objMap {
		grandchildren, excluded := children[strings.ToLower(k)]
		if !excluded {
			out[k] = v
			continue
		}
		if len(grandchildren) == 0 {
			continue
		}
		if narrowed := as.dropSubAttributes(v, grandchildren); narrowed != nil {
			out[k] = narrowed
		}
	}
	return out
}

// SortResources orders resources by the value at sortBy, pre-extracting
// each resource's sort key once up front so nested/JSON-backed attribute
// lookups aren't repeated on every comparison.
func SortResources[T any](resources []T, sortBy, sortOrder string) []T {
	if sortBy == "" || len(resources) == 0 {
		return resources
	}

	sorted := make([]T, len(resources))
	copy(sorted, resources)
	ascending := strings.ToLower(sortOrder) != "descending"

	type keyed struct {
		resource T
		key      any
	}
	pairs := make([]keyed, len(sorted))
	for i := range sorted {
		pairs[i] = keyed{resource: sorted[i], key: getAttributeValue(sorted[i], sortBy)}
	}

	sort.Slice(pairs, func(i, j int) bool {
		cmp := compareForSort(pairs[i].key, pairs[j].key)
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})

	for i := range pairs {
		sorted[i] = pairs[i].resource
	}
	return sorted
}

// compareForSort returns -1, 0, or 1 for a<b, a==b, a>b across the value
// kinds a sort key can take: string, numeric, bool, time.Time. Mismatched
// or unsupported kinds compare equal rather than erroring.
func compareForSort(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	if aStr, ok := a.(string); ok {
		if bStr, ok := b.(string); ok {
			switch {
			case aStr < bStr:
				return -1
			case aStr > bStr:
				return 1
			default:
				return 0
			}
		}
	}

	if aNum, bNum := toFloat64(a), toFloat64(b); aNum != nil && bNum != nil {
		switch {
		case *aNum < *bNum:
			return -1
		case *aNum > *bNum:
			return 1
		default:
			return 0
		}
	}

	if aBool, ok := a.(bool); ok {
		if bBool, ok := b.(bool); ok {
			switch {
			case !aBool && bBool:
				return -1
			case aBool && !bBool:
				return 1
			default:
				return 0
			}
		}
	}

	if aTime, bTime := toTime(a), toTime(b); aTime != nil && bTime != nil {
		switch {
		case aTime.Before(*bTime):
			return -1
		case aTime.After(*bTime):
			return 1
		default:
			return 0
		}
	}

	return 0
}

func toTime(v any) *time.Time {
	switch val := v.(type) {
	case time.Time:
		return &val
	case *time.Time:
		return val
	default:
		return nil
	}
}

// ApplyPagination slices resources to one SCIM page (1-based startIndex,
// RFC 7644 §3.4.2.4); an out-of-range startIndex yields an empty page
// rather than an error.
func ApplyPagination[T any](resources []T, startIndex, count int) ([]T, int, int) {
	total := len(resources)
	if startIndex < 1 {
		startIndex = 1
	}

	start := startIndex - 1
	if start >= total {
		return []T{}, startIndex, 0
	}

	end := min(start+count, total)
	paged := resources[start:end]
	return paged, startIndex, len(paged)
}
