package scim

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// PatchProcessor applies RFC 7644 §3.5.2 add/remove/replace operations to
// an in-memory resource via reflection. It never re-validates the
// result — repository.Repo.Patch re-runs validation after each operation,
// keeping "apply the edit" and "check the invariant" as separate steps.
type PatchProcessor struct{}

func NewPatchProcessor() *PatchProcessor {
	return &PatchProcessor{}
}

// ApplyPatch runs every operation in patch against resource in order,
// stopping at the first failure.
func (pp *PatchProcessor) ApplyPatch(resource any, patch *PatchOp) error {
	for _, op := range patch.Operations {
		if err := pp.applyOperation(resource, op); err != nil {
			return err
		}
	}
	return nil
}

func (pp *PatchProcessor) applyOperation(resource any, op PatchOperation) error {
	switch strings.ToLower(op.Op) {
	case "add":
		return pp.applyAdd(resource, op)
	case "remove":
		return pp.applyRemove(resource, op)
	case "replace":
		return pp.applyReplace(resource, op)
	default:
		return ErrInvalidValue(fmt.Sprintf("invalid operation: %s", op.Op))
	}
}

func (pp *PatchProcessor) applyAdd(resource any, op PatchOperation) error {
	if op.Path == "" {
		return pp.setFields(resource, op.Value)
	}
	return pp.addAtPath(resource, parsePath(op.Path), op.Value)
}

func (pp *PatchProcessor) applyRemove(resource any, op PatchOperation) error {
	if op.Path == "" {
		return ErrNoTarget("path is required for remove operation")
	}
	return pp.removeAtPath(resource, parsePath(op.Path))
}

func (pp *PatchProcessor) applyReplace(resource any, op PatchOperation) error {
	if op.Path == "" {
		// A path-less replace behaves exactly like a path-less add: every
		// field named in the value map is overwritten.
		return pp.setFields(resource, op.Value)
	}
	return pp.addAtPath(resource, parsePath(op.Path), op.Value)
}

// setFields applies a map of top-level attribute values directly onto
// resource's struct fields — the path-less form of add/replace.
func (pp *PatchProcessor) setFields(resource any, value any) error {
	v := indirect(reflect.ValueOf(resource))
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("resource must be a struct")
	}

	valueMap, err := toStringMap(value)
	if err != nil {
		return err
	}

	for key, val := range valueMap {
		field := findField(v, key)
		if !field.IsValid() || !field.CanSet() {
			continue
		}
		if err := pp.setValue(field, val); err != nil {
			return err
		}
	}
	return nil
}

// addAtPath walks path.Segments to the target field (descending through
// slice-filter and pointer segments along the way) and adds/replaces the
// value there. A targeted slice field gets value appended rather than
// overwritten; every other kind is set outright.
func (pp *PatchProcessor) addAtPath(resource any, path *Path, value any) error {
	target := indirect(reflect.ValueOf(resource))

	for i, segment := range path.Segments {
		field := findField(target, segment.Attribute)
		if !field.IsValid() {
			return ErrNoTarget(fmt.Sprintf("attribute %s not found", segment.Attribute))
		}

		last := i == len(path.Segments)-1
		if last {
			if field.Kind() == reflect.Slice || field.Kind() == reflect.Array {
				return pp.appendToSlice(field, value, segment.Filter)
			}
			if !field.CanSet() {
				return ErrMutability(fmt.Sprintf("attribute %s is not mutable", segment.Attribute))
			}
			return pp.setValue(field, value)
		}

		next, err := pp.descend(field, segment)
		if err != nil {
			return err
		}
		target = next
	}
	return nil
}

func (pp *PatchProcessor) removeAtPath(resource any, path *Path) error {
	target := indirect(reflect.ValueOf(resource))

	for i, segment := range path.Segments {
		field := findField(target, segment.Attribute)
		if !field.IsValid() {
			return nil // nothing at this attribute, nothing to remove
		}

		last := i == len(path.Segments)-1
		if last {
			if segment.Filter != nil && (field.Kind() == reflect.Slice || field.Kind() == reflect.Array) {
				return pp.removeFromSlice(field, segment.Filter)
			}
			if !field.CanSet() {
				return ErrMutability(fmt.Sprintf("attribute %s is not mutable", segment.Attribute))
			}
			field.Set(reflect.Zero(field.Type()))
			return nil
		}

		// Unlike addAtPath's descend, a nil intermediate pointer or an
		// unmatched filter here means there is nothing to remove — that's
		// success, not failure, and must not allocate the nil pointer as
		// a side effect.
		if segment.Filter != nil && (field.Kind() == reflect.Slice || field.Kind() == reflect.Array) {
			next, ok := firstMatch(field, segment.Filter)
			if !ok {
				return nil
			}
			target = next
			continue
		}
		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				return nil
			}
			target = field.Elem()
			continue
		}
		target = field
	}
	return nil
}

// firstMatch returns the first element of a slice field satisfying
// filter, indirected through a pointer element if needed.
func firstMatch(field reflect.Value, filter *AttributeExpression) (reflect.Value, bool) {
	for j := 0; j < field.Len(); j++ {
		elem := field.Index(j)
		if filter.Matches(elem.Interface()) {
			return indirect(elem), true
		}
	}
	return reflect.Value{}, false
}

// descend moves from field to the next struct value a path segment
// points at: into the first slice element matching segment.Filter, into
// a (lazily allocated) pointer's target, or straight through for a plain
// struct field.
func (pp *PatchProcessor) descend(field reflect.Value, segment PathSegment) (reflect.Value, error) {
	if segment.Filter != nil && (field.Kind() == reflect.Slice || field.Kind() == reflect.Array) {
		if next, ok := firstMatch(field, segment.Filter); ok {
			return next, nil
		}
		return reflect.Value{}, ErrNoTarget(fmt.Sprintf("no matching element found for filter in attribute %s", segment.Attribute))
	}
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return field.Elem(), nil
	}
	return field, nil
}

func (pp *PatchProcessor) setValue(field reflect.Value, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	newValue := reflect.New(field.Type())
	if err := json.Unmarshal(data, newValue.Interface()); err != nil {
		return err
	}
	field.Set(newValue.Elem())
	return nil
}

// appendToSlice accepts either a single value or a JSON array of values
// and appends each, converted to the slice's element type, to field.
func (pp *PatchProcessor) appendToSlice(field reflect.Value, value any, filter *AttributeExpression) error {
	elemType := field.Type().Elem()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	var asArray []any
	if err := json.Unmarshal(data, &asArray); err != nil {
		elem := reflect.New(elemType)
		if err := json.Unmarshal(data, elem.Interface()); err != nil {
			return err
		}
		field.Set(reflect.Append(field, elem.Elem()))
		return nil
	}

	for _, v := range asArray {
		vData, _ := json.Marshal(v)
		elem := reflect.New(elemType)
		if err := json.Unmarshal(vData, elem.Interface()); err != nil {
			return err
		}
		field.Set(reflect.Append(field, elem.Elem()))
	}
	return nil
}

func (pp *PatchProcessor) removeFromSlice(field reflect.Value, filter *AttributeExpression) error {
	kept := reflect.MakeSlice(field.Type(), 0, field.Len())
	for i := 0; i < field.Len(); i++ {
		elem := field.Index(i)
		if !filter.Matches(elem.Interface()) {
			kept = reflect.Append(kept, elem)
		}
	}
	field.Set(kept)
	return nil
}

func indirect(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Ptr {
		return v.Elem()
	}
	return v
}

func toStringMap(value any) (map[string]any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Path is a parsed PATCH path expression, e.g. emails[type eq "work"].value.
type Path struct {
	Segments []PathSegment
}

// PathSegment is one dot-separated component of a Path, optionally
// narrowed by a bracketed value filter.
type PathSegment struct {
	Attribute string
	Filter    *AttributeExpression
}

func parsePath(pathStr string) *Path {
	path := &Path{}

	for part := range strings.SplitSeq(pathStr, ".") {
		segment := PathSegment{}

		if openIdx := strings.Index(part, "["); openIdx >= 0 {
			closeIdx := strings.Index(part, "]")
			segment.Attribute = part[:openIdx]
			if filter, err := NewFilterParser(part[openIdx+1 : closeIdx]).Parse(); err == nil {
				if attrExpr, ok := filter.(*AttributeExpression); ok {
					segment.Filter = attrExpr
				}
			}
		} else {
			segment.Attribute = part
		}

		path.Segments = append(path.Segments, segment)
	}

	return path
}
