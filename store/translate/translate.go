// Package translate compiles a parsed SCIM filter into a backend-neutral
// Predicate, always AND-scoped to a tenant, with two render targets: a
// Postgres WHERE clause (sqlx ?-style placeholders) and an in-memory
// evaluator reusing scim.Filter.Matches. Grounded on the query-builder
// pattern in examples/postgres/query_builder.go, generalized so both
// store backends share one compiled IR instead of each re-parsing filter
// strings independently.
package translate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marcelom97/scimgateway/scim"
)

// ErrTranslatorUnscoped is returned by Compile when no tenant ID is
// supplied; a translator must never emit a query it cannot prove is
// tenant-scoped.
var ErrTranslatorUnscoped = errors.New("translate: predicate missing tenant scope")

// Predicate is the compiled, backend-neutral form of a SCIM filter. It is
// always paired with a tenant ID; SQLBuilder.RenderWhere and MatchesMem
// both fold that scope into their output rather than trusting the caller
// to re-apply it.
type Predicate struct {
	TenantID string
	Filter   scim.Filter // nil means "match everything in this tenant"
}

// Compile parses nothing itself (the caller already has a parsed
// scim.Filter from the router) — it exists to make the tenant scope an
// unavoidable part of constructing a Predicate.
func Compile(tenantID string, expr scim.Filter) (Predicate, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Predicate{}, ErrTranslatorUnscoped
	}
	return Predicate{TenantID: tenantID, Filter: expr}, nil
}

// MatchesMem evaluates the predicate against an in-memory resource,
// reusing scim.Filter.Matches for the filter portion.
func (p Predicate) MatchesMem(resourceTenantID string, resource any) bool {
	if resourceTenantID != p.TenantID {
		return false
	}
	if p.Filter == nil {
		return true
	}
	return p.Filter.Matches(resource)
}

// AttrMapping maps a lowercased SCIM attribute name to a literal SQL
// column; anything absent falls back to a JSONB path under dataColumn.
type AttrMapping map[string]string

// SQLBuilder renders a Predicate (plus ordering/pagination) into a
// Postgres WHERE/ORDER BY/LIMIT/OFFSET fragment using sqlx-Rebind-friendly
// "?" placeholders, mirroring examples/postgres/query_builder.go.
type SQLBuilder struct {
	dataColumn string
	attrs      AttrMapping
	params     []any
}

func NewSQLBuilder(dataColumn string, attrs AttrMapping) *SQLBuilder {
	return &SQLBuilder{dataColumn: dataColumn, attrs: attrs}
}

// RenderWhere returns the WHERE clause body (without the "WHERE " keyword)
// and the ordered bind parameters, always including the tenant scope.
func (b *SQLBuilder) RenderWhere(p Predicate) (string, []any) {
	b.params = nil
	tenantClause := fmt.Sprintf("tenant_id = %s", b.nextParam(p.TenantID))

	if p.Filter == nil {
		return tenantClause, b.params
	}
	filterClause := b.filterToSQL(p.Filter)
	if filterClause == "" {
		return tenantClause, b.params
	}
	return fmt.Sprintf("%s AND (%s)", tenantClause, filterClause), b.params
}

// RenderOrderBy mirrors buildOrderClause in the postgres example.
func (b *SQLBuilder) RenderOrderBy(sortBy, sortOrder string) string {
	if sortBy == "" {
		return "ORDER BY created_at ASC"
	}
	path := b.sqlPath(sortBy)
	direction := "ASC"
	if strings.EqualFold(sortOrder, "descending") {
		direction = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s NULLS LAST", path, direction)
}

// RenderLimitOffset mirrors buildPaginationClause.
func (b *SQLBuilder) RenderLimitOffset(startIndex, count int) string {
	var parts []string
	if count > 0 {
		parts = append(parts, fmt.Sprintf("LIMIT %d", count))
	}
	if startIndex > 1 {
		parts = append(parts, fmt.Sprintf("OFFSET %d", startIndex-1))
	}
	return strings.Join(parts, " ")
}

func (b *SQLBuilder) nextParam(v any) string {
	b.params = append(b.params, v)
	return "?"
}

func (b *SQLBuilder) filterToSQL(filter scim.Filter) string {
	switch f := filter.(type) {
	case *scim.AttributeExpression:
		return b.attrExprToSQL(f)
	case *scim.LogicalExpression:
		return b.logicalExprToSQL(f)
	case *scim.GroupExpression:
		inner := b.filterToSQL(f.Filter)
		if inner == "" {
			return ""
		}
		return "(" + inner + ")"
	}
	return ""
}

func (b *SQLBuilder) attrExprToSQL(expr *scim.AttributeExpression) string {
	path := b.sqlPath(expr.AttributePath)
	if path == "" {
		return ""
	}
	switch expr.Operator {
	case "eq":
		return b.equality(path, expr.Value, true)
	case "ne":
		return b.equality(path, expr.Value, false)
	case "co":
		return b.like(path, expr.Value, "%%%s%%")
	case "sw":
		return b.like(path, expr.Value, "%s%%")
	case "ew":
		return b.like(path, expr.Value, "%%%s")
	case "pr":
		return fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", path, path)
	case "gt":
		return b.numeric(path, expr.Value, ">")
	case "ge":
		return b.numeric(path, expr.Value, ">=")
	case "lt":
		return b.numeric(path, expr.Value, "<")
	case "le":
		return b.numeric(path, expr.Value, "<=")
	}
	return ""
}

func (b *SQLBuilder) logicalExprToSQL(expr *scim.LogicalExpression) string {
	switch expr.Operator {
	case "and":
		l, r := b.filterToSQL(expr.Left), b.filterToSQL(expr.Right)
		if l == "" || r == "" {
			return ""
		}
		return fmt.Sprintf("(%s AND %s)", l, r)
	case "or":
		l, r := b.filterToSQL(expr.Left), b.filterToSQL(expr.Right)
		if l == "" || r == "" {
			return ""
		}
		return fmt.Sprintf("(%s OR %s)", l, r)
	case "not":
		inner := b.filterToSQL(expr.Left)
		if inner == "" {
			return ""
		}
		return fmt.Sprintf("NOT (%s)", inner)
	}
	return ""
}

func (b *SQLBuilder) sqlPath(attrPath string) string {
	normalized := strings.ToLower(attrPath)
	if col, ok := b.attrs[normalized]; ok {
		return col
	}
	parts := strings.Split(attrPath, ".")
	var path strings.Builder
	path.WriteString(b.dataColumn)
	for i, part := range parts {
		if i == len(parts)-1 {
			fmt.Fprintf(&path, "->>'%s'", part)
		} else {
			fmt.Fprintf(&path, "->'%s'", part)
		}
	}
	return path.String()
}

func (b *SQLBuilder) equality(path string, value any, equal bool) string {
	op := "="
	if !equal {
		op = "<>"
	}
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("LOWER(%s) %s %s", path, op, b.nextParam(strings.ToLower(v)))
	case bool:
		return fmt.Sprintf("%s %s %s", path, op, b.nextParam(strconv.FormatBool(v)))
	case int64, float64:
		return fmt.Sprintf("(%s)::numeric %s %s", path, op, b.nextParam(fmt.Sprintf("%v", v)))
	case nil:
		if equal {
			return fmt.Sprintf("%s IS NULL", path)
		}
		return fmt.Sprintf("%s IS NOT NULL", path)
	default:
		return fmt.Sprintf("%s %s %s", path, op, b.nextParam(fmt.Sprintf("%v", v)))
	}
}

func (b *SQLBuilder) like(path string, value any, pattern string) string {
	strVal, ok := value.(string)
	if !ok {
		return ""
	}
	escaped := escapeLike(strVal)
	return fmt.Sprintf("LOWER(%s) LIKE %s", path, b.nextParam(strings.ToLower(fmt.Sprintf(pattern, escaped))))
}

func (b *SQLBuilder) numeric(path string, value any, op string) string {
	return fmt.Sprintf("(%s)::numeric %s %s", path, op, b.nextParam(fmt.Sprintf("%v", value)))
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// UserAttrMapping and GroupAttrMapping are the default SQL column
// mappings for the two resource containers.
var UserAttrMapping = AttrMapping{
	"id":       "id",
	"username": "data->>'userName'",
}

var GroupAttrMapping = AttrMapping{
	"id":          "id",
	"displayname": "data->>'displayName'",
}
