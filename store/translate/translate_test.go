package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelom97/scimgateway/scim"
)

func parseFilter(t *testing.T, expr string) scim.Filter {
	t.Helper()
	f, err := scim.NewFilterParser(expr).Parse()
	require.NoError(t, err)
	return f
}

func TestCompileRequiresTenantScope(t *testing.T) {
	_, err := Compile("", nil)
	assert.ErrorIs(t, err, ErrTranslatorUnscoped)

	_, err = Compile("   ", nil)
	assert.ErrorIs(t, err, ErrTranslatorUnscoped)

	p, err := Compile("tenant-a", nil)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", p.TenantID)
	assert.Nil(t, p.Filter)
}

func TestPredicateMatchesMem(t *testing.T) {
	user := &scim.User{UserName: "john.doe"}

	p, err := Compile("tenant-a", nil)
	require.NoError(t, err)
	assert.True(t, p.MatchesMem("tenant-a", user), "nil filter should match everything in-tenant")
	assert.False(t, p.MatchesMem("tenant-b", user), "a resource from another tenant must never match")

	filtered, err := Compile("tenant-a", parseFilter(t, `userName eq "john.doe"`))
	require.NoError(t, err)
	assert.True(t, filtered.MatchesMem("tenant-a", user))

	mismatch, err := Compile("tenant-a", parseFilter(t, `userName eq "jane.doe"`))
	require.NoError(t, err)
	assert.False(t, mismatch.MatchesMem("tenant-a", user))
}

func TestSQLBuilderRenderWhere(t *testing.T) {
	b := NewSQLBuilder("data", AttrMapping{"username": "username"})

	p, err := Compile("tenant-a", nil)
	require.NoError(t, err)
	clause, params := b.RenderWhere(p)
	assert.Equal(t, "tenant_id = ?", clause)
	assert.Equal(t, []any{"tenant-a"}, params)

	p2, err := Compile("tenant-a", parseFilter(t, `userName eq "john.doe"`))
	require.NoError(t, err)
	clause2, params2 := b.RenderWhere(p2)
	assert.Contains(t, clause2, "tenant_id = ?")
	assert.Contains(t, clause2, "AND")
	assert.Equal(t, "tenant-a", params2[0])
}

func TestSQLBuilderRenderOrderBy(t *testing.T) {
	b := NewSQLBuilder("data", AttrMapping{})

	assert.Equal(t, "ORDER BY created_at ASC", b.RenderOrderBy("", ""))

	desc := b.RenderOrderBy("userName", "descending")
	assert.Contains(t, desc, "DESC")
	assert.Contains(t, desc, "NULLS LAST")
}

func TestSQLBuilderRenderLimitOffset(t *testing.T) {
	b := NewSQLBuilder("data", AttrMapping{})

	assert.Empty(t, b.RenderLimitOffset(0, 0))
	assert.Equal(t, "LIMIT 10", b.RenderLimitOffset(1, 10))
	assert.Equal(t, "LIMIT 10 OFFSET 20", b.RenderLimitOffset(21, 10))
}
