package transform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelom97/scimgateway/transform/cache"
)

func newTestEngine(t *testing.T, rules []Rule) *Engine {
	t.Helper()
	source := func(ctx context.Context, tenantID, providerID string) ([]Rule, error) {
		return rules, nil
	}
	ruleCache := cache.NewRuleCache(cache.NewMemoryBackend(), time.Minute, source)
	regexCache := cache.NewRegexCache(time.Second)
	return NewEngine(ruleCache, regexCache, nil)
}

func TestTransformExactMatch(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleExact, SourcePattern: "Engineering", TargetType: "role", TargetMapping: "eng-role", Enabled: true},
	})

	ents, conflict, err := engine.Transform(context.Background(), "t1", "p1", "Engineering")
	require.NoError(t, err)
	assert.Nil(t, conflict)
	require.Len(t, ents, 1)
	assert.Equal(t, "eng-role", ents[0].Name)
	assert.Equal(t, "r1", ents[0].SourceRuleID)
}

func TestTransformRegexMatchSubstitution(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleRegex, SourcePattern: `^Sales-(.+)-Rep$`, TargetType: "role", TargetMapping: "Sales_${1}_Rep", Enabled: true},
	})

	ents, _, err := engine.Transform(context.Background(), "t1", "p1", "Sales-West-Rep")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "Sales_West_Rep", ents[0].Name)
}

func TestTransformNoMatch(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleExact, SourcePattern: "Engineering", TargetMapping: "eng", Enabled: true},
	})

	ents, conflict, err := engine.Transform(context.Background(), "t1", "p1", "Marketing")
	require.NoError(t, err)
	assert.Nil(t, conflict)
	assert.Empty(t, ents)
}

func TestTransformDisabledRuleIgnored(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleExact, SourcePattern: "Engineering", TargetMapping: "eng", Enabled: false},
	})

	ents, _, err := engine.Transform(context.Background(), "t1", "p1", "Engineering")
	require.NoError(t, err)
	assert.Empty(t, ents)
}

func TestTransformConflictUnion(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleExact, SourcePattern: "Eng", Priority: 1, TargetMapping: "role-a", Enabled: true, ConflictResolution: ConflictUnion},
		{ID: "r2", RuleType: RuleExact, SourcePattern: "Eng", Priority: 2, TargetMapping: "role-b", Enabled: true, ConflictResolution: ConflictUnion},
	})

	ents, conflict, err := engine.Transform(context.Background(), "t1", "p1", "Eng")
	require.NoError(t, err)
	assert.Nil(t, conflict)
	assert.Len(t, ents, 2)
}

func TestTransformConflictFirstMatch(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r2", RuleType: RuleExact, SourcePattern: "Eng", Priority: 2, TargetMapping: "role-b", Enabled: true, ConflictResolution: ConflictFirstMatch},
		{ID: "r1", RuleType: RuleExact, SourcePattern: "Eng", Priority: 1, TargetMapping: "role-a", Enabled: true, ConflictResolution: ConflictFirstMatch},
	})

	ents, _, err := engine.Transform(context.Background(), "t1", "p1", "Eng")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "role-a", ents[0].Name, "priority ordering should put r1 first")
}

func TestTransformConflictManualReview(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleExact, SourcePattern: "Eng", Priority: 1, TargetMapping: "role-a", Enabled: true, ConflictResolution: ConflictManualReview},
		{ID: "r2", RuleType: RuleExact, SourcePattern: "Eng", Priority: 2, TargetMapping: "role-b", Enabled: true, ConflictResolution: ConflictManualReview},
	})

	ents, conflict, err := engine.Transform(context.Background(), "t1", "p1", "Eng")
	require.NoError(t, err)
	assert.Nil(t, ents)
	require.NotNil(t, conflict)
	assert.Equal(t, "PENDING_REVIEW", conflict.Status)
	assert.ElementsMatch(t, []string{"r1", "r2"}, conflict.ConflictingRuleIDs)
}

func TestTransformConflictError(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleExact, SourcePattern: "Eng", Priority: 1, TargetMapping: "role-a", Enabled: true, ConflictResolution: ConflictError},
		{ID: "r2", RuleType: RuleExact, SourcePattern: "Eng", Priority: 2, TargetMapping: "role-b", Enabled: true, ConflictResolution: ConflictError},
	})

	_, _, err := engine.Transform(context.Background(), "t1", "p1", "Eng")
	assert.Error(t, err)
}

func TestTransformHighestPrivilege(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleExact, SourcePattern: "Eng", Priority: 1, TargetMapping: "role-a", Enabled: true,
			ConflictResolution: ConflictHighestPrivilege, Metadata: map[string]any{"privilegeLevel": 1}},
		{ID: "r2", RuleType: RuleExact, SourcePattern: "Eng", Priority: 2, TargetMapping: "role-b", Enabled: true,
			ConflictResolution: ConflictHighestPrivilege, Metadata: map[string]any{"privilegeLevel": 5}},
	})

	ents, _, err := engine.Transform(context.Background(), "t1", "p1", "Eng")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "role-b", ents[0].Name)
}

func TestReverseExactAndRegex(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleExact, SourcePattern: "Engineering", TargetMapping: "eng-role", Enabled: true},
		{ID: "r2", RuleType: RuleRegex, SourcePattern: `^Sales-(.+)-Rep$`, TargetMapping: "Sales_${1}_Rep", Enabled: true},
	})

	names, err := engine.Reverse(context.Background(), "t1", "p1", "eng-role", "role")
	require.NoError(t, err)
	assert.Equal(t, []string{"Engineering"}, names)

	names2, err := engine.Reverse(context.Background(), "t1", "p1", "Sales_West_Rep", "role")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sales-West-Rep"}, names2)
}

func TestTransformHierarchical(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleHierarchical, SourcePattern: "org/dept", TargetMapping: "${level1}", Enabled: true},
	})

	ents, _, err := engine.Transform(context.Background(), "t1", "p1", "acme/engineering")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "engineering", ents[0].Name)
}

func TestTransformConditional(t *testing.T) {
	engine := newTestEngine(t, []Rule{
		{ID: "r1", RuleType: RuleConditional, SourcePattern: `CONTAINS "admin"`, TargetMapping: "admin-role", Enabled: true},
	})

	ents, _, err := engine.Transform(context.Background(), "t1", "p1", "Group-Admin-Team")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "admin-role", ents[0].Name)

	ents2, _, err := engine.Transform(context.Background(), "t1", "p1", "Group-Plain-Team")
	require.NoError(t, err)
	assert.Empty(t, ents2)
}
