package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelom97/scimgateway/transform/cache"
)

func newTestValidator() *Validator {
	return NewValidator(cache.NewRegexCache(time.Second))
}

func TestValidatorErrorsRequiredFields(t *testing.T) {
	v := newTestValidator()
	errs := v.Errors(Rule{RuleType: RuleExact})
	assert.Contains(t, errs, "id is required")
	assert.Contains(t, errs, "sourcePattern is required")
	assert.Contains(t, errs, "targetMapping is required")
}

func TestValidatorErrorsInvalidRegex(t *testing.T) {
	v := newTestValidator()
	errs := v.Errors(Rule{ID: "r1", RuleType: RuleRegex, SourcePattern: "(unterminated", TargetMapping: "x"})
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1], "invalid regex")
}

func TestValidatorErrorsTemplateOutOfRange(t *testing.T) {
	v := newTestValidator()
	errs := v.Errors(Rule{ID: "r1", RuleType: RuleRegex, SourcePattern: `^(\w+)$`, TargetMapping: "${2}"})
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1], "capture group")
}

func TestValidatorErrorsHierarchicalDepth(t *testing.T) {
	v := newTestValidator()
	errs := v.Errors(Rule{ID: "r1", RuleType: RuleHierarchical, SourcePattern: "org", TargetMapping: "${level3}"})
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1], "component")
}

func TestValidatorErrorsUnknownRuleType(t *testing.T) {
	v := newTestValidator()
	errs := v.Errors(Rule{ID: "r1", RuleType: "BOGUS", SourcePattern: "x", TargetMapping: "y"})
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1], "unknown ruleType")
}

func TestValidatorWarnings(t *testing.T) {
	v := newTestValidator()
	warnings := v.Warnings(Rule{RuleType: RuleRegex, SourcePattern: "foo.*"})
	assert.Contains(t, warnings, "no examples provided")
	assert.Contains(t, warnings, "regex is not anchored at the start; consider prefixing with ^")

	clean := v.Warnings(Rule{RuleType: RuleRegex, SourcePattern: "^foo.*", Examples: []string{"foobar"}})
	assert.Empty(t, clean)
}

func TestValidatorTestRule(t *testing.T) {
	v := newTestValidator()
	engine := newTestEngine(t, nil)
	rule := Rule{ID: "r1", RuleType: RuleRegex, SourcePattern: `^Sales-(.+)-Rep$`, TargetMapping: "Sales_${1}_Rep"}

	results := v.TestRule(engine, rule, []string{"Sales-West-Rep", "no-match"})
	require.Len(t, results, 2)
	assert.True(t, results[0].Passed)
	assert.Equal(t, "Sales_West_Rep", results[0].ActualOutput)
	assert.False(t, results[1].Passed)
}
