package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TestResult is one row of the testRule(rule, inputs[]) operation spec.md
// §4.4 names: errors block the rule from being saved, warnings do not.
type TestResult struct {
	Input        string
	ActualOutput string
	Passed       bool
	ErrorMessage string
}

// Validator checks a Rule's structural invariants and exercises it
// against sample inputs.
type Validator struct {
	regex RegexCompiler
}

// RegexCompiler is the subset of *cache.RegexCache the validator needs,
// kept as an interface so validation can run without constructing a full
// engine.
type RegexCompiler interface {
	Compile(pattern string) (*regexp.Regexp, error)
}

func NewValidator(regex RegexCompiler) *Validator {
	return &Validator{regex: regex}
}

// Errors returns the fatal problems with rule r (missing fields, invalid
// regex, out-of-range template variables) — a non-empty result means the
// rule must not be saved.
func (v *Validator) Errors(r Rule) []string {
	var errs []string
	if r.ID == "" {
		errs = append(errs, "id is required")
	}
	if r.SourcePattern == "" {
		errs = append(errs, "sourcePattern is required")
	}
	if r.TargetMapping == "" {
		errs = append(errs, "targetMapping is required")
	}

	switch r.RuleType {
	case RuleRegex:
		re, err := v.regex.Compile(r.SourcePattern)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid regex: %v", err))
		} else {
			maxRef := highestTemplateRef(r.TargetMapping)
			if maxRef > re.NumSubexp() {
				errs = append(errs, fmt.Sprintf("template references ${%d} but sourcePattern has only %d capture group(s)", maxRef, re.NumSubexp()))
			}
		}
	case RuleHierarchical:
		ruleDepth := len(strings.Split(r.SourcePattern, "/"))
		maxLevel := highestLevelRef(r.TargetMapping)
		if maxLevel >= 0 && maxLevel > ruleDepth-1 {
			errs = append(errs, fmt.Sprintf("template references ${level%d} but sourcePattern has only %d component(s)", maxLevel, ruleDepth))
		}
	case RuleExact, RuleConditional:
		// no structural constraint beyond the common checks above
	default:
		errs = append(errs, fmt.Sprintf("unknown ruleType %q", r.RuleType))
	}

	return errs
}

// Warnings returns non-fatal issues: no examples, and a REGEX rule whose
// pattern is not anchored with ^. It reports no hierarchical depth
// warnings; a ${levelK} reference past the pattern's depth is reported by
// Errors instead.
func (v *Validator) Warnings(r Rule) []string {
	var warnings []string
	if len(r.Examples) == 0 {
		warnings = append(warnings, "no examples provided")
	}
	if r.RuleType == RuleRegex && !strings.HasPrefix(r.SourcePattern, "^") {
		warnings = append(warnings, "regex is not anchored at the start; consider prefixing with ^")
	}
	return warnings
}

// TestRule runs rule r against each input and reports whether the engine
// would match it, along with the produced entitlement name.
func (v *Validator) TestRule(engine *Engine, r Rule, inputs []string) []TestResult {
	results := make([]TestResult, 0, len(inputs))
	for _, input := range inputs {
		vars, ok, err := engine.evaluate(r, input)
		if err != nil {
			results = append(results, TestResult{Input: input, Passed: false, ErrorMessage: err.Error()})
			continue
		}
		if !ok {
			results = append(results, TestResult{Input: input, Passed: false, ErrorMessage: "no match"})
			continue
		}
		out, err := substitute(r.TargetMapping, vars)
		if err != nil {
			results = append(results, TestResult{Input: input, Passed: false, ErrorMessage: err.Error()})
			continue
		}
		results = append(results, TestResult{Input: input, ActualOutput: out, Passed: true})
	}
	return results
}

func highestTemplateRef(template string) int {
	max := 0
	for _, m := range templateVar.FindAllStringSubmatch(template, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

func highestLevelRef(template string) int {
	levelRef := regexp.MustCompile(`\$\{level(\d+)\}`)
	max := -1
	for _, m := range levelRef.FindAllStringSubmatch(template, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}
