package transform

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/marcelom97/scimgateway/scimerr"
	"github.com/marcelom97/scimgateway/transform/cache"
)

// Engine implements spec.md §4.4's forward/reverse transform over a
// tenant+provider's ordered rule set.
type Engine struct {
	rules *cache.RuleCache[Rule]
	regex *cache.RegexCache
	log   func(format string, args ...any)
}

func NewEngine(rules *cache.RuleCache[Rule], regex *cache.RegexCache, log func(format string, args ...any)) *Engine {
	if log == nil {
		log = func(string, ...any) {}
	}
	return &Engine{rules: rules, regex: regex, log: log}
}

type match struct {
	rule        Rule
	entitlement Entitlement
}

// Transform implements the forward path: groupDisplayName -> Entitlements.
// The *TransformationConflict return is non-nil when a MANUAL_REVIEW
// conflict was produced; the caller is expected to persist it via the audit
// sink, not treat it as a failure.
func (e *Engine) Transform(ctx context.Context, tenantID, providerID, groupName string) ([]Entitlement, *TransformationConflict, error) {
	rules, err := e.rules.Get(ctx, tenantID, providerID)
	if err != nil {
		return nil, nil, scimerr.ServerUnavailable(fmt.Sprintf("load rules: %v", err))
	}

	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	var matches []match
	for _, rule := range sorted {
		if !rule.Enabled {
			continue
		}
		groups, ok, err := e.evaluate(rule, groupName)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		name, err := substitute(rule.TargetMapping, groups)
		if err != nil {
			return nil, nil, scimerr.Unprocessable(fmt.Sprintf("rule %s: %v", rule.ID, err))
		}
		matches = append(matches, match{
			rule: rule,
			entitlement: Entitlement{
				ProviderEntitlementID: name,
				Name:                  name,
				Type:                  rule.TargetType,
				MappedGroups:          []string{groupName},
				Priority:              rule.Priority,
				SourceRuleID:          rule.ID,
				Metadata:              rule.Metadata,
			},
		})
	}

	if len(matches) == 0 {
		return nil, nil, nil
	}
	if len(matches) == 1 {
		return []Entitlement{matches[0].entitlement}, nil, nil
	}

	return e.resolveConflict(matches, groupName)
}

func (e *Engine) resolveConflict(matches []match, groupName string) ([]Entitlement, *TransformationConflict, error) {
	strategy := matches[0].rule.ConflictResolution

	switch strategy {
	case ConflictUnion:
		seen := make(map[string]bool)
		var out []Entitlement
		for _, m := range matches {
			if seen[m.entitlement.ProviderEntitlementID] {
				continue
			}
			seen[m.entitlement.ProviderEntitlementID] = true
			out = append(out, m.entitlement)
		}
		return out, nil, nil

	case ConflictFirstMatch:
		return []Entitlement{matches[0].entitlement}, nil, nil

	case ConflictHighestPrivilege:
		best, ok := highestPrivilege(matches)
		if !ok {
			e.log("transform: no rule declared privilegeLevel for %q, degrading HIGHEST_PRIVILEGE to FIRST_MATCH", groupName)
			return []Entitlement{matches[0].entitlement}, nil, nil
		}
		return []Entitlement{best.entitlement}, nil, nil

	case ConflictManualReview:
		ids := make([]string, len(matches))
		ents := make([]Entitlement, len(matches))
		for i, m := range matches {
			ids[i] = m.rule.ID
			ents[i] = m.entitlement
		}
		return nil, &TransformationConflict{
			GroupName:               groupName,
			ConflictingRuleIDs:      ids,
			ConflictingEntitlements: ents,
			Status:                  "PENDING_REVIEW",
		}, nil

	case ConflictError:
		return nil, nil, scimerr.TransformationConflict(fmt.Sprintf("multiple rules matched %q with ERROR conflict resolution", groupName))

	default:
		return []Entitlement{matches[0].entitlement}, nil, nil
	}
}

func highestPrivilege(matches []match) (match, bool) {
	var best match
	found := false
	bestLevel := -1 << 62
	for _, m := range matches {
		level, ok := privilegeLevel(m.rule.Metadata)
		if !ok {
			continue
		}
		if !found || level > bestLevel {
			best, bestLevel, found = m, level, true
		}
	}
	return best, found
}

func privilegeLevel(metadata map[string]any) (int, bool) {
	raw, ok := metadata["privilegeLevel"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// evaluate dispatches to the matcher for rule.RuleType and, on a match,
// returns the captured template variables (numbered and named).
func (e *Engine) evaluate(rule Rule, groupName string) (map[string]string, bool, error) {
	switch rule.RuleType {
	case RuleExact:
		if groupName == rule.SourcePattern {
			return map[string]string{"0": groupName}, true, nil
		}
		return nil, false, nil

	case RuleRegex:
		re, err := e.regex.Compile(rule.SourcePattern)
		if err != nil {
			return nil, false, scimerr.Unprocessable(fmt.Sprintf("rule %s: invalid regex: %v", rule.ID, err))
		}
		sub := re.FindStringSubmatch(groupName)
		if sub == nil {
			return nil, false, nil
		}
		vars := map[string]string{"0": sub[0]}
		for i := 1; i < len(sub); i++ {
			vars[strconv.Itoa(i)] = sub[i]
		}
		return vars, true, nil

	case RuleHierarchical:
		ruleParts := strings.Split(rule.SourcePattern, "/")
		inputParts := strings.Split(groupName, "/")
		if len(inputParts) < len(ruleParts) {
			return nil, false, nil
		}
		vars := make(map[string]string, len(inputParts)*2)
		for i, part := range inputParts {
			vars[fmt.Sprintf("level%d", i)] = part
			vars[strconv.Itoa(i)] = part
		}
		return vars, true, nil

	case RuleConditional:
		ok, err := e.evaluateConditional(rule, groupName)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		return map[string]string{"0": groupName}, true, nil
	}
	return nil, false, fmt.Errorf("unknown rule type %q", rule.RuleType)
}

var conditionalForm = regexp.MustCompile(`^(CONTAINS|STARTS_WITH|ENDS_WITH|EQUALS|MATCHES)\s+(.+)$`)

func (e *Engine) evaluateConditional(rule Rule, groupName string) (bool, error) {
	m := conditionalForm.FindStringSubmatch(strings.TrimSpace(rule.SourcePattern))
	if m == nil {
		// bare regex form
		re, err := e.regex.Compile(rule.SourcePattern)
		if err != nil {
			return false, scimerr.Unprocessable(fmt.Sprintf("rule %s: invalid regex: %v", rule.ID, err))
		}
		return re.MatchString(groupName), nil
	}

	op, value := m[1], strings.Trim(m[2], `"`)
	lowerInput, lowerValue := strings.ToLower(groupName), strings.ToLower(value)
	switch op {
	case "CONTAINS":
		return strings.Contains(lowerInput, lowerValue), nil
	case "STARTS_WITH":
		return strings.HasPrefix(lowerInput, lowerValue), nil
	case "ENDS_WITH":
		return strings.HasSuffix(lowerInput, lowerValue), nil
	case "EQUALS":
		return lowerInput == lowerValue, nil
	case "MATCHES":
		re, err := e.regex.Compile(value)
		if err != nil {
			return false, scimerr.Unprocessable(fmt.Sprintf("rule %s: invalid regex in MATCHES: %v", rule.ID, err))
		}
		return re.MatchString(groupName), nil
	}
	return false, nil
}

var templateVar = regexp.MustCompile(`\$\{([a-zA-Z0-9]+)\}`)

// substitute replaces ${N} / ${levelK} references in a targetMapping
// template with the captured values.
func substitute(template string, vars map[string]string) (string, error) {
	var outerErr error
	out := templateVar.ReplaceAllStringFunc(template, func(token string) string {
		name := token[2 : len(token)-1]
		val, ok := vars[name]
		if !ok {
			outerErr = fmt.Errorf("template references undefined variable ${%s}", name)
			return token
		}
		return val
	})
	if outerErr != nil {
		return "", outerErr
	}
	return out, nil
}

// Reverse implements spec.md §4.4's reverse path.
func (e *Engine) Reverse(ctx context.Context, tenantID, providerID, entitlementID, entitlementType string) ([]string, error) {
	rules, err := e.rules.Get(ctx, tenantID, providerID)
	if err != nil {
		return nil, scimerr.ServerUnavailable(fmt.Sprintf("load rules: %v", err))
	}

	var names []string
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		switch rule.RuleType {
		case RuleExact:
			if rule.TargetMapping == entitlementID {
				names = append(names, rule.SourcePattern)
			}
		case RuleRegex:
			if name, ok := reverseRegex(rule, entitlementID); ok {
				names = append(names, name)
			}
		case RuleHierarchical:
			if name, ok := reverseHierarchical(rule, entitlementID); ok {
				names = append(names, name)
			}
		case RuleConditional:
			// not reversible, skipped per spec.md §4.4
		}
	}
	return names, nil
}

// reverseRegex converts a template like "Sales_${1}_Rep" into a capture
// pattern ("Sales_(.*)_Rep"), matches it against entitlementID, and
// reconstructs the source by substituting the capture into the first
// "(...)" group of sourcePattern. A leading ^ and trailing $ anchor are
// dropped; a reconstruction that still contains regex metacharacters (an
// irreversible pattern) is rejected.
func reverseRegex(rule Rule, entitlementID string) (string, bool) {
	const placeholder = "\x00CAPTURE\x00"
	withPlaceholders := templateVar.ReplaceAllString(rule.TargetMapping, placeholder)
	quoted := regexp.QuoteMeta(withPlaceholders)
	capturePattern := strings.ReplaceAll(quoted, regexp.QuoteMeta(placeholder), "(.*)")
	re, err := regexp.Compile("^" + capturePattern + "$")
	if err != nil {
		return "", false
	}
	sub := re.FindStringSubmatch(entitlementID)
	if sub == nil || len(sub) < 2 {
		return "", false
	}
	firstGroup := regexp.MustCompile(`\(([^()]*)\)`)
	loc := firstGroup.FindStringIndex(rule.SourcePattern)
	if loc == nil {
		return "", false
	}
	reconstructed := rule.SourcePattern[:loc[0]] + sub[1] + rule.SourcePattern[loc[1]:]
	reconstructed = strings.TrimSuffix(strings.TrimPrefix(reconstructed, "^"), "$")
	if containsRegexMeta(reconstructed) {
		return "", false
	}
	return reconstructed, true
}

// reverseHierarchical returns a best-effort hint: when the template
// references exactly one level variable, the entitlement ID is assumed to
// be that single recovered component, per spec.md §4.4's "best-effort
// hint when a single component is recoverable".
func reverseHierarchical(rule Rule, entitlementID string) (string, bool) {
	refs := templateVar.FindAllStringSubmatch(rule.TargetMapping, -1)
	if len(refs) != 1 {
		return "", false
	}
	return entitlementID, true
}

func containsRegexMeta(s string) bool {
	return strings.ContainsAny(s, `.*+?()[]{}|^$\`)
}
