// Package transform implements the group-name-to-provider-entitlement
// mapping engine: ordered rule matching (exact/regex/hierarchical/
// conditional), reverse lookup, conflict resolution, and standalone rule
// validation. No teacher package covers this; it is authored fresh in the
// teacher's idiom — plain structs, small interfaces, explicit error
// returns — grounded on the pack's cache-decorator and rule-engine shapes
// (see transform/cache).
package transform

import (
	"context"
	"time"
)

// RuleType is the matching strategy a TransformationRule uses.
type RuleType string

const (
	RuleExact         RuleType = "EXACT"
	RuleRegex         RuleType = "REGEX"
	RuleHierarchical  RuleType = "HIERARCHICAL"
	RuleConditional   RuleType = "CONDITIONAL"
)

// ConflictResolution names how the engine disposes of multiple matches.
type ConflictResolution string

const (
	ConflictUnion             ConflictResolution = "UNION"
	ConflictFirstMatch        ConflictResolution = "FIRST_MATCH"
	ConflictHighestPrivilege  ConflictResolution = "HIGHEST_PRIVILEGE"
	ConflictManualReview      ConflictResolution = "MANUAL_REVIEW"
	ConflictError             ConflictResolution = "ERROR"
)

// Rule mirrors spec.md §3's TransformationRule entity.
type Rule struct {
	ID                 string
	TenantID           string
	ProviderID         string
	RuleType           RuleType
	SourcePattern       string
	TargetType          string
	TargetMapping       string
	Priority            int
	Enabled             bool
	ConflictResolution  ConflictResolution
	Metadata            map[string]any
	Examples            []string
}

// Entitlement is the result of a forward transform, immutable once
// returned to the caller.
type Entitlement struct {
	ProviderEntitlementID string
	Name                  string
	Type                  string
	MappedGroups          []string
	Priority              int
	SourceRuleID          string
	Metadata              map[string]any
}

// TransformationConflict is emitted (as an audit record, not an error)
// when MANUAL_REVIEW resolves a multi-match.
type TransformationConflict struct {
	GroupName           string
	ConflictingRuleIDs  []string
	ConflictingEntitlements []Entitlement
	Status              string
	OccurredAt          time.Time
}

// RuleRepository is the persistence contract transform.Engine reads rules
// through; repository.Repo[*Rule]-shaped but kept as its own small
// interface so transform never imports repository directly. Signature
// matches cache.RuleSource[Rule] so a RuleRepository implementation (e.g.
// RuleStore) can be passed directly as a cache.RuleCache's source.
type RuleRepository interface {
	ListEnabledRules(ctx context.Context, tenantID, providerID string) ([]Rule, error)
}
