package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/marcelom97/scimgateway/scimerr"
	"github.com/marcelom97/scimgateway/store"
	"github.com/marcelom97/scimgateway/store/translate"
	"github.com/marcelom97/scimgateway/transform/cache"
)

// RuleStore persists TransformationRule records in store.ContainerRules,
// the same store.Store every other container uses, and satisfies
// RuleRepository so it can back a cache.RuleCache[Rule] as its source.
// Grounded on repository.Repo's Create/Read/List/Delete shape, trimmed to
// what rules need: no ETag/version-as-precondition semantics, since rules
// are mutated by administrators, not synced by an upstream IdP.
type RuleStore struct {
	store     store.Store
	validator *Validator
	cache     *cache.RuleCache[Rule]
}

func NewRuleStore(s store.Store, validator *Validator, ruleCache *cache.RuleCache[Rule]) *RuleStore {
	return &RuleStore{store: s, validator: validator, cache: ruleCache}
}

// SetCache wires the rule cache after construction, breaking the
// construction cycle between RuleStore (which the cache needs as its
// RuleSource) and RuleCache (which RuleStore needs to invalidate on
// mutation).
func (s *RuleStore) SetCache(ruleCache *cache.RuleCache[Rule]) {
	s.cache = ruleCache
}

// ListEnabledRules implements transform.RuleRepository: the cache-miss
// path cache.RuleCache[Rule] calls through RuleSource.
func (s *RuleStore) ListEnabledRules(ctx context.Context, tenantID, providerID string) ([]Rule, error) {
	pred, err := translate.Compile(tenantID, nil)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.QueryItems(ctx, store.ContainerRules, tenantID, pred)
	if err != nil {
		return nil, scimerr.ServerUnavailable(fmt.Sprintf("query rules: %v", err))
	}

	rules := make([]Rule, 0, len(recs))
	for _, rec := range recs {
		var rule Rule
		if err := json.Unmarshal(rec.Data, &rule); err != nil {
			return nil, scimerr.ServerUnavailable(fmt.Sprintf("unmarshal rule: %v", err))
		}
		if rule.ProviderID != providerID || !rule.Enabled {
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s *RuleStore) Create(ctx context.Context, tenantID string, rule Rule) (Rule, error) {
	rule.TenantID = tenantID
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if errs := s.validator.Errors(rule); len(errs) > 0 {
		return Rule{}, scimerr.Unprocessable(errs[0])
	}

	data, err := json.Marshal(rule)
	if err != nil {
		return Rule{}, scimerr.ServerUnavailable(fmt.Sprintf("marshal rule: %v", err))
	}
	rec := store.Record{ID: rule.ID, TenantID: tenantID, Data: data}
	if err := s.store.CreateItem(ctx, store.ContainerRules, rec, store.NaturalKey{}); err != nil {
		return Rule{}, scimerr.ServerUnavailable(fmt.Sprintf("create rule: %v", err))
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, tenantID, rule.ProviderID)
	}
	return rule, nil
}

func (s *RuleStore) Update(ctx context.Context, tenantID, id string, rule Rule) (Rule, error) {
	rule.ID = id
	rule.TenantID = tenantID
	if errs := s.validator.Errors(rule); len(errs) > 0 {
		return Rule{}, scimerr.Unprocessable(errs[0])
	}

	data, err := json.Marshal(rule)
	if err != nil {
		return Rule{}, scimerr.ServerUnavailable(fmt.Sprintf("marshal rule: %v", err))
	}
	rec := store.Record{ID: id, TenantID: tenantID, Data: data}
	if _, err := s.store.UpsertItem(ctx, store.ContainerRules, rec, "", store.NaturalKey{}); err != nil {
		if err == store.ErrNotFound {
			return Rule{}, scimerr.NotFound("Rule", id)
		}
		return Rule{}, scimerr.ServerUnavailable(fmt.Sprintf("update rule: %v", err))
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, tenantID, rule.ProviderID)
	}
	return rule, nil
}

func (s *RuleStore) Delete(ctx context.Context, tenantID, providerID, id string) error {
	if err := s.store.DeleteItem(ctx, store.ContainerRules, tenantID, id); err != nil {
		if err == store.ErrNotFound {
			return scimerr.NotFound("Rule", id)
		}
		return scimerr.ServerUnavailable(fmt.Sprintf("delete rule: %v", err))
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, tenantID, providerID)
	}
	return nil
}

func (s *RuleStore) List(ctx context.Context, tenantID string) ([]Rule, error) {
	pred, err := translate.Compile(tenantID, nil)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.QueryItems(ctx, store.ContainerRules, tenantID, pred)
	if err != nil {
		return nil, scimerr.ServerUnavailable(fmt.Sprintf("query rules: %v", err))
	}
	rules := make([]Rule, 0, len(recs))
	for _, rec := range recs {
		var rule Rule
		if err := json.Unmarshal(rec.Data, &rule); err != nil {
			return nil, scimerr.ServerUnavailable(fmt.Sprintf("unmarshal rule: %v", err))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
