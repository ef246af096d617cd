package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/quotaguard/gateway/internal/models"
	"github.com/quotaguard/gateway/internal/ratelimit"
	"github.com/quotaguard/gateway/internal/repository"
)

// RuleService resolves the effective rule set: built-in defaults,
// overridden by rows in rate_limit_profiles. Profiles are loaded once
// at startup; admin updates write through to both the database and the
// in-memory set.
type RuleService struct {
	mu    sync.RWMutex
	repo  *repository.ProfileRepository
	rules map[string]ratelimit.Rule
}

// NewRuleService merges built-in defaults, config-file profiles and
// stored profiles, in that order of precedence. A database error
// degrades to the static set; an invalid profile anywhere is a
// configuration error and fails startup.
func NewRuleService(ctx context.Context, repo *repository.ProfileRepository, local []ratelimit.Rule) (*RuleService, error) {
	s := &RuleService{
		repo:  repo,
		rules: ratelimit.DefaultProfiles(),
	}

	for _, rule := range local {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		s.rules[rule.Name] = rule
	}

	if repo == nil {
		return s, nil
	}

	profiles, err := repo.List(ctx)
	if err != nil {
		log.Printf("WARN: could not load stored rate limit profiles, using defaults: %v", err)
		return s, nil
	}

	for _, p := range profiles {
		rule := profileToRule(p)
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("stored profile %q is invalid: %w", p.Name, err)
		}
		s.rules[rule.Name] = rule
	}

	return s, nil
}

// Resolve returns the rules for the given profile names, in order.
// Unknown resource names fall back to the default resource profile so
// a route never runs unprotected because of a config typo.
func (s *RuleService) Resolve(names ...string) []ratelimit.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]ratelimit.Rule, 0, len(names))
	for _, name := range names {
		if rule, ok := s.rules[name]; ok {
			rules = append(rules, rule)
			continue
		}
		rules = append(rules, ratelimit.ResourceRule(name))
	}
	return rules
}

// Rule returns a single rule by name.
func (s *RuleService) Rule(name string) (ratelimit.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[name]
	return rule, ok
}

// List returns the effective rule set.
func (s *RuleService) List() []ratelimit.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]ratelimit.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		rules = append(rules, rule)
	}
	return rules
}

// Upsert validates and persists a profile, then applies it in memory.
func (s *RuleService) Upsert(ctx context.Context, profile models.RateLimitProfile) error {
	rule := profileToRule(profile)
	if err := rule.Validate(); err != nil {
		return err
	}

	if s.repo != nil {
		if err := s.repo.Upsert(ctx, &profile); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.rules[rule.Name] = rule
	s.mu.Unlock()
	return nil
}

// Delete removes a stored profile. Built-in defaults for the same name
// come back into effect.
func (s *RuleService) Delete(ctx context.Context, name string) error {
	if s.repo != nil {
		if err := s.repo.Delete(ctx, name); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if def, ok := ratelimit.DefaultProfiles()[name]; ok {
		s.rules[name] = def
	} else {
		delete(s.rules, name)
	}
	s.mu.Unlock()
	return nil
}

func profileToRule(p models.RateLimitProfile) ratelimit.Rule {
	return ratelimit.Rule{
		Name:          p.Name,
		Limit:         p.Limit,
		Window:        time.Duration(p.WindowMs) * time.Millisecond,
		BlockDuration: time.Duration(p.BlockDurationMs) * time.Millisecond,
	}
}
