package ratelimit

import (
	"fmt"
	"time"
)

// Rule is an immutable fixed-window rate limit configuration.
// A Rule with a non-zero BlockDuration escalates a denial into a
// time-boxed block of the offending identifier.
type Rule struct {
	Name          string
	Limit         int
	Window        time.Duration
	BlockDuration time.Duration
}

// Validate rejects malformed rules. Invalid limits or windows are
// configuration bugs and must fail at construction time, never at
// request time.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rate limit rule requires a name")
	}
	if r.Limit <= 0 {
		return fmt.Errorf("rule %q: limit must be positive, got %d", r.Name, r.Limit)
	}
	if r.Window <= 0 {
		return fmt.Errorf("rule %q: window must be positive, got %v", r.Name, r.Window)
	}
	if r.BlockDuration < 0 {
		return fmt.Errorf("rule %q: block duration cannot be negative, got %v", r.Name, r.BlockDuration)
	}
	return nil
}

// GlobalRule is the default per-client ceiling across all endpoints.
func GlobalRule() Rule {
	return Rule{Name: "global", Limit: 100, Window: time.Minute}
}

// AuthRule protects credential endpoints: 5 attempts per 15 minutes,
// then a one-hour block.
func AuthRule() Rule {
	return Rule{
		Name:          "auth",
		Limit:         5,
		Window:        15 * time.Minute,
		BlockDuration: time.Hour,
	}
}

// ResourceRule returns the default profile for a named resource group.
func ResourceRule(name string) Rule {
	return Rule{Name: name, Limit: 60, Window: time.Minute}
}

// StrictRule is for sensitive endpoints: low ceiling with a short block.
func StrictRule() Rule {
	return Rule{
		Name:          "strict",
		Limit:         10,
		Window:        time.Minute,
		BlockDuration: 5 * time.Minute,
	}
}

// DefaultProfiles returns the built-in rule set. Database-stored
// profiles with the same name take precedence at startup.
func DefaultProfiles() map[string]Rule {
	return map[string]Rule{
		"global": GlobalRule(),
		"auth":   AuthRule(),
		"strict": StrictRule(),
	}
}
