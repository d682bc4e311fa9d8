package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// Config selects which checks run and which types are instrumented.
type Config struct {
	// Require, Ensure and Invariant switch the three contract categories
	// independently.
	Require   bool
	Ensure    bool
	Invariant bool

	// Limit, if set, restricts instrumentation to types whose full name
	// matches it. The match is anchored at both ends.
	Limit *regexp.Regexp
}

// DefaultConfig enables every check on every type.
func DefaultConfig() Config {
	return Config{Require: true, Ensure: true, Invariant: true}
}

// Instruments reports whether typ passes the Limit filter.
func (c Config) Instruments(typ string) bool {
	return c.Limit == nil || c.Limit.MatchString(typ)
}

// Option names accepted by ParseOptions.
const (
	OptionRequireCheck   = "require_check"
	OptionEnsureCheck    = "ensure_check"
	OptionInvariantCheck = "invariant_check"
	OptionLimit          = "limit"
	OptionCache          = "cache"
)

// CompileLimit compiles a limit pattern so that it must match a whole type
// name.
func CompileLimit(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid limit pattern %q: %w", pattern, err)
	}
	return re, nil
}

// ParseOptions parses a comma separated option string such as
// "ensure_check,limit=collection\..*".
//
// The check options are levels applied in order:
//
//	require_check    preconditions only
//	ensure_check     preconditions and postconditions
//	invariant_check  preconditions and invariants, keeping postconditions
//	                 if an earlier option enabled them
//
// With no check option at all every category is enabled. "cache" is
// accepted for compatibility and ignored. Option names are case
// insensitive; anything else is an error.
func ParseOptions(options string) (Config, error) {
	var (
		cfg      Config
		levelSet bool
	)
	for _, token := range strings.Split(options, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		name, value, hasValue := strings.Cut(token, "=")
		if name == "" {
			return Config{}, fmt.Errorf("invalid option: %q", token)
		}
		switch strings.ToLower(name) {
		case OptionRequireCheck:
			cfg.Require, cfg.Ensure, cfg.Invariant = true, false, false
			levelSet = true
		case OptionEnsureCheck:
			cfg.Require, cfg.Ensure, cfg.Invariant = true, true, false
			levelSet = true
		case OptionInvariantCheck:
			cfg.Require, cfg.Invariant = true, true
			levelSet = true
		case OptionLimit:
			if !hasValue || value == "" {
				return Config{}, fmt.Errorf("option %s requires a pattern", OptionLimit)
			}
			re, err := CompileLimit(value)
			if err != nil {
				return Config{}, err
			}
			cfg.Limit = re
		case OptionCache:
		default:
			return Config{}, fmt.Errorf("invalid option: %q", token)
		}
	}
	if !levelSet {
		cfg.Require, cfg.Ensure, cfg.Invariant = true, true, true
	}
	return cfg, nil
}
