package discovery

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// IsWildcard reports whether s contains glob metacharacters and should be
// matched as a pattern rather than compared for equality.
func IsWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// matchPattern matches name against a simple wildcard pattern: '*' and
// '?' are the only metacharacters, everything else is literal. Group and
// host names may legitimately contain '/', '[' or '{', so the richer
// glob syntax is quoted away before compiling.
func matchPattern(pattern, name string) (bool, error) {
	g, err := glob.Compile(quoteSimple(pattern))
	if err != nil {
		return false, err
	}
	return g.Match(name), nil
}

// quoteSimple escapes glob syntax beyond '*' and '?'.
func quoteSimple(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for _, r := range pattern {
		switch r {
		case '\\', '[', ']', '{', '}', ',':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// matchName applies the glob-or-exact rule used by the group and host
// filters: wildcards glob-match, anything else is exact equality.
func matchName(filter, name string) (bool, error) {
	if IsWildcard(filter) {
		return matchPattern(filter, name)
	}
	return filter == name, nil
}

// admit runs the filter pipeline for one instance. Predicates run in a
// fixed order, cheapest first, and the first failing predicate decides
// the omission reason. A pattern error escalates to the caller; it is not
// a per-instance omission.
func admit(inst Instance, cfg Config) (OmitReason, error) {
	// Stopped or stopping instances are of no use for pinging.
	if inst.PowerState != PowerStarting && inst.PowerState != PowerRunning {
		return OmitPowerState, nil
	}

	if cfg.Region != "" && cfg.Region != inst.Region {
		return OmitRegionMismatch, nil
	}

	if cfg.GroupName != "" {
		ok, err := matchName(cfg.GroupName, inst.GroupName)
		if err != nil {
			return OmitNone, fmt.Errorf("group name pattern %q: %w", cfg.GroupName, err)
		}
		if !ok {
			return OmitGroupMismatch, nil
		}
	}

	if cfg.HostName != "" {
		ok, err := matchName(cfg.HostName, inst.ID)
		if err != nil {
			return OmitNone, fmt.Errorf("host name pattern %q: %w", cfg.HostName, err)
		}
		if !ok {
			return OmitHostMismatch, nil
		}
	}

	return OmitNone, nil
}
