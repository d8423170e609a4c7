package discovery

import (
	"fmt"
	"time"
)

// Config is the resolver configuration snapshot for one cycle. Optional
// filters are plain values where the empty string means "not configured";
// there is no generic settings store behind it.
type Config struct {
	// RefreshInterval bounds how often the inventory is refetched.
	// Zero disables caching entirely, a negative value caches forever,
	// a positive value is the cache TTL.
	RefreshInterval time.Duration

	// GroupName restricts candidates to instances of a matching group.
	// May be a glob pattern ('*' and '?'). Empty disables the filter.
	GroupName string

	// Region restricts candidates to a region by exact, case-sensitive
	// equality. Empty disables the filter.
	Region string

	// HostName restricts candidates by instance identifier, glob or
	// exact like GroupName. Empty disables the filter.
	HostName string

	// AddressFamily selects the private or public instance address.
	AddressFamily AddressFamily
}

// Validate rejects configurations the resolver cannot act on. Malformed
// glob patterns are caught here so they surface at startup instead of on
// some later discovery cycle.
func (c Config) Validate() error {
	switch c.AddressFamily {
	case AddressPrivate, AddressPublic:
	default:
		return fmt.Errorf("address family must be %q or %q, got %q", AddressPrivate, AddressPublic, c.AddressFamily)
	}
	if IsWildcard(c.GroupName) {
		if _, err := matchPattern(c.GroupName, ""); err != nil {
			return fmt.Errorf("group name pattern %q: %w", c.GroupName, err)
		}
	}
	if IsWildcard(c.HostName) {
		if _, err := matchPattern(c.HostName, ""); err != nil {
			return fmt.Errorf("host name pattern %q: %w", c.HostName, err)
		}
	}
	return nil
}

// ConfigProvider supplies the configuration for each resolution cycle.
// It is re-invoked per call so live configuration changes take effect
// without rebuilding the resolver.
type ConfigProvider func() Config

// StaticConfig wraps a fixed Config as a ConfigProvider.
func StaticConfig(c Config) ConfigProvider {
	return func() Config { return c }
}
