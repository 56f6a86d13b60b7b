package collector

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

const (
	// SourcesEnvVar selects which collector sources are active, comma-separated.
	SourcesEnvVar = "VG_COLLECTOR_SOURCES"
	// DefaultSourceName is used when VG_COLLECTOR_SOURCES is unset.
	DefaultSourceName = "feed"
)

// Registry stores collector sources and resolves the active set.
type Registry struct {
	sources map[string]Source
	active  []string
}

func NewRegistry(active string) *Registry {
	names := splitSourceNames(active)
	if len(names) == 0 {
		names = []string{DefaultSourceName}
	}
	return &Registry{
		sources: make(map[string]Source),
		active:  names,
	}
}

// NewRegistryFromEnv creates a source registry from environment
// configuration. Sources register themselves afterwards so their own
// configuration errors surface to the caller.
func NewRegistryFromEnv() *Registry {
	return NewRegistry(os.Getenv(SourcesEnvVar))
}

// Register adds one source.
func (r *Registry) Register(source Source) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if source == nil {
		return fmt.Errorf("source is nil")
	}
	name := normalizeSourceName(source.Name())
	if name == "" {
		return fmt.Errorf("source name is required")
	}
	r.sources[name] = source
	return nil
}

// Source resolves a source by name.
func (r *Registry) Source(name string) (Source, error) {
	if r == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	resolved := normalizeSourceName(name)
	source, ok := r.sources[resolved]
	if !ok {
		return nil, fmt.Errorf("collector source %q is not registered (available: %s)", resolved, strings.Join(r.SourceNames(), ", "))
	}
	return source, nil
}

// ActiveSources resolves the configured active set, skipping names that never
// registered.
func (r *Registry) ActiveSources() []Source {
	if r == nil {
		return nil
	}
	sources := make([]Source, 0, len(r.active))
	for _, name := range r.active {
		if source, ok := r.sources[name]; ok {
			sources = append(sources, source)
		}
	}
	return sources
}

func (r *Registry) SourceNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func splitSourceNames(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		name := normalizeSourceName(part)
		if name == "" {
			continue
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func normalizeSourceName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
