package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadProfile reads a single customer profile by slug. It looks for
// customer_<slug>.yaml in the profiles directory.
func LoadProfile(profilesDir, slug string) (*Profile, error) {
	slug = strings.ToLower(slug)
	path := filepath.Join(profilesDir, fmt.Sprintf("customer_%s.yaml", slug))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", slug, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", slug, err)
	}
	if p.Slug == "" {
		p.Slug = slug
	}
	if p.Customer == "" {
		return nil, fmt.Errorf("profile %q has no customer name", slug)
	}
	return &p, nil
}

// LoadAll reads every customer_*.yaml in the profiles directory and
// returns them keyed by slug.
func LoadAll(profilesDir string) (map[string]*Profile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "customer_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*Profile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if p.Slug == "" {
			base := filepath.Base(path)
			p.Slug = strings.TrimSuffix(strings.TrimPrefix(base, "customer_"), ".yaml")
		}
		if p.Customer == "" {
			return nil, fmt.Errorf("profile %s has no customer name", path)
		}
		profiles[p.Slug] = &p
	}
	return profiles, nil
}

// Registry holds all loaded profiles and answers customer-name
// resolution queries. It is read-only after construction and safe for
// concurrent use.
type Registry struct {
	bySlug map[string]*Profile
}

func NewRegistry(profiles map[string]*Profile) *Registry {
	if profiles == nil {
		profiles = map[string]*Profile{}
	}
	return &Registry{bySlug: profiles}
}

// LoadRegistry builds a Registry straight from the profiles directory.
// A missing directory is not an error: matching still works, every
// customer just falls back to defaults.
func LoadRegistry(profilesDir string) (*Registry, error) {
	if _, err := os.Stat(profilesDir); os.IsNotExist(err) {
		return NewRegistry(nil), nil
	}
	profiles, err := LoadAll(profilesDir)
	if err != nil {
		return nil, err
	}
	return NewRegistry(profiles), nil
}

// Resolve maps a free-text customer name to its profile via canonical
// name or alias. The boolean reports whether a profile was found.
func (r *Registry) Resolve(name string) (*Profile, bool) {
	if p, ok := r.bySlug[MakeSlug(name)]; ok {
		return p, true
	}
	for _, slug := range r.slugs() {
		if r.bySlug[slug].Matches(name) {
			return r.bySlug[slug], true
		}
	}
	return nil, false
}

// slugs returns the profile keys in stable sorted order so alias
// resolution does not depend on map iteration.
func (r *Registry) slugs() []string {
	out := make([]string, 0, len(r.bySlug))
	for s := range r.bySlug {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len reports how many profiles are loaded.
func (r *Registry) Len() int { return len(r.bySlug) }

// All returns the loaded profiles in stable slug order.
func (r *Registry) All() []*Profile {
	out := make([]*Profile, 0, len(r.bySlug))
	for _, slug := range r.slugs() {
		out = append(out, r.bySlug[slug])
	}
	return out
}
