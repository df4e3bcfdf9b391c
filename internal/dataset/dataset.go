// Package dataset loads the registry of repositories to mine.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/VariantSync/DiffDetective-sub004/cpp"
)

// DefaultInclude matches C and C++ sources and headers.
var DefaultInclude = []string{"**/*.{c,h,cc,hh,cpp,hpp,cxx,hxx}"}

// Dataset describes one repository.
type Dataset struct {
	Name string `yaml:"name"`
	// Path is a local clone. Relative paths are resolved against the
	// registry file.
	Path string `yaml:"path"`
	// URL is cloned into the data directory when Path is empty.
	URL string `yaml:"url"`
	// Ref is the branch, tag or commit to walk from. Empty means HEAD.
	Ref string `yaml:"ref"`
	// Resolver names a macro resolver, "" or "marlin".
	Resolver string   `yaml:"resolver"`
	Include  []string `yaml:"include"`
	Exclude  []string `yaml:"exclude"`
}

// Registry holds the datasets of a registry file.
type Registry struct {
	Datasets []Dataset `yaml:"datasets"`
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset registry: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i := range reg.Datasets {
		if p := reg.Datasets[i].Path; p != "" && !filepath.IsAbs(p) {
			reg.Datasets[i].Path = filepath.Join(base, p)
		}
	}
	return reg, nil
}

// Parse decodes and validates a registry.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing dataset registry: %w", err)
	}
	if len(reg.Datasets) == 0 {
		return nil, fmt.Errorf("dataset registry lists no datasets")
	}
	seen := make(map[string]bool, len(reg.Datasets))
	for _, ds := range reg.Datasets {
		if err := ds.Validate(); err != nil {
			return nil, err
		}
		if seen[ds.Name] {
			return nil, fmt.Errorf("duplicate dataset %q", ds.Name)
		}
		seen[ds.Name] = true
	}
	return &reg, nil
}

// Validate checks names, sources, patterns and the resolver.
func (ds Dataset) Validate() error {
	if ds.Name == "" {
		return fmt.Errorf("dataset without name")
	}
	if ds.Path == "" && ds.URL == "" {
		return fmt.Errorf("dataset %q: either path or url must be set", ds.Name)
	}
	for _, p := range append(append([]string(nil), ds.Include...), ds.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("dataset %q: invalid pattern %q", ds.Name, p)
		}
	}
	if _, err := ds.MacroResolver(); err != nil {
		return err
	}
	return nil
}

// MacroResolver returns the resolver named by Resolver, nil for none.
func (ds Dataset) MacroResolver() (cpp.MacroResolver, error) {
	r, err := cpp.ResolverByName(ds.Resolver)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", ds.Name, err)
	}
	return r, nil
}

// Matches reports whether the repository relative path is mined.
// Exclude patterns win over include patterns.
func (ds Dataset) Matches(path string) bool {
	include := ds.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	return matchAny(include, path) && !matchAny(ds.Exclude, path)
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		match, err := doublestar.Match(pattern, path)
		if err != nil {
			continue
		}
		if match {
			return true
		}
	}
	return false
}

// ClonePath is where a dataset given by URL is cloned below dataDir.
func (ds Dataset) ClonePath(dataDir string) string {
	if ds.Path != "" {
		return ds.Path
	}
	return filepath.Join(dataDir, "repos", ds.Name)
}
