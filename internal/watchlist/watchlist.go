package watchlist

import (
	"fmt"
	"os"

	"github.com/SteelMorgan/condorlog/internal/logcache"
	"github.com/SteelMorgan/condorlog/internal/pollstate"
	"github.com/SteelMorgan/condorlog/internal/snapshot"
	"gopkg.in/yaml.v3"
)

// Target is one watched directory of submit logs
type Target struct {
	Name   string        `yaml:"name"`
	Dir    string        `yaml:"dir"`
	Prefix string        `yaml:"prefix"`
	Suffix string        `yaml:"suffix"`
	Kind   snapshot.Kind `yaml:"kind"`

	// ActiveOnly skips retired files; nil means true
	ActiveOnly *bool  `yaml:"active_only"`
	Notes      string `yaml:"notes"`
}

// WatchList is the content of watch.yaml
type WatchList struct {
	Targets []Target `yaml:"targets"`
}

// Load loads and validates watch.yaml
func Load(path string) (*WatchList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watch list: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates watch list YAML, filling defaults
func Parse(data []byte) (*WatchList, error) {
	var wl WatchList
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("failed to parse watch list: %w", err)
	}

	for i := range wl.Targets {
		t := &wl.Targets[i]
		if t.Suffix == "" {
			t.Suffix = logcache.DefaultSuffix
		}
		if t.Kind == 0 {
			t.Kind = snapshot.KindCounts
		}
		if t.Name == "" {
			t.Name = t.Prefix + "@" + t.Dir
		}
	}

	if err := wl.Validate(); err != nil {
		return nil, err
	}
	return &wl, nil
}

// Validate rejects incomplete targets and duplicate names
func (wl *WatchList) Validate() error {
	if len(wl.Targets) == 0 {
		return fmt.Errorf("watch list has no targets")
	}
	seen := make(map[string]bool, len(wl.Targets))
	for i, t := range wl.Targets {
		if t.Dir == "" {
			return fmt.Errorf("target %d (%s): dir is required", i, t.Name)
		}
		if t.Prefix == "" {
			return fmt.Errorf("target %d (%s): prefix is required", i, t.Name)
		}
		if !t.Kind.Valid() {
			return fmt.Errorf("target %d (%s): invalid kind %s", i, t.Name, t.Kind)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// IsActiveOnly reports whether retired files are skipped
func (t Target) IsActiveOnly() bool {
	return t.ActiveOnly == nil || *t.ActiveOnly
}

// DirConfig builds the aggregator configuration of the target
func (t Target) DirConfig(opts logcache.Options) logcache.DirConfig {
	return logcache.DirConfig{
		Dir:     t.Dir,
		Prefix:  t.Prefix,
		Suffix:  t.Suffix,
		Kind:    t.Kind,
		Options: opts,
	}
}

// StateKey is the pollstate key of the target's aggregate
func (t Target) StateKey() string {
	return pollstate.Key(t.Kind, t.Dir, t.Prefix, t.Suffix)
}
