package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FilterProfile is a named filter preset. Zero fields leave the
// corresponding filter unconstrained.
type FilterProfile struct {
	FirstPacket      uint64   `yaml:"first_packet"`
	LastPacket       uint64   `yaml:"last_packet"`
	FirstTimestamp   int64    `yaml:"first_timestamp"` // microseconds since Unix epoch
	LastTimestamp    int64    `yaml:"last_timestamp"`
	FirstTimeOffset  int64    `yaml:"first_time_offset"` // microseconds from capture start
	LastTimeOffset   int64    `yaml:"last_time_offset"`
	VLANIDs          []uint32 `yaml:"vlan_ids"` // outermost first
	Protocols        []string `yaml:"protocols"`
	Source           string   `yaml:"source"`
	Destination      string   `yaml:"destination"`
	Bidirectional    bool     `yaml:"bidirectional"`
	WildcardLearning bool     `yaml:"wildcard_learning"`
}

// ProfileFile maps profile names to filter presets.
type ProfileFile struct {
	Profiles map[string]FilterProfile `yaml:"profiles"`
}

// LoadProfiles reads a filter-profile file.
func LoadProfiles(path string) (*ProfileFile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("profile file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %s: %w", path, err)
	}

	var pf ProfileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse profile file %s: %w", path, err)
	}
	return &pf, nil
}

// Get returns a named profile.
func (pf *ProfileFile) Get(name string) (FilterProfile, error) {
	p, ok := pf.Profiles[name]
	if !ok {
		return FilterProfile{}, fmt.Errorf("unknown filter profile %q", name)
	}
	return p, nil
}
