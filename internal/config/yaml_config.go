package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FamilyConfig represents the structure of the family file.
// It is the allow-list seed: only members listed here (or added with the admin
// CLI) can get past the sign-in gate.
type FamilyConfig struct {
	Members []MemberConfig `yaml:"members"`
}

// MemberConfig defines one pre-registered family member.
type MemberConfig struct {
	Email       string `yaml:"email"`
	DisplayName string `yaml:"display_name,omitempty"`
}

// LoadFamilyConfig loads the family file at path.
// Returns nil without error if the file doesn't exist.
func LoadFamilyConfig(path string) (*FamilyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Family file is optional
			return nil, nil
		}
		return nil, err
	}

	var cfg FamilyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(cfg.Members))
	members := cfg.Members[:0]
	for _, m := range cfg.Members {
		m.Email = strings.ToLower(strings.TrimSpace(m.Email))
		m.DisplayName = strings.TrimSpace(m.DisplayName)
		if m.Email == "" {
			return nil, fmt.Errorf("parse %s: member without email", path)
		}
		if seen[m.Email] {
			continue
		}
		seen[m.Email] = true
		members = append(members, m)
	}
	cfg.Members = members

	return &cfg, nil
}

// GetMemberByEmail finds a member by email (case-insensitive).
func (c *FamilyConfig) GetMemberByEmail(email string) *MemberConfig {
	if c == nil {
		return nil
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for i := range c.Members {
		if c.Members[i].Email == email {
			return &c.Members[i]
		}
	}
	return nil
}
