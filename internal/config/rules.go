// Mailuminati Sentry
// Copyright (C) 2025 Simon Bressier
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules is the detection rule set handed to the detection engine.
type Rules struct {
	SensitiveWords       []string `yaml:"sensitive_words"`
	TrustedDomains       []string `yaml:"trusted_domains"`
	DangerousExtensions  []string `yaml:"dangerous_extensions"`
	DangerousTypeMarkers []string `yaml:"dangerous_type_markers"`
	CredentialLabels     []string `yaml:"credential_labels"`
}

// DefaultRules returns a fresh copy of the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		SensitiveWords:       []string{"confidencial", "contraseña"},
		TrustedDomains:       []string{"empresa.com", "google.com"},
		DangerousExtensions:  []string{".zip", ".exe", ".bat", ".js"},
		DangerousTypeMarkers: []string{"zip", "x-javascript", "x-msdownload"},
		CredentialLabels:     []string{"usuario", "user", "login", "clave", "password"},
	}
}

// LoadRules overlays the YAML file at path on DefaultRules. Lists present in
// the file replace the default list entirely; absent lists keep the default.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return rules, nil
}
