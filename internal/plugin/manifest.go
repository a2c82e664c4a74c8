package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const manifestFilename = "manifest.yaml"

// Manifest activates one compiled-in handler implementation.
//
//	implementation: HandlerLedSimpleAction
//	description: status LED on the front panel
//	enabled: true
type Manifest struct {
	Implementation string `yaml:"implementation"`
	Description    string `yaml:"description,omitempty"`
	Enabled        *bool  `yaml:"enabled,omitempty"`

	// Path is the directory holding the manifest. Not read from YAML.
	Path string `yaml:"-"`
}

// IsEnabled reports whether the manifest activates its implementation.
// An absent enabled key means enabled.
func (m Manifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

func loadManifest(pluginPath string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(pluginPath, manifestFilename))
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	m.Implementation = strings.TrimSpace(m.Implementation)
	m.Path = pluginPath

	if err := validateManifest(m); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest: %w", err)
	}
	return m, nil
}

func validateManifest(m Manifest) error {
	if m.Implementation == "" {
		return fmt.Errorf("implementation is required")
	}
	if strings.ContainsAny(m.Implementation, `/\`) {
		return fmt.Errorf("implementation must be a bare name: %s", m.Implementation)
	}

	info, err := os.Stat(m.Path)
	if err != nil {
		return fmt.Errorf("plugin directory not found: %w", err)
	}
	if info.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("plugin directory is world-writable: %s", m.Path)
	}
	return nil
}
