package capability

import (
	"fmt"
	"os"

	"ace/internal/engine"
	"ace/internal/server/model"

	"gopkg.in/yaml.v3"
)

// Spec is one container capability binding: which category it handles,
// which image and command to run, and optionally a verify command the
// verifier reruns in a fresh container.
type Spec struct {
	Category       string `yaml:"category"`
	Image          string `yaml:"image"`
	Command        string `yaml:"command"`
	Verify         string `yaml:"verify"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type configFile struct {
	Capabilities []Spec `yaml:"capabilities"`
}

// LoadConfig reads and validates the capability bindings.
func LoadConfig(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capability config: %w", err)
	}
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse capability config: %w", err)
	}
	if len(file.Capabilities) == 0 {
		return nil, fmt.Errorf("capability config %s declares no capabilities", path)
	}

	seen := make(map[string]struct{}, len(file.Capabilities))
	for i, spec := range file.Capabilities {
		if !model.ValidCategory(spec.Category) {
			return nil, fmt.Errorf("capability %d: unknown category %q", i, spec.Category)
		}
		if _, dup := seen[spec.Category]; dup {
			return nil, fmt.Errorf("capability %d: duplicate category %q", i, spec.Category)
		}
		seen[spec.Category] = struct{}{}
		if spec.Image == "" {
			return nil, fmt.Errorf("capability %q: image is required", spec.Category)
		}
		if spec.Command == "" {
			return nil, fmt.Errorf("capability %q: command is required", spec.Category)
		}
		if spec.TimeoutSeconds < 0 {
			return nil, fmt.Errorf("capability %q: timeout_seconds must not be negative", spec.Category)
		}
	}
	return file.Capabilities, nil
}

// BuildRegistry turns the validated specs into the category -> capability
// map the engine dispatches on.
func BuildRegistry(specs []Spec, runner *ContainerRunner) map[string]engine.Capability {
	caps := make(map[string]engine.Capability, len(specs))
	for _, spec := range specs {
		caps[spec.Category] = NewContainerCapability(spec, runner)
	}
	return caps
}
