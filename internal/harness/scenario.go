package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines an end-to-end build scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists spec-definition files copied into the build tree.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Candidates maps specId to the source the stub generator returns.
	Candidates map[string]string `yaml:"candidates,omitempty"`

	// Builds run in order against the same output directory and lock file.
	Builds []BuildStep `yaml:"builds"`

	// Assertions validate the state after the last build.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// BuildStep is one build plus the changes made before it.
type BuildStep struct {
	Force bool `yaml:"force,omitempty"`
	Prune bool `yaml:"prune,omitempty"`

	// Candidates replace generator answers from this build on.
	Candidates map[string]string `yaml:"candidates,omitempty"`

	// GeneratorErrors make the generator fail for these specIds in this
	// build only. Values are error messages.
	GeneratorErrors map[string]string `yaml:"generator_errors,omitempty"`

	// DeleteArtifacts removes published artifacts before the build.
	DeleteArtifacts []string `yaml:"delete_artifacts,omitempty"`

	// RemoveSpecs deletes spec files (by base name) from the build tree.
	RemoveSpecs []string `yaml:"remove_specs,omitempty"`

	// Expect validates the build report. Nil skips validation.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause lists expected terminal states. Listed states must match
// exactly (order-insensitive); omitted lists are not checked.
type ExpectClause struct {
	Published      []string          `yaml:"published,omitempty"`
	Skipped        []string          `yaml:"skipped,omitempty"`
	Failed         []string          `yaml:"failed,omitempty"`
	Pruned         []string          `yaml:"pruned,omitempty"`
	GeneratorCalls *int              `yaml:"generator_calls,omitempty"`
	Reasons        map[string]string `yaml:"reasons,omitempty"`
}

// Assertion validates state after the last build.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Spec is the specId (artifact_*, lock_*, invoke).
	Spec string `yaml:"spec,omitempty"`

	// Args are the positional arguments (invoke).
	Args []any `yaml:"args,omitempty"`

	// Result is the expected return value (invoke).
	Result any `yaml:"result,omitempty"`

	// Count is the expected number of history runs (history_runs).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertArtifactExists = "artifact_exists"
	AssertArtifactAbsent = "artifact_absent"
	AssertLockContains   = "lock_contains"
	AssertLockAbsent     = "lock_absent"
	AssertInvoke         = "invoke"
	AssertHistoryRuns    = "history_runs"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "build:" vs "builds:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) {
			scenario.Specs[i] = filepath.Join(base, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Builds) == 0 {
		return fmt.Errorf("builds list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, b := range s.Builds {
		if b.Expect != nil && b.Expect.GeneratorCalls != nil && *b.Expect.GeneratorCalls < 0 {
			return fmt.Errorf("builds[%d].expect: generator_calls must be non-negative", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertArtifactExists, AssertArtifactAbsent, AssertLockContains, AssertLockAbsent:
		if a.Spec == "" {
			return fmt.Errorf("assertions[%d]: spec is required for %s", index, a.Type)
		}
	case AssertInvoke:
		if a.Spec == "" {
			return fmt.Errorf("assertions[%d]: spec is required for invoke", index)
		}
		if a.Result == nil {
			return fmt.Errorf("assertions[%d]: result is required for invoke", index)
		}
	case AssertHistoryRuns:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history_runs", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
