package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/specforge/internal/ir"
)

// Snapshot captures the build traces of a scenario for golden comparison.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Builds       []BuildTrace `json:"builds"`
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. ir.MarshalCanonical only handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	builds := make([]any, len(s.Builds))
	for i, b := range s.Builds {
		outcomes := make([]any, len(b.Outcomes))
		for j, o := range b.Outcomes {
			outcomes[j] = map[string]any{
				"spec_id":          o.SpecID,
				"state":            o.State,
				"reason":           o.Reason,
				"generator_called": o.GeneratorCalled,
			}
		}
		build := map[string]any{
			"run_id":   b.RunID,
			"outcomes": outcomes,
			"lock":     stringsToAny(b.Lock),
		}
		if len(b.Pruned) > 0 {
			build["pruned"] = stringsToAny(b.Pruned)
		}
		builds[i] = build
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"builds":        builds,
	}
}

func stringsToAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// RunWithGolden executes a scenario and compares its build traces against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return result, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// MarshalSnapshot renders a result's build traces as canonical JSON, the
// format of golden files.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := Snapshot{ScenarioName: scenarioName, Builds: result.Builds}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
