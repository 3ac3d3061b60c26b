package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/specforge/internal/ir"
)

// Candidate sources for the sample specs.
const (
	AddNumbersSource = `func(a, b int) map[string]int { return map[string]int{"result": a + b} }`

	// AddNumbersWrong subtracts instead of adding.
	AddNumbersWrong = `func(a, b int) map[string]int { return map[string]int{"result": a - b} }`

	MergeSortedArraysSource = `func(a, b []int) map[string][]int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.Ints(out)
	return map[string][]int{"result": out}
}`

	// MergeSortedArraysConcat forgets to sort.
	MergeSortedArraysConcat = `func(a, b []int) map[string][]int {
	return map[string][]int{"result": append(append([]int{}, a...), b...)}
}`
)

// AddNumbers returns the "add two numbers" sample spec.
func AddNumbers() ir.Specification {
	return ir.Specification{
		ID:          "addNumbers",
		Description: "add 2 numbers",
		Requirements: []ir.Requirement{{
			Description: "when getting 2 numbers, return the sum",
			Examples: []ir.Example{{
				Inputs: []ir.NamedValue{{Name: "a", Value: ir.IRInt(1)}, {Name: "b", Value: ir.IRInt(2)}},
				Output: ir.IRObject{"result": ir.IRInt(3)},
			}},
		}},
	}
}

// MergeSortedArrays returns the "merge two sorted arrays" sample spec.
func MergeSortedArrays() ir.Specification {
	return ir.Specification{
		ID:          "mergeSortedArrays",
		Description: "merge two sorted arrays",
		Requirements: []ir.Requirement{{
			Description: "when getting two sorted arrays, return a single sorted array",
			Examples: []ir.Example{{
				Inputs: []ir.NamedValue{
					{Name: "a", Value: ints(1, 3, 7)},
					{Name: "b", Value: ints(2, 4, 6)},
				},
				Output: ir.IRObject{"result": ints(1, 2, 3, 4, 6, 7)},
			}},
		}},
	}
}

// SampleSources maps the sample spec IDs to correct candidates.
func SampleSources() map[string]string {
	return map[string]string{
		"addNumbers":        AddNumbersSource,
		"mergeSortedArrays": MergeSortedArraysSource,
	}
}

// SampleSpecCUE is a spec-definition file holding both sample specs.
const SampleSpecCUE = `addNumbers: {
	specId:      "addNumbers"
	description: "add 2 numbers"
	specifications: [{
		description: "when getting 2 numbers, return the sum"
		sampleExpectations: [{inputs: {a: 1, b: 2}, output: {result: 3}}]
	}]
}
mergeSortedArrays: {
	specId:      "mergeSortedArrays"
	description: "merge two sorted arrays"
	specifications: [{
		description: "when getting two sorted arrays, return a single sorted array"
		sampleExpectations: [{inputs: {a: [1, 3, 7], b: [2, 4, 6]}, output: {result: [1, 2, 3, 4, 6, 7]}}]
	}]
}
`

// WriteFile writes content to dir/name, creating parent directories,
// and returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func ints(vs ...int64) ir.IRArray {
	arr := make(ir.IRArray, len(vs))
	for i, v := range vs {
		arr[i] = ir.IRInt(v)
	}
	return arr
}
