package harness

// OutcomeTrace is the hash-free view of one spec outcome.
type OutcomeTrace struct {
	SpecID          string `json:"spec_id"`
	State           string `json:"state"`
	Reason          string `json:"reason"`
	GeneratorCalled bool   `json:"generator_called"`
}

// BuildTrace records one build of a scenario.
type BuildTrace struct {
	RunID    string         `json:"run_id"`
	Outcomes []OutcomeTrace `json:"outcomes"`
	Pruned   []string       `json:"pruned,omitempty"`

	// Lock lists the specIds in the committed lock file, sorted.
	Lock []string `json:"lock"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Builds holds one trace per build, in order.
	Builds []BuildTrace `json:"builds"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Builds: []BuildTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
