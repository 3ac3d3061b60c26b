package engine

import (
	"time"
)

// State is a per-spec build state. Only Published, SkippedUnchanged and
// Failed are terminal and appear in an Outcome.
type State string

const (
	StateStart      State = "start"
	StateGenerating State = "generating"
	StateValidating State = "validating"
	StatePublishing State = "publishing"

	StatePublished        State = "published"
	StateSkippedUnchanged State = "skipped_unchanged"
	StateFailed           State = "failed"
)

// Reasons recorded on outcomes.
const (
	ReasonUnchanged       = "unchanged"
	ReasonNew             = "new"
	ReasonChanged         = "changed"
	ReasonArtifactMissing = "artifact missing"
	ReasonForced          = "forced"

	ReasonFingerprint = "fingerprint"
	ReasonGeneration  = "generation"
	ReasonValidation  = "validation"
	ReasonExecution   = "execution"
	ReasonRender      = "render"
	ReasonPersistence = "persistence"
	ReasonCanceled    = "canceled"
)

// Outcome is the terminal result for one spec.
//
// For Published and SkippedUnchanged, Reason says why the spec was rebuilt
// or skipped. For Failed, Reason names the failing stage and Err holds the
// cause.
type Outcome struct {
	SpecID          string        `json:"spec_id"`
	State           State         `json:"state"`
	Hash            string        `json:"hash,omitempty"`
	SourceHash      string        `json:"source_hash,omitempty"`
	Reason          string        `json:"reason"`
	Error           string        `json:"error,omitempty"`
	GeneratorCalled bool          `json:"generator_called"`
	Duration        time.Duration `json:"-"`
	Err             error         `json:"-"`
}

// Report summarises one build run. Outcomes are in processing order.
type Report struct {
	RunID    string    `json:"run_id"`
	Force    bool      `json:"force"`
	Outcomes []Outcome `json:"outcomes"`
	Pruned   []string  `json:"pruned,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Counts tallies outcomes by terminal state.
type Counts struct {
	Published int `json:"published"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Counts tallies the report's outcomes.
func (r *Report) Counts() Counts {
	var c Counts
	for _, o := range r.Outcomes {
		switch o.State {
		case StatePublished:
			c.Published++
		case StateSkippedUnchanged:
			c.Skipped++
		case StateFailed:
			c.Failed++
		}
	}
	return c
}

// Failed reports whether any spec ended in StateFailed.
func (r *Report) Failed() bool {
	return r.Counts().Failed > 0
}

// GeneratorCalls counts outcomes that invoked the generator.
func (r *Report) GeneratorCalls() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.GeneratorCalled {
			n++
		}
	}
	return n
}

// Outcome returns the outcome for specID, if present.
func (r *Report) Outcome(specID string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.SpecID == specID {
			return o, true
		}
	}
	return Outcome{}, false
}
