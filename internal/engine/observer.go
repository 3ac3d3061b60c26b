package engine

// Observer is notified as a build progresses. Implementations must not
// block; they run on the build goroutine.
type Observer interface {
	// SpecFinished is called once per spec with its terminal outcome.
	SpecFinished(runID string, o Outcome)

	// BuildFinished is called once per Build, including builds stopped by
	// a PersistenceError or cancellation.
	BuildFinished(r *Report)
}
