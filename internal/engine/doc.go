// Package engine implements the incremental build orchestrator.
//
// For each discovered specification the engine decides whether the
// published artifact is still current, asks the generator for a new
// candidate when it is not, validates the candidate by execution, and
// publishes it only when every example passes.
//
// STATE MACHINE (per spec):
//
//	Start ──(!force && !needsRebuild)──▶ SkippedUnchanged
//	Start ──▶ Generating ──(error/empty)──▶ Failed
//	Generating ──▶ Validating ──(mismatch/execution error)──▶ Failed
//	Validating ──▶ Publishing ──(write error)──▶ Failed + PersistenceError
//	Publishing ──▶ Published
//
// Build is a function of (specs, prior record, options) returning a report
// and the new record. The engine never reads or writes the lock file
// itself; callers load it, pass it in, and commit the returned value.
//
// INVARIANTS:
//   - Specs are processed sequentially in discovery order.
//   - An artifact is written only after full validation success.
//   - One spec's failure never prevents later specs from being attempted.
//   - The returned record holds an entry only for specs whose artifact on
//     disk matches that entry.
//   - A PersistenceError stops the build; the record returned with it is
//     still consistent with the artifacts on disk.
package engine
