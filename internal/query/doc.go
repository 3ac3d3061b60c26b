// Package query filters build history.
//
// A filter is a Predicate over the fields of a recorded outcome. Predicates
// are a sealed set of types: Equals compares one field to a literal, And
// combines predicates. Filters usually come from the command line as
// field=value terms (see Parse), are checked against the known fields
// (see Validate), and are compiled to a parameterized SQL WHERE clause for
// the history store (see Compile).
//
// Literal values are never interpolated into SQL. Every compiled query is
// paired with OrderBy so results are deterministic.
//
// Known fields:
//
//	spec_id           string  the spec an outcome belongs to
//	run_id            string  the build that produced it
//	state             string  published | skipped_unchanged | failed
//	reason            string  new, changed, validation, generation, ...
//	hash              string  fingerprint of a published or skipped spec
//	generator_called  bool    whether the generator was asked
//	forced            bool    whether the build was forced
package query
