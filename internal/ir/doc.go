// Package ir provides the specification data model and the value types
// used for example inputs and outputs.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Values are JSON-shaped: null, string, number, bool, array, object
//   - Integral numbers are always IRInt, so 3 and 3.0 are the same value
//   - Example inputs are ordered; the order defines positional arguments
//   - Content hashes use RFC 8785 canonical JSON with domain separation
package ir
