// Package lockfile tracks which specifications have a published artifact
// and the fingerprint they were built from.
//
// The record is a flat JSON object mapping specId to fingerprint. It is
// loaded once per build, handled as a value, and committed with an atomic
// full replace.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/specforge/internal/atomicfile"
	"github.com/roach88/specforge/internal/ir"
)

// DefaultPath is the lock file location used when none is configured.
const DefaultPath = "code-lock.json"

// Record maps specId to the fingerprint of the spec that produced the
// artifact currently on disk.
type Record map[string]string

// Clone returns an independent copy. A nil record clones to an empty one.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Prune removes every entry whose specId is not in keep and returns the
// removed specIds in no particular order.
func (r Record) Prune(keep map[string]bool) []string {
	var removed []string
	for id := range r {
		if !keep[id] {
			delete(r, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Load reads the record at path. A missing file yields an empty record.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lock file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse lock file %s: %w", path, err)
	}
	if rec == nil {
		rec = Record{} // literal "null"
	}
	return rec, nil
}

// Commit atomically replaces the lock file with rec.
// Keys are written sorted so unchanged records produce identical bytes.
func Commit(path string, rec Record) error {
	if rec == nil {
		rec = Record{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock file: %w", err)
	}
	data = append(data, '\n')
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

// Fingerprint returns the content hash of spec. Any change to the
// description, a requirement, an example, or the order of any of them
// produces a different fingerprint.
func Fingerprint(spec *ir.Specification) (string, error) {
	return ir.SpecHash(spec)
}

// NeedsRebuild reports whether spec must be regenerated: no recorded
// fingerprint, a stale fingerprint, or no artifact at artifactPath.
func NeedsRebuild(rec Record, spec *ir.Specification, artifactPath string) (bool, error) {
	hash, err := Fingerprint(spec)
	if err != nil {
		return false, err
	}
	return needsRebuild(rec, spec.ID, hash, artifactPath)
}

// NeedsRebuildHash is NeedsRebuild for callers that already computed the
// fingerprint.
func NeedsRebuildHash(rec Record, specID, hash, artifactPath string) (bool, error) {
	return needsRebuild(rec, specID, hash, artifactPath)
}

func needsRebuild(rec Record, specID, hash, artifactPath string) (bool, error) {
	prev, ok := rec[specID]
	if !ok || prev != hash {
		return true, nil
	}
	_, err := os.Stat(artifactPath)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat artifact: %w", err)
	}
	return false, nil
}
