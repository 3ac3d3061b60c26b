package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSpec     = "specforge/spec/v1"
	DomainArtifact = "specforge/artifact/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash computes the content hash of a specification.
//
// Every field that carries meaning participates: the id, the description,
// each requirement description, and every example input (name, value and
// position) and output. Reordering requirements, examples, or inputs changes
// the hash. Source is excluded, so moving a spec between files does not.
func SpecHash(spec *Specification) (string, error) {
	canonical, err := MarshalCanonical(spec.canonicalForm())
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal %q: %w", spec.ID, err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

// SourceHash computes the content hash of published source text.
// Recorded in history so two runs that published identical code can be told apart
// from runs that changed it.
func SourceHash(source string) string {
	return hashWithDomain(DomainArtifact, []byte(source))
}

// MustSpecHash is like SpecHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSpecHash(spec *Specification) string {
	h, err := SpecHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}
