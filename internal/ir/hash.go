package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for contract fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainOperation = "covenant/operation/v1"
	DomainType      = "covenant/type/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// OperationFingerprint computes a content hash of a composed operation
// contract. Two compositions with the same clauses in the same order, from
// the same declaring types, share a fingerprint.
func OperationFingerprint(oc *OperationContract) (string, error) {
	requires := make([]any, 0, len(oc.Requires))
	for _, g := range oc.Requires {
		requires = append(requires, map[string]any{
			"type":    g.DeclaringType,
			"clauses": clauseTexts(g.Clauses),
		})
	}
	obj := map[string]any{
		"type":        oc.Type,
		"operation":   oc.Operation,
		"constructor": oc.Constructor,
		"requires":    requires,
		"ensures":     clauseObjects(oc.Ensures),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("OperationFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOperation, canonical), nil
}

// TypeFingerprint computes a content hash of a composed invariant.
func TypeFingerprint(tc *TypeContract) (string, error) {
	obj := map[string]any{
		"type":       tc.Type,
		"invariants": clauseObjects(tc.Invariants),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("TypeFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainType, canonical), nil
}

// MustOperationFingerprint is like OperationFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustOperationFingerprint(oc *OperationContract) string {
	fp, err := OperationFingerprint(oc)
	if err != nil {
		panic(err)
	}
	return fp
}

func clauseTexts(clauses []*Clause) []any {
	out := make([]any, len(clauses))
	for i, c := range clauses {
		out[i] = c.String()
	}
	return out
}

func clauseObjects(clauses []*Clause) []any {
	out := make([]any, len(clauses))
	for i, c := range clauses {
		out[i] = map[string]any{
			"type":   c.DeclaringType,
			"clause": c.String(),
		}
	}
	return out
}
