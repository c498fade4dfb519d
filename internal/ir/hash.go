package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSnapshot = "cascade/snapshot/v1"
	DomainWorkflow = "cascade/workflow/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes the content hash of a snapshot.
// Two snapshots with equal stored values and arrays share a hash.
func SnapshotHash(s Snapshot) (string, error) {
	canonical, err := s.Canonical()
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// WorkflowHash computes a content hash over raw workflow source bytes.
// Stored alongside each run so snapshots can be tied to the definition
// that produced them.
func WorkflowHash(source []byte) string {
	return hashWithDomain(DomainWorkflow, source)
}
