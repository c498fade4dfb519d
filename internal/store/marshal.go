package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// marshalSnapshot converts a snapshot to canonical JSON TEXT for storage.
func marshalSnapshot(snap ir.Snapshot) (string, error) {
	data, err := snap.Canonical()
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

// unmarshalSnapshot parses canonical JSON TEXT back to a snapshot.
// Array items decode to IRString or IRRecord via ir.IRArray.UnmarshalJSON.
func unmarshalSnapshot(data string) (ir.Snapshot, error) {
	snap := ir.NewSnapshot()
	if data == "" {
		return snap, nil
	}
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return ir.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Stored == nil {
		snap.Stored = map[string]string{}
	}
	if snap.Arrays == nil {
		snap.Arrays = map[string]ir.IRArray{}
	}
	return snap, nil
}
