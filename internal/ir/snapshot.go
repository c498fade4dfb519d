package ir

// Snapshot is a point-in-time copy of a target's accumulated findings.
type Snapshot struct {
	Stored map[string]string  `json:"stored"`
	Arrays map[string]IRArray `json:"arrays"`
}

// NewSnapshot creates an empty snapshot with non-nil maps.
func NewSnapshot() Snapshot {
	return Snapshot{
		Stored: make(map[string]string),
		Arrays: make(map[string]IRArray),
	}
}

// Canonical returns the RFC 8785 canonical JSON encoding of the snapshot.
func (s Snapshot) Canonical() ([]byte, error) {
	if s.Stored == nil {
		s.Stored = map[string]string{}
	}
	if s.Arrays == nil {
		s.Arrays = map[string]IRArray{}
	}
	return MarshalCanonical(s)
}

// SnapshotRecord is one persisted snapshot, taken when an action completes.
type SnapshotRecord struct {
	RunID    string   `json:"run_id"`
	Seq      int64    `json:"seq"`     // Logical clock value at persist time
	TaskID   int64    `json:"task_id"` // Task whose completion produced it
	Event    string   `json:"event"`
	Action   string   `json:"action"`
	Snapshot Snapshot `json:"snapshot"`
}
