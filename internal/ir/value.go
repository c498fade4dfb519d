package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface representing an item of a stored array.
// Only IRString and IRRecord implement this.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRString is a scalar item appended by an append-scalar rule.
type IRString string

func (IRString) irValue() {}

// IRRecord is a composite item built from one line by an append-composite
// rule. It maps sub-keys to the values matched on that line.
type IRRecord map[string]string

func (IRRecord) irValue() {}

// IRArray is an ordered list of stored array items.
type IRArray []IRValue

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (r IRRecord) SortedKeys() []string {
	return sortedKeys(r)
}

// Clone returns a copy of the record.
func (r IRRecord) Clone() IRRecord {
	cp := make(IRRecord, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// sortedKeys returns map keys in RFC 8785 order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// Go's default string comparison uses UTF-8 which produces a different order.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler for IRRecord with sorted keys.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func (r IRRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		valBytes, err := json.Marshal(r[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for IRArray.
// Strings decode to IRString and objects to IRRecord.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(IRArray, len(raw))
	for i, v := range raw {
		val, err := UnmarshalIRValue(v)
		if err != nil {
			return fmt.Errorf("IRArray index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// UnmarshalIRValue decodes a JSON string or flat string-valued object.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return IRString(s), nil
	case '{':
		var rec map[string]string
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("record values must be strings: %w", err)
		}
		return IRRecord(rec), nil
	default:
		return nil, fmt.Errorf("unsupported array item: %s", string(data))
	}
}

// CloneArray returns a copy of an array whose records are also copied.
func CloneArray(arr IRArray) IRArray {
	cp := make(IRArray, len(arr))
	for i, v := range arr {
		if rec, ok := v.(IRRecord); ok {
			cp[i] = rec.Clone()
			continue
		}
		cp[i] = v
	}
	return cp
}
