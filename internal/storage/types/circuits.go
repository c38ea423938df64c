package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Circuit payloads are persisted as a JSON object blob ({"kitchen": 412.5}).
// Encoding and decoding happen only at the storage edge; everything above it
// works with the typed map.

// EncodeCircuits serializes a circuit map for storage.
// A nil or empty map encodes to an empty string (stored as NULL).
func EncodeCircuits(circuits map[string]float64) (string, error) {
	if len(circuits) == 0 {
		return "", nil
	}

	data, err := json.Marshal(circuits)
	if err != nil {
		return "", fmt.Errorf("encode circuits: %w", err)
	}
	return string(data), nil
}

// DecodeCircuits parses a stored circuit blob.
// An empty blob yields a nil map. A malformed blob yields a nil map and an
// error; callers treat that as "this row contributed no circuit data" rather
// than failing the surrounding window.
func DecodeCircuits(blob string) (map[string]float64, error) {
	if blob == "" {
		return nil, nil
	}

	var circuits map[string]float64
	if err := json.Unmarshal([]byte(blob), &circuits); err != nil {
		return nil, fmt.Errorf("decode circuits: %w", err)
	}
	if len(circuits) == 0 {
		return nil, nil
	}
	return circuits, nil
}

// CircuitNames returns the circuit names of a map in sorted order.
// Sorting makes iteration order, and therefore peak-circuit tie-breaking,
// deterministic.
func CircuitNames(circuits map[string]float64) []string {
	if len(circuits) == 0 {
		return nil
	}

	names := make([]string, 0, len(circuits))
	for name := range circuits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
