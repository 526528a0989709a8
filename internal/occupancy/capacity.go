package occupancy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCapacity is returned for a capacity command that is not a JSON
// object with a non-negative integer max_people.
var ErrInvalidCapacity = errors.New("occupancy: invalid capacity command")

// ParseCapacity decodes a capacity command. The field is required and must
// be a non-negative integer.
func ParseCapacity(payload []byte) (int, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCapacity, err)
	}

	raw, ok := doc["max_people"]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: max_people is required", ErrInvalidCapacity)
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: max_people must be an integer", ErrInvalidCapacity)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: max_people must not be negative", ErrInvalidCapacity)
	}
	return n, nil
}
