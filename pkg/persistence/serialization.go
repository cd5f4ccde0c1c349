package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalKeySlot serializes a KeySlot to JSON bytes.
func MarshalKeySlot(slot *KeySlot) ([]byte, error) {
	if slot == nil {
		return nil, fmt.Errorf("cannot marshal nil KeySlot")
	}

	data, err := json.Marshal(slot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal KeySlot to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalKeySlot deserializes a KeySlot from JSON bytes.
func UnmarshalKeySlot(data []byte) (*KeySlot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var slot KeySlot
	if err := json.Unmarshal(data, &slot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to KeySlot: %w", err)
	}
	return &slot, nil
}
