package persistence

// IKeySlotPersistence stores the single gated key slot of this installation.
// All implementations must be thread-safe.
//
// There is exactly one slot: saving always overwrites, there is no addressing
// by key name.
type IKeySlotPersistence interface {
	// SaveKeySlot persists slot, replacing whatever was stored before.
	SaveKeySlot(slot *KeySlot) error

	// LoadKeySlot returns the stored slot, or nil if no key pair exists.
	// Returns error only on storage failure.
	LoadKeySlot() (*KeySlot, error)

	// DeleteKeySlot removes the stored slot.
	// Idempotent - returns nil if nothing is stored.
	DeleteKeySlot() error

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	HealthCheck() error
}
