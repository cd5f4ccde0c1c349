package persistence

// KeySlot is the persisted form of the gated key pair. The private key is only
// ever stored sealed; PublicKey is PKIX DER.
type KeySlot struct {
	// KeyID changes on every key generation
	KeyID string `json:"keyId"`

	// Algorithm is the signature scheme the key is used with, e.g. SHA256withRSA
	Algorithm string `json:"algorithm"`

	PublicKey []byte `json:"publicKey"`

	// SealedPrivateKey is a sealing.Envelope over the PKCS#1 private key,
	// bound to KeyID as additional data
	SealedPrivateKey []byte `json:"sealedPrivateKey"`

	// CreatedAt is a Unix timestamp in seconds
	CreatedAt int64 `json:"createdAt"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (k *KeySlot) Clone() *KeySlot {
	if k == nil {
		return nil
	}
	return &KeySlot{
		KeyID:            k.KeyID,
		Algorithm:        k.Algorithm,
		PublicKey:        append([]byte(nil), k.PublicKey...),
		SealedPrivateKey: append([]byte(nil), k.SealedPrivateKey...),
		CreatedAt:        k.CreatedAt,
	}
}
