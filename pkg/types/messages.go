package types

// CreateKeysRequest asks for a fresh biometric-gated key pair.
type CreateKeysRequest struct {
	Reason          string         `json:"reason"`
	DialogOverrides DialogMessages `json:"dialogOverrides,omitzero"`
}

// CreateKeysResponse carries the base64 (PKIX DER) public key of the new pair.
type CreateKeysResponse struct {
	PublicKey string `json:"publicKey"`
}

// SignRequest asks for a signature over Payload (base64). The signature carries no
// nonce or timestamp; callers that need replay protection embed it in Payload.
type SignRequest struct {
	Payload         string         `json:"payload"`
	Reason          string         `json:"reason"`
	DialogOverrides DialogMessages `json:"dialogOverrides,omitzero"`
}

// SignResponse carries the base64 signature.
type SignResponse struct {
	Signature string `json:"signature"`
}

// PublicKeyResponse identifies the current gated key. PublicKey is base64 PKIX DER.
type PublicKeyResponse struct {
	KeyID     string `json:"keyId"`
	PublicKey string `json:"publicKey"`
}

type AuthAvailableResponse struct {
	Available bool `json:"available"`
}

type BiometricTypesResponse struct {
	Types []BiometricType `json:"types"`
}

// ErrorResponse is the JSON body returned by the HTTP transport on failure.
type ErrorResponse struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}
