package types

import (
	"strings"
)

// SignatureAlgorithm is the only digest+signature scheme produced by gated keys.
// Signatures are RSASSA-PKCS1-v1_5 over the SHA-256 digest of the raw payload.
const SignatureAlgorithm = "SHA256withRSA"

// BiometricType is a biometric modality the device can have enrolled.
type BiometricType string

const (
	BiometricTypeFace        BiometricType = "face"
	BiometricTypeFingerprint BiometricType = "fingerprint"
	BiometricTypeIris        BiometricType = "iris"
)

func (b BiometricType) String() string {
	return string(b)
}

// ParseBiometricType decodes a platform-reported modality string.
// Unrecognized values, including the literal "undefined", report ok=false.
func ParseBiometricType(raw string) (BiometricType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "face":
		return BiometricTypeFace, true
	case "fingerprint":
		return BiometricTypeFingerprint, true
	case "iris":
		return BiometricTypeIris, true
	default:
		return "", false
	}
}

// DecodeBiometricTypes decodes raw modality strings in order, silently dropping
// anything ParseBiometricType does not recognize. Duplicates are kept.
func DecodeBiometricTypes(raw []string) []BiometricType {
	decoded := make([]BiometricType, 0, len(raw))
	for _, r := range raw {
		if bt, ok := ParseBiometricType(r); ok {
			decoded = append(decoded, bt)
		}
	}
	return decoded
}

// ChallengeOutcome is the terminal state of a biometric proof-of-presence check.
type ChallengeOutcome string

const (
	ChallengeOutcomeApproved  ChallengeOutcome = "approved"
	ChallengeOutcomeDenied    ChallengeOutcome = "denied"
	ChallengeOutcomeCancelled ChallengeOutcome = "cancelled"
	ChallengeOutcomeError     ChallengeOutcome = "error"
)

func (o ChallengeOutcome) String() string {
	return string(o)
}

// Challenge is what gets presented to the user before a gated key is used.
type Challenge struct {
	// ID correlates log lines for a single prompt
	ID      string
	Reason  string
	Dialog  DialogMessages
	Payload []byte
}

// ChallengeResult is returned by the credential store once a challenge resolves.
// Signature is only populated when Outcome is ChallengeOutcomeApproved.
type ChallengeResult struct {
	Outcome   ChallengeOutcome
	Signature []byte
	Detail    string
}
