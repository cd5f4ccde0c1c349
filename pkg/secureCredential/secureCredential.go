package secureCredential

import (
	"context"
	"errors"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
)

var (
	// ErrKeyNotFound is returned when a gated key is used before one was generated.
	ErrKeyNotFound = errors.New("secure credential store: no gated key present")

	// ErrEnrollmentRequired is returned when gated key creation needs at least one
	// enrolled biometric modality and none exists.
	ErrEnrollmentRequired = errors.New("secure credential store: no biometric modality enrolled")

	// ErrHardwareUnavailable is returned when the backing secure hardware or
	// biometric sensor cannot be reached.
	ErrHardwareUnavailable = errors.New("secure credential store: secure hardware not available")

	// ErrCommitAborted is returned when the caller went away before the store
	// committed a key change. The previous key state is left as it was.
	ErrCommitAborted = errors.New("secure credential store: caller abandoned the operation before commit")
)

type commitGuardKey struct{}

// WithCommitGuard attaches guard to ctx. Stores run it through CheckCommit
// immediately before replacing or removing the gated key pair.
func WithCommitGuard(ctx context.Context, guard func() error) context.Context {
	return context.WithValue(ctx, commitGuardKey{}, guard)
}

// CheckCommit runs the guard attached to ctx, if any. A non-nil result means the
// change must be discarded.
func CheckCommit(ctx context.Context) error {
	guard, ok := ctx.Value(commitGuardKey{}).(func() error)
	if !ok || guard == nil {
		return nil
	}
	return guard()
}

// ISecureCredentialStore holds the single biometric-gated key pair of this
// installation. The private key never leaves the store; callers only ever see
// the public key and signatures.
//
// Implementations must be safe for concurrent use, but callers are expected to
// serialize anything that may raise a biometric prompt.
type ISecureCredentialStore interface {
	// GenerateGatedKeyPair creates a new key pair whose every use requires a
	// biometric challenge, replacing any existing pair. Returns the PKIX DER
	// encoded public key. CheckCommit(ctx) must pass before the existing pair is
	// replaced; otherwise the new pair is discarded.
	GenerateGatedKeyPair(ctx context.Context, challenge *types.Challenge) ([]byte, error)

	// UseGatedKey raises the biometric challenge and, only when approved, signs
	// challenge.Payload with the gated key (SHA256withRSA). Any resolved challenge
	// is reported through the result's Outcome with a nil error; errors are
	// reserved for a missing key or store failures. Implementations must always
	// resolve, even if the user abandons the prompt.
	UseGatedKey(ctx context.Context, challenge *types.Challenge) (*types.ChallengeResult, error)

	// QueryEnrolledModalities returns the raw modality strings reported by the
	// platform, in platform order.
	QueryEnrolledModalities(ctx context.Context) ([]string, error)

	// PublicKey returns the identifier and PKIX DER public key of the current
	// pair without raising a prompt. ErrKeyNotFound when there is none.
	PublicKey(ctx context.Context) (keyID string, publicKey []byte, err error)

	// HasKey reports whether a gated key pair currently exists.
	HasKey(ctx context.Context) (bool, error)

	// DeleteKey removes the gated key pair. Idempotent. Like
	// GenerateGatedKeyPair it checks CheckCommit(ctx) before removing anything.
	DeleteKey(ctx context.Context) error
}
