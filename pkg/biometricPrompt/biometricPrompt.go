package biometricPrompt

import (
	"context"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
)

// IBiometricPrompt is the black box that asks the user for proof of presence.
//
// Authenticate must always return a terminal outcome: approved, denied,
// cancelled or error. A prompt abandoned through ctx resolves as cancelled.
// The returned result never carries a signature.
type IBiometricPrompt interface {
	Authenticate(ctx context.Context, challenge *types.Challenge) (*types.ChallengeResult, error)

	// EnrolledModalities returns the raw modality strings the platform reports.
	EnrolledModalities(ctx context.Context) ([]string, error)
}
