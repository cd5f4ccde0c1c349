package biometricSigner

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricErrors"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"go.uber.org/zap"
)

// Sign raises a fresh biometric challenge and, once approved, signs the decoded
// payload with the gated key (SHA256withRSA).
//
// No nonce or timestamp is added; a signature over the same payload can be
// replayed. Callers needing freshness must put it in the payload.
func (s *BiometricSigner) Sign(ctx context.Context, req *types.SignRequest) (*types.SignResponse, error) {
	start := time.Now()
	resp, err := s.sign(ctx, req)
	s.metrics.RecordOperation(OperationSign, err, time.Since(start))
	return resp, err
}

func (s *BiometricSigner) sign(ctx context.Context, req *types.SignRequest) (*types.SignResponse, error) {
	if err := s.checkPlatform(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, biometricErrors.New(biometricErrors.KindInvalidArgument, "sign request is required")
	}
	reason, err := requireReason(req.Reason)
	if err != nil {
		return nil, err
	}
	payload, err := decodePayload(req.Payload)
	if err != nil {
		return nil, err
	}

	challenge := s.newChallenge(reason, req.DialogOverrides, payload)

	result, err := runExclusive(ctx, s.gate, OperationSign, func(ctx context.Context) (*types.ChallengeResult, error) {
		res, err := s.store.UseGatedKey(ctx, challenge)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errors.New("credential store returned no challenge result")
		}
		s.metrics.RecordChallenge(res.Outcome)
		s.logger.Info("Biometric challenge resolved",
			zap.String("challenge_id", challenge.ID),
			zap.String("outcome", res.Outcome.String()),
			zap.Int("payload_len", len(payload)),
		)
		return res, nil
	})
	if err != nil {
		return nil, classifySignError(err)
	}

	signature, err := signatureFromResult(result)
	if err != nil {
		return nil, err
	}

	return &types.SignResponse{
		Signature: base64.StdEncoding.EncodeToString(signature),
	}, nil
}

func signatureFromResult(result *types.ChallengeResult) ([]byte, error) {
	var cause error
	if result.Detail != "" {
		cause = errors.New(result.Detail)
	}

	switch result.Outcome {
	case types.ChallengeOutcomeApproved:
		if len(result.Signature) == 0 {
			return nil, biometricErrors.New(biometricErrors.KindSensorError, "credential store returned an empty signature")
		}
		return result.Signature, nil
	case types.ChallengeOutcomeDenied:
		return nil, biometricErrors.Wrap(biometricErrors.KindBiometricAuthFailed, cause, biometricErrors.DetailDenied)
	case types.ChallengeOutcomeCancelled:
		return nil, biometricErrors.Wrap(biometricErrors.KindBiometricAuthFailed, cause, biometricErrors.DetailCancelled)
	case types.ChallengeOutcomeError:
		return nil, biometricErrors.Wrap(biometricErrors.KindSensorError, cause, "biometric sensor error")
	default:
		return nil, biometricErrors.Newf(biometricErrors.KindSensorError, "unknown challenge outcome %q", result.Outcome)
	}
}

func classifySignError(err error) error {
	var be *biometricErrors.Error
	switch {
	case errors.As(err, &be):
		return err
	case errors.Is(err, secureCredential.ErrKeyNotFound):
		return biometricErrors.Wrap(biometricErrors.KindNoKeyAvailable, err, "call createKeys first")
	default:
		return biometricErrors.Wrap(biometricErrors.KindSensorError, err, "credential store failed")
	}
}
