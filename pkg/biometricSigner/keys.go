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

// CreateKeys generates a new biometric-gated key pair and returns its public key.
//
// Every call replaces the previous pair. Signatures made with an earlier key no
// longer verify against the key returned here.
func (s *BiometricSigner) CreateKeys(ctx context.Context, req *types.CreateKeysRequest) (*types.CreateKeysResponse, error) {
	start := time.Now()
	resp, err := s.createKeys(ctx, req)
	s.metrics.RecordOperation(OperationCreateKeys, err, time.Since(start))
	return resp, err
}

func (s *BiometricSigner) createKeys(ctx context.Context, req *types.CreateKeysRequest) (*types.CreateKeysResponse, error) {
	if err := s.checkPlatform(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, biometricErrors.New(biometricErrors.KindInvalidArgument, "createKeys request is required")
	}
	reason, err := requireReason(req.Reason)
	if err != nil {
		return nil, err
	}

	challenge := s.newChallenge(reason, req.DialogOverrides, nil)

	publicKey, err := runCommitted(ctx, s.gate, OperationCreateKeys, func(ctx context.Context) ([]byte, error) {
		pub, err := s.store.GenerateGatedKeyPair(ctx, challenge)
		if errors.Is(err, secureCredential.ErrCommitAborted) {
			s.logger.Sugar().Infow("Discarded key pair for abandoned createKeys", "challenge_id", challenge.ID)
			return nil, err
		}
		if err != nil {
			s.logger.Sugar().Warnw("Gated key generation failed", "challenge_id", challenge.ID, "error", err)
			return nil, err
		}
		s.logger.Info("Generated biometric-gated key pair",
			zap.String("challenge_id", challenge.ID),
			zap.Int("public_key_len", len(pub)),
		)
		return pub, nil
	})
	if err != nil {
		return nil, classifyCreateKeysError(err)
	}
	if len(publicKey) == 0 {
		return nil, biometricErrors.New(biometricErrors.KindKeyGenerationFailed, "credential store returned an empty public key")
	}

	return &types.CreateKeysResponse{
		PublicKey: base64.StdEncoding.EncodeToString(publicKey),
	}, nil
}

// DeleteKeys removes the gated key pair. Idempotent.
func (s *BiometricSigner) DeleteKeys(ctx context.Context) error {
	start := time.Now()
	err := s.deleteKeys(ctx)
	s.metrics.RecordOperation(OperationDeleteKeys, err, time.Since(start))
	return err
}

func (s *BiometricSigner) deleteKeys(ctx context.Context) error {
	if err := s.checkPlatform(); err != nil {
		return err
	}
	_, err := runCommitted(ctx, s.gate, OperationDeleteKeys, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.DeleteKey(ctx)
	})
	if err != nil {
		var be *biometricErrors.Error
		if errors.As(err, &be) {
			return err
		}
		return biometricErrors.Wrap(biometricErrors.KindSensorError, err, "failed to delete gated key")
	}
	s.logger.Sugar().Infow("Deleted biometric-gated key pair")
	return nil
}

// KeysExist reports whether a gated key pair is present.
func (s *BiometricSigner) KeysExist(ctx context.Context) (bool, error) {
	start := time.Now()
	exists, err := s.keysExist(ctx)
	s.metrics.RecordOperation(OperationKeysExist, err, time.Since(start))
	return exists, err
}

func (s *BiometricSigner) keysExist(ctx context.Context) (bool, error) {
	if err := s.checkPlatform(); err != nil {
		return false, err
	}
	exists, err := s.store.HasKey(ctx)
	if err != nil {
		return false, biometricErrors.Wrap(biometricErrors.KindSensorError, err, "failed to query gated key")
	}
	return exists, nil
}

// PublicKey returns the current gated public key. No prompt is raised.
func (s *BiometricSigner) PublicKey(ctx context.Context) (*types.PublicKeyResponse, error) {
	start := time.Now()
	resp, err := s.publicKey(ctx)
	s.metrics.RecordOperation(OperationPublicKey, err, time.Since(start))
	return resp, err
}

func (s *BiometricSigner) publicKey(ctx context.Context) (*types.PublicKeyResponse, error) {
	if err := s.checkPlatform(); err != nil {
		return nil, err
	}
	keyID, der, err := s.store.PublicKey(ctx)
	switch {
	case errors.Is(err, secureCredential.ErrKeyNotFound):
		return nil, biometricErrors.Wrap(biometricErrors.KindNoKeyAvailable, err, "call createKeys first")
	case err != nil:
		return nil, biometricErrors.Wrap(biometricErrors.KindSensorError, err, "failed to read gated public key")
	case len(der) == 0:
		return nil, biometricErrors.New(biometricErrors.KindNoKeyAvailable, "credential store returned an empty public key")
	}
	return &types.PublicKeyResponse{
		KeyID:     keyID,
		PublicKey: base64.StdEncoding.EncodeToString(der),
	}, nil
}

func classifyCreateKeysError(err error) error {
	var be *biometricErrors.Error
	switch {
	case errors.As(err, &be):
		return err
	case errors.Is(err, secureCredential.ErrEnrollmentRequired):
		return biometricErrors.Wrap(biometricErrors.KindBiometricEnrollmentRequired, err, "enroll a biometric in system settings")
	default:
		return biometricErrors.Wrap(biometricErrors.KindKeyGenerationFailed, err, "credential store rejected key creation")
	}
}
