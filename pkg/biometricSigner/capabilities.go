package biometricSigner

import (
	"context"
	"time"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricErrors"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
)

// AuthAvailable reports whether the platform lists any enrolled modality.
//
// It looks at the raw list, so it can be true while GetAvailableBiometricTypes
// returns nothing (e.g. the platform reports only "undefined").
func (s *BiometricSigner) AuthAvailable(ctx context.Context) (bool, error) {
	start := time.Now()
	raw, err := s.queryModalities(ctx)
	s.metrics.RecordOperation(OperationAuthAvailable, err, time.Since(start))
	if err != nil {
		return false, err
	}
	return len(raw) > 0, nil
}

// GetAvailableBiometricTypes lists enrolled modalities in platform order.
// Unrecognized entries are dropped, duplicates are kept.
func (s *BiometricSigner) GetAvailableBiometricTypes(ctx context.Context) ([]types.BiometricType, error) {
	start := time.Now()
	raw, err := s.queryModalities(ctx)
	s.metrics.RecordOperation(OperationGetAvailableBiometricTypes, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	decoded := types.DecodeBiometricTypes(raw)
	if dropped := len(raw) - len(decoded); dropped > 0 {
		s.logger.Sugar().Debugw("Dropped unrecognized biometric types", "raw", raw, "dropped", dropped)
	}
	return decoded, nil
}

func (s *BiometricSigner) queryModalities(ctx context.Context) ([]string, error) {
	raw, err := s.store.QueryEnrolledModalities(ctx)
	if err != nil {
		return nil, biometricErrors.Wrap(biometricErrors.KindSensorError, err, "failed to query enrolled biometrics")
	}
	return raw, nil
}
