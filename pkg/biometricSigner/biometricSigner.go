package biometricSigner

import (
	"encoding/base64"
	"strings"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricErrors"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/config"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

/*
BiometricSigner is the request dispatcher for the biometric-gated key.

	CreateKeys                 -> platform gate -> validate -> challenge gate -> store.GenerateGatedKeyPair
	Sign                       -> platform gate -> validate -> challenge gate -> store.UseGatedKey
	AuthAvailable              -> store.QueryEnrolledModalities (raw list non-empty)
	GetAvailableBiometricTypes -> store.QueryEnrolledModalities (decoded, unknown entries dropped)

Only one biometric challenge is ever in flight. CreateKeys, Sign and DeleteKeys
queue on the challenge gate; a caller that stops waiting gets a cancelled
BiometricAuthFailed while the challenge it started still runs to a terminal
outcome inside the store.

The signer keeps no state between calls. Whether a key exists is owned by the
store.
*/

const (
	OperationCreateKeys                 = "createKeys"
	OperationSign                       = "sign"
	OperationAuthAvailable              = "authAvailable"
	OperationGetAvailableBiometricTypes = "getAvailableBiometricTypes"
	OperationDeleteKeys                 = "deleteKeys"
	OperationKeysExist                  = "keysExist"
	OperationPublicKey                  = "publicKey"
)

type Config struct {
	// Platform gates CreateKeys, Sign, DeleteKeys and KeysExist
	Platform *config.PlatformGate

	// DialogDefaults are server-wide overrides applied beneath each request's own
	DialogDefaults types.DialogMessages
}

type BiometricSigner struct {
	platform      *config.PlatformGate
	dialogDefault types.DialogMessages
	store         secureCredential.ISecureCredentialStore
	gate          *challengeGate
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

func NewBiometricSigner(
	cfg *Config,
	store secureCredential.ISecureCredentialStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) *BiometricSigner {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	platform := cfg.Platform
	if platform == nil {
		platform = config.NewPlatformGate("", nil)
	}
	return &BiometricSigner{
		platform:      platform,
		dialogDefault: types.DefaultDialogMessages().Overlay(cfg.DialogDefaults),
		store:         store,
		gate:          newChallengeGate(m, logger),
		metrics:       m,
		logger:        logger,
	}
}

func (s *BiometricSigner) checkPlatform() error {
	if !s.platform.IsSupported() {
		return biometricErrors.New(biometricErrors.KindUnsupportedPlatform, s.platform.Platform)
	}
	return nil
}

// newChallenge builds the prompt for one operation. Dialog overrides are only
// merged here, after the platform gate has passed.
func (s *BiometricSigner) newChallenge(reason string, overrides types.DialogMessages, payload []byte) *types.Challenge {
	return &types.Challenge{
		ID:      uuid.New().String(),
		Reason:  reason,
		Dialog:  s.dialogDefault.Overlay(overrides),
		Payload: payload,
	}
}

func requireReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", biometricErrors.New(biometricErrors.KindInvalidArgument, "reason is required")
	}
	return trimmed, nil
}

func decodePayload(payload string) ([]byte, error) {
	if payload == "" {
		return nil, biometricErrors.New(biometricErrors.KindInvalidArgument, "payload is required")
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, biometricErrors.Wrap(biometricErrors.KindInvalidArgument, err, "payload must be standard base64")
	}
	return decoded, nil
}
