package softwareCredentialStore

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricPrompt"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/sealing"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultKeyBits is the RSA modulus size of generated gated keys.
const DefaultKeyBits = 2048

type Config struct {
	// RequireEnrollment refuses key generation while no recognized modality is enrolled
	RequireEnrollment bool

	// KeyBits defaults to DefaultKeyBits
	KeyBits int
}

// SoftwareCredentialStore keeps the gated key sealed in a key slot and only
// opens it after the biometric prompt approves a challenge.
type SoftwareCredentialStore struct {
	mu                sync.Mutex
	slots             persistence.IKeySlotPersistence
	sealer            *sealing.Sealer
	prompt            biometricPrompt.IBiometricPrompt
	requireEnrollment bool
	keyBits           int
	logger            *zap.Logger
}

func NewSoftwareCredentialStore(
	cfg *Config,
	slots persistence.IKeySlotPersistence,
	sealer *sealing.Sealer,
	prompt biometricPrompt.IBiometricPrompt,
	logger *zap.Logger,
) (*SoftwareCredentialStore, error) {
	if slots == nil {
		return nil, fmt.Errorf("key slot persistence is required")
	}
	if sealer == nil {
		return nil, fmt.Errorf("sealer is required")
	}
	if prompt == nil {
		return nil, fmt.Errorf("biometric prompt is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	keyBits := cfg.KeyBits
	if keyBits == 0 {
		keyBits = DefaultKeyBits
	}
	if keyBits < 2048 {
		return nil, fmt.Errorf("key size %d is below the 2048 bit minimum", keyBits)
	}
	return &SoftwareCredentialStore{
		slots:             slots,
		sealer:            sealer,
		prompt:            prompt,
		requireEnrollment: cfg.RequireEnrollment,
		keyBits:           keyBits,
		logger:            logger,
	}, nil
}

// GenerateGatedKeyPair replaces the key slot with a freshly generated pair.
// Generation itself does not raise a prompt. The old slot stays intact if
// anything fails before the new one is saved.
func (s *SoftwareCredentialStore) GenerateGatedKeyPair(ctx context.Context, challenge *types.Challenge) ([]byte, error) {
	if s.requireEnrollment {
		mods, err := s.prompt.EnrolledModalities(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", secureCredential.ErrHardwareUnavailable, err)
		}
		if len(types.DecodeBiometricTypes(mods)) == 0 {
			return nil, secureCredential.ErrEnrollmentRequired
		}
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, s.keyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	publicKey, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	keyID := uuid.New().String()
	der := x509.MarshalPKCS1PrivateKey(privateKey)
	sealed, err := s.sealer.Seal(der, []byte(keyID))
	sealing.ZeroBytes(der)
	if err != nil {
		return nil, fmt.Errorf("failed to seal private key: %w", err)
	}

	slot := &persistence.KeySlot{
		KeyID:            keyID,
		Algorithm:        types.SignatureAlgorithm,
		PublicKey:        publicKey,
		SealedPrivateKey: sealed,
		CreatedAt:        time.Now().Unix(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := secureCredential.CheckCommit(ctx); err != nil {
		s.logger.Sugar().Infow("Discarded generated key before commit",
			"key_id", keyID,
			"challenge_id", challengeID(challenge),
		)
		return nil, err
	}
	if err := s.slots.SaveKeySlot(slot); err != nil {
		return nil, fmt.Errorf("failed to save key slot: %w", err)
	}

	s.logger.Sugar().Infow("Stored new gated key",
		"key_id", keyID,
		"challenge_id", challengeID(challenge),
	)
	return publicKey, nil
}

// UseGatedKey prompts for the challenge and signs the payload only on approval.
func (s *SoftwareCredentialStore) UseGatedKey(ctx context.Context, challenge *types.Challenge) (*types.ChallengeResult, error) {
	if challenge == nil {
		return nil, fmt.Errorf("challenge is required")
	}

	slot, err := s.loadSlot()
	if err != nil {
		return nil, err
	}

	result, err := s.prompt.Authenticate(ctx, challenge)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", secureCredential.ErrHardwareUnavailable, err)
	}
	if result == nil {
		return nil, fmt.Errorf("biometric prompt returned no result")
	}
	if result.Outcome != types.ChallengeOutcomeApproved {
		s.logger.Sugar().Debugw("Gated key use not approved",
			"challenge_id", challenge.ID,
			"outcome", result.Outcome,
		)
		return &types.ChallengeResult{Outcome: result.Outcome, Detail: result.Detail}, nil
	}

	signature, err := s.signWithSlot(slot, challenge.Payload)
	if err != nil {
		return nil, err
	}
	return &types.ChallengeResult{Outcome: types.ChallengeOutcomeApproved, Signature: signature}, nil
}

func (s *SoftwareCredentialStore) loadSlot() (*persistence.KeySlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, err := s.slots.LoadKeySlot()
	if err != nil {
		return nil, fmt.Errorf("failed to load key slot: %w", err)
	}
	if slot == nil {
		return nil, secureCredential.ErrKeyNotFound
	}
	return slot, nil
}

func (s *SoftwareCredentialStore) signWithSlot(slot *persistence.KeySlot, payload []byte) ([]byte, error) {
	der, err := s.sealer.Open(slot.SealedPrivateKey, []byte(slot.KeyID))
	if err != nil {
		return nil, fmt.Errorf("failed to unseal key %s: %w", slot.KeyID, err)
	}
	defer sealing.ZeroBytes(der)

	privateKey, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key %s: %w", slot.KeyID, err)
	}

	digest := sha256.Sum256(payload)
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return signature, nil
}

func (s *SoftwareCredentialStore) QueryEnrolledModalities(ctx context.Context) ([]string, error) {
	return s.prompt.EnrolledModalities(ctx)
}

func (s *SoftwareCredentialStore) HasKey(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, err := s.slots.LoadKeySlot()
	if err != nil {
		return false, fmt.Errorf("failed to load key slot: %w", err)
	}
	return slot != nil, nil
}

// PublicKey reads the current slot's public key. No prompt is raised.
func (s *SoftwareCredentialStore) PublicKey(ctx context.Context) (string, []byte, error) {
	slot, err := s.loadSlot()
	if err != nil {
		return "", nil, err
	}
	return slot.KeyID, slot.PublicKey, nil
}

func (s *SoftwareCredentialStore) DeleteKey(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := secureCredential.CheckCommit(ctx); err != nil {
		return err
	}
	if err := s.slots.DeleteKeySlot(); err != nil {
		return fmt.Errorf("failed to delete key slot: %w", err)
	}
	return nil
}

func challengeID(c *types.Challenge) string {
	if c == nil {
		return ""
	}
	return c.ID
}
