package awsKmsCredentialStore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricPrompt"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PendingWindowInDays is how long a replaced key stays recoverable in KMS.
const PendingWindowInDays = 7

// kmsAPI is the subset of the KMS client used by the store.
type kmsAPI interface {
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
	UpdateAlias(ctx context.Context, params *kms.UpdateAliasInput, optFns ...func(*kms.Options)) (*kms.UpdateAliasOutput, error)
	DeleteAlias(ctx context.Context, params *kms.DeleteAliasInput, optFns ...func(*kms.Options)) (*kms.DeleteAliasOutput, error)
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	ScheduleKeyDeletion(ctx context.Context, params *kms.ScheduleKeyDeletionInput, optFns ...func(*kms.Options)) (*kms.ScheduleKeyDeletionOutput, error)
}

type Config struct {
	// Alias names the single gated key slot, e.g. alias/biosigner-gated-key
	Alias string

	Region string

	// RequireEnrollment refuses key generation while no recognized modality is enrolled
	RequireEnrollment bool
}

// AWSKMSCredentialStore keeps the gated RSA key inside AWS KMS. The private key
// never leaves KMS; the biometric prompt runs locally before every Sign call.
type AWSKMSCredentialStore struct {
	kmsClient         kmsAPI
	prompt            biometricPrompt.IBiometricPrompt
	alias             string
	region            string
	requireEnrollment bool
	logger            *zap.Logger
}

func NewAWSKMSCredentialStore(awsCfg aws.Config, cfg *Config, prompt biometricPrompt.IBiometricPrompt, logger *zap.Logger) (*AWSKMSCredentialStore, error) {
	return newStore(kms.NewFromConfig(awsCfg), cfg, prompt, logger)
}

func newStore(client kmsAPI, cfg *Config, prompt biometricPrompt.IBiometricPrompt, logger *zap.Logger) (*AWSKMSCredentialStore, error) {
	if cfg == nil || cfg.Alias == "" {
		return nil, fmt.Errorf("kms alias is required")
	}
	if !strings.HasPrefix(cfg.Alias, "alias/") {
		return nil, fmt.Errorf("kms alias %q must start with alias/", cfg.Alias)
	}
	if prompt == nil {
		return nil, fmt.Errorf("biometric prompt is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AWSKMSCredentialStore{
		kmsClient:         client,
		prompt:            prompt,
		alias:             cfg.Alias,
		region:            cfg.Region,
		requireEnrollment: cfg.RequireEnrollment,
		logger:            logger,
	}, nil
}

// GenerateGatedKeyPair creates a new RSA-2048 signing key, points the alias at
// it and schedules the previous key for deletion.
func (a *AWSKMSCredentialStore) GenerateGatedKeyPair(ctx context.Context, challenge *types.Challenge) ([]byte, error) {
	if a.requireEnrollment {
		mods, err := a.prompt.EnrolledModalities(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", secureCredential.ErrHardwareUnavailable, err)
		}
		if len(types.DecodeBiometricTypes(mods)) == 0 {
			return nil, secureCredential.ErrEnrollmentRequired
		}
	}

	previous, err := a.describeAlias(ctx)
	if err != nil && !errors.Is(err, secureCredential.ErrKeyNotFound) {
		return nil, err
	}
	var previousKeyID string
	var previousEnabled bool
	if previous != nil {
		previousKeyID = aws.ToString(previous.KeyId)
		previousEnabled = previous.KeyState == kmsTypes.KeyStateEnabled
	}

	keyRes, err := a.createSigningKey(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create RSA key in region %s", a.region)
	}
	keyID := aws.ToString(keyRes.KeyMetadata.KeyId)

	pubRes, err := a.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		a.scheduleDeletion(ctx, keyID)
		return nil, errors.Wrapf(err, "failed to get public key for key %s in region %s", keyID, a.region)
	}

	if err := secureCredential.CheckCommit(ctx); err != nil {
		a.logger.Sugar().Infow("Discarding KMS key created for an abandoned request",
			"key_id", keyID,
			"challenge_id", challengeID(challenge),
		)
		a.scheduleDeletion(ctx, keyID)
		return nil, err
	}

	if previousKeyID == "" {
		_, err = a.kmsClient.CreateAlias(ctx, &kms.CreateAliasInput{
			AliasName:   aws.String(a.alias),
			TargetKeyId: aws.String(keyID),
		})
	} else {
		_, err = a.kmsClient.UpdateAlias(ctx, &kms.UpdateAliasInput{
			AliasName:   aws.String(a.alias),
			TargetKeyId: aws.String(keyID),
		})
	}
	if err != nil {
		a.scheduleDeletion(ctx, keyID)
		return nil, errors.Wrapf(err, "failed to point alias %s at key %s in region %s", a.alias, keyID, a.region)
	}

	if previousEnabled {
		a.scheduleDeletion(ctx, previousKeyID)
	}

	a.logger.Sugar().Infow("Created KMS gated key",
		"key_id", keyID,
		"alias", a.alias,
		"replaced_key_id", previousKeyID,
		"challenge_id", challengeID(challenge),
	)
	return pubRes.PublicKey, nil
}

func (a *AWSKMSCredentialStore) createSigningKey(ctx context.Context) (*kms.CreateKeyOutput, error) {
	input := &kms.CreateKeyInput{
		KeyUsage:    kmsTypes.KeyUsageTypeSignVerify,
		KeySpec:     kmsTypes.KeySpecRsa2048,
		Description: aws.String(fmt.Sprintf("Biometric-gated signing key - %s", a.alias)),
		Tags: []kmsTypes.Tag{
			{
				TagKey:   aws.String("Name"),
				TagValue: aws.String(strings.TrimPrefix(a.alias, "alias/")),
			},
			{
				TagKey:   aws.String("Purpose"),
				TagValue: aws.String("biometric-gated-signing"),
			},
			{
				TagKey:   aws.String("SignatureAlgorithm"),
				TagValue: aws.String(types.SignatureAlgorithm),
			},
		},
	}

	result, err := a.kmsClient.CreateKey(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS key: %w", err)
	}
	if result.KeyMetadata == nil || result.KeyMetadata.KeyId == nil {
		return nil, fmt.Errorf("KMS returned no key metadata")
	}
	return result, nil
}

// UseGatedKey prompts locally, then asks KMS to sign the SHA-256 digest of the
// payload. KMS is never called unless the challenge is approved.
func (a *AWSKMSCredentialStore) UseGatedKey(ctx context.Context, challenge *types.Challenge) (*types.ChallengeResult, error) {
	if challenge == nil {
		return nil, fmt.Errorf("challenge is required")
	}

	keyID, err := a.currentKeyID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := a.prompt.Authenticate(ctx, challenge)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", secureCredential.ErrHardwareUnavailable, err)
	}
	if result == nil {
		return nil, fmt.Errorf("biometric prompt returned no result")
	}
	if result.Outcome != types.ChallengeOutcomeApproved {
		return &types.ChallengeResult{Outcome: result.Outcome, Detail: result.Detail}, nil
	}

	digest := sha256.Sum256(challenge.Payload)
	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(keyID),
		Message:          digest[:],
		MessageType:      kmsTypes.MessageTypeDigest,
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecRsassaPkcs1V15Sha256,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign with key %s in region %s", keyID, a.region)
	}

	return &types.ChallengeResult{Outcome: types.ChallengeOutcomeApproved, Signature: signOutput.Signature}, nil
}

// PublicKey returns the KMS key ID and PKIX DER public key the alias currently
// points at. No prompt is raised.
func (a *AWSKMSCredentialStore) PublicKey(ctx context.Context) (string, []byte, error) {
	keyID, err := a.currentKeyID(ctx)
	if err != nil {
		return "", nil, err
	}
	res, err := a.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		return "", nil, errors.Wrapf(err, "failed to get public key for key %s in region %s", keyID, a.region)
	}
	return keyID, res.PublicKey, nil
}

func (a *AWSKMSCredentialStore) QueryEnrolledModalities(ctx context.Context) ([]string, error) {
	return a.prompt.EnrolledModalities(ctx)
}

func (a *AWSKMSCredentialStore) HasKey(ctx context.Context) (bool, error) {
	_, err := a.currentKeyID(ctx)
	if errors.Is(err, secureCredential.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteKey removes the alias and schedules the key behind it for deletion.
func (a *AWSKMSCredentialStore) DeleteKey(ctx context.Context) error {
	keyID, err := a.currentKeyID(ctx)
	if errors.Is(err, secureCredential.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := secureCredential.CheckCommit(ctx); err != nil {
		return err
	}

	if _, err := a.kmsClient.DeleteAlias(ctx, &kms.DeleteAliasInput{AliasName: aws.String(a.alias)}); err != nil && !isNotFound(err) {
		return errors.Wrapf(err, "failed to delete alias %s in region %s", a.alias, a.region)
	}
	a.scheduleDeletion(ctx, keyID)
	return nil
}

// describeAlias returns the metadata of the key the alias points at, in any state.
func (a *AWSKMSCredentialStore) describeAlias(ctx context.Context) (*kmsTypes.KeyMetadata, error) {
	res, err := a.kmsClient.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(a.alias)})
	if err != nil {
		if isNotFound(err) {
			return nil, secureCredential.ErrKeyNotFound
		}
		return nil, errors.Wrapf(err, "failed to describe %s in region %s", a.alias, a.region)
	}
	if res.KeyMetadata == nil || res.KeyMetadata.KeyId == nil {
		return nil, secureCredential.ErrKeyNotFound
	}
	return res.KeyMetadata, nil
}

// currentKeyID resolves the alias to a usable key. A missing alias or a key
// that is no longer enabled reports ErrKeyNotFound.
func (a *AWSKMSCredentialStore) currentKeyID(ctx context.Context) (string, error) {
	meta, err := a.describeAlias(ctx)
	if err != nil {
		return "", err
	}
	if meta.KeyState != kmsTypes.KeyStateEnabled {
		a.logger.Sugar().Warnw("Gated key is not enabled",
			"key_id", aws.ToString(meta.KeyId),
			"state", meta.KeyState,
		)
		return "", secureCredential.ErrKeyNotFound
	}
	return aws.ToString(meta.KeyId), nil
}

func (a *AWSKMSCredentialStore) scheduleDeletion(ctx context.Context, keyID string) {
	_, err := a.kmsClient.ScheduleKeyDeletion(ctx, &kms.ScheduleKeyDeletionInput{
		KeyId:               aws.String(keyID),
		PendingWindowInDays: aws.Int32(PendingWindowInDays),
	})
	if err != nil {
		a.logger.Sugar().Warnw("Failed to schedule key deletion", "key_id", keyID, "error", err)
		return
	}
	a.logger.Sugar().Infow("Scheduled key for deletion", "key_id", keyID, "pending_days", PendingWindowInDays)
}

func isNotFound(err error) bool {
	var nf *kmsTypes.NotFoundException
	return errors.As(err, &nf)
}

func challengeID(c *types.Challenge) string {
	if c == nil {
		return ""
	}
	return c.ID
}
