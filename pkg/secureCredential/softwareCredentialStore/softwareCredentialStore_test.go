package softwareCredentialStore

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricPrompt/scriptedPrompt"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/sealing"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testKDF = sealing.KDFParams{Time: 1, MemoryKB: 8 * 1024, Threads: 1}

func newTestStore(t *testing.T, slots persistence.IKeySlotPersistence, prompt *scriptedPrompt.ScriptedPrompt, cfg *Config) *SoftwareCredentialStore {
	t.Helper()
	sealer, err := sealing.NewSealer("test-passphrase", testKDF)
	require.NoError(t, err)
	store, err := NewSoftwareCredentialStore(cfg, slots, sealer, prompt, zap.NewNop())
	require.NoError(t, err)
	return store
}

func verify(t *testing.T, publicKeyDER, payload, signature []byte) error {
	t.Helper()
	pub, err := x509.ParsePKIXPublicKey(publicKeyDER)
	require.NoError(t, err)
	rsaPub, ok := pub.(*rsa.PublicKey)
	require.True(t, ok)
	digest := sha256.Sum256(payload)
	return rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, digest[:], signature)
}

func TestSoftwareCredentialStore_SignRequiresApproval(t *testing.T) {
	ctx := context.Background()
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, "fingerprint")
	prompt.Enqueue(types.ChallengeOutcomeDenied)
	store := newTestStore(t, memory.NewMemoryPersistence(nil), prompt, nil)

	pub, err := store.GenerateGatedKeyPair(ctx, &types.Challenge{ID: "gen"})
	require.NoError(t, err)
	assert.Empty(t, prompt.Presented(), "key generation must not prompt")

	denied, err := store.UseGatedKey(ctx, &types.Challenge{ID: "c1", Payload: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, types.ChallengeOutcomeDenied, denied.Outcome)
	assert.Empty(t, denied.Signature)

	approved, err := store.UseGatedKey(ctx, &types.Challenge{ID: "c2", Payload: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, types.ChallengeOutcomeApproved, approved.Outcome)
	require.NoError(t, verify(t, pub, []byte("hello"), approved.Signature))
	assert.Error(t, verify(t, pub, []byte("hellp"), approved.Signature))
	assert.Len(t, prompt.Presented(), 2)
}

func TestSoftwareCredentialStore_NoKeyDoesNotPrompt(t *testing.T) {
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, "face")
	store := newTestStore(t, memory.NewMemoryPersistence(nil), prompt, nil)

	_, err := store.UseGatedKey(context.Background(), &types.Challenge{ID: "c1", Payload: []byte("x")})
	assert.ErrorIs(t, err, secureCredential.ErrKeyNotFound)
	assert.Empty(t, prompt.Presented())
}

func TestSoftwareCredentialStore_RegenerateReplacesKey(t *testing.T) {
	ctx := context.Background()
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, "iris")
	store := newTestStore(t, memory.NewMemoryPersistence(nil), prompt, nil)

	first, err := store.GenerateGatedKeyPair(ctx, nil)
	require.NoError(t, err)
	res, err := store.UseGatedKey(ctx, &types.Challenge{Payload: []byte("payload")})
	require.NoError(t, err)

	second, err := store.GenerateGatedKeyPair(ctx, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Error(t, verify(t, second, []byte("payload"), res.Signature))
}

func TestSoftwareCredentialStore_RequireEnrollment(t *testing.T) {
	ctx := context.Background()
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, "undefined")
	slots := memory.NewMemoryPersistence(nil)
	store := newTestStore(t, slots, prompt, &Config{RequireEnrollment: true})

	_, err := store.GenerateGatedKeyPair(ctx, nil)
	assert.ErrorIs(t, err, secureCredential.ErrEnrollmentRequired)

	exists, err := store.HasKey(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	prompt.SetModalities(nil, errors.New("sensor offline"))
	_, err = store.GenerateGatedKeyPair(ctx, nil)
	assert.ErrorIs(t, err, secureCredential.ErrHardwareUnavailable)

	prompt.SetModalities([]string{"fingerprint"}, nil)
	_, err = store.GenerateGatedKeyPair(ctx, nil)
	assert.NoError(t, err)
}

func TestSoftwareCredentialStore_DeleteKey(t *testing.T) {
	ctx := context.Background()
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, "face")
	store := newTestStore(t, memory.NewMemoryPersistence(nil), prompt, nil)

	_, err := store.GenerateGatedKeyPair(ctx, nil)
	require.NoError(t, err)
	exists, err := store.HasKey(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.DeleteKey(ctx))
	require.NoError(t, store.DeleteKey(ctx))

	exists, err = store.HasKey(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSoftwareCredentialStore_PersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, "fingerprint")

	slots, err := badger.NewBadgerPersistence(dir, zap.NewNop())
	require.NoError(t, err)
	store := newTestStore(t, slots, prompt, nil)
	pub, err := store.GenerateGatedKeyPair(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, slots.Close())

	reopened, err := badger.NewBadgerPersistence(dir, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()
	store = newTestStore(t, reopened, prompt, nil)

	res, err := store.UseGatedKey(ctx, &types.Challenge{Payload: []byte("after restart")})
	require.NoError(t, err)
	require.Equal(t, types.ChallengeOutcomeApproved, res.Outcome)
	assert.NoError(t, verify(t, pub, []byte("after restart"), res.Signature))
}

func TestSoftwareCredentialStore_SealedAtRest(t *testing.T) {
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved)
	slots := memory.NewMemoryPersistence(nil)
	store := newTestStore(t, slots, prompt, nil)

	_, err := store.GenerateGatedKeyPair(context.Background(), nil)
	require.NoError(t, err)

	slot, err := slots.LoadKeySlot()
	require.NoError(t, err)
	require.NotNil(t, slot)
	_, err = x509.ParsePKCS1PrivateKey(slot.SealedPrivateKey)
	assert.Error(t, err)
	assert.Equal(t, types.SignatureAlgorithm, slot.Algorithm)
}

func TestNewSoftwareCredentialStore_Validation(t *testing.T) {
	sealer, err := sealing.NewSealer("pw", testKDF)
	require.NoError(t, err)
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved)

	_, err = NewSoftwareCredentialStore(nil, nil, sealer, prompt, nil)
	assert.Error(t, err)
	_, err = NewSoftwareCredentialStore(&Config{KeyBits: 1024}, memory.NewMemoryPersistence(nil), sealer, prompt, nil)
	assert.Error(t, err)
}

func TestSoftwareCredentialStore_AbortedCommitKeepsPreviousKey(t *testing.T) {
	ctx := context.Background()
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, "fingerprint")
	store := newTestStore(t, memory.NewMemoryPersistence(nil), prompt, nil)

	first, err := store.GenerateGatedKeyPair(ctx, nil)
	require.NoError(t, err)

	aborted := secureCredential.WithCommitGuard(ctx, func() error { return secureCredential.ErrCommitAborted })
	_, err = store.GenerateGatedKeyPair(aborted, nil)
	assert.ErrorIs(t, err, secureCredential.ErrCommitAborted)
	assert.ErrorIs(t, store.DeleteKey(aborted), secureCredential.ErrCommitAborted)

	res, err := store.UseGatedKey(ctx, &types.Challenge{Payload: []byte("hello")})
	require.NoError(t, err)
	assert.NoError(t, verify(t, first, []byte("hello"), res.Signature))
}

func TestSoftwareCredentialStore_PublicKey(t *testing.T) {
	ctx := context.Background()
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, "face")
	store := newTestStore(t, memory.NewMemoryPersistence(nil), prompt, nil)

	_, _, err := store.PublicKey(ctx)
	assert.ErrorIs(t, err, secureCredential.ErrKeyNotFound)

	pub, err := store.GenerateGatedKeyPair(ctx, nil)
	require.NoError(t, err)

	keyID, got, err := store.PublicKey(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, keyID)
	assert.Equal(t, pub, got)
	assert.Empty(t, prompt.Presented())
}
