package testutil

import (
	"testing"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricPrompt/scriptedPrompt"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricSigner"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/config"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/sealing"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential/softwareCredentialStore"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestKDFParams keeps sealing fast in tests
var TestKDFParams = sealing.KDFParams{Time: 1, MemoryKB: 8 * 1024, Threads: 1}

// TestSupportedPlatforms is the supported set used by NewTestSigner
var TestSupportedPlatforms = []string{"linux", "android", "ios"}

// TestSigner bundles a signer backed by an in-memory software store with the
// scripted prompt driving it.
type TestSigner struct {
	Signer   *biometricSigner.BiometricSigner
	Store    *softwareCredentialStore.SoftwareCredentialStore
	Prompt   *scriptedPrompt.ScriptedPrompt
	Registry *prometheus.Registry
}

// NewTestSoftwareStore creates a software credential store over memory persistence.
func NewTestSoftwareStore(t *testing.T, prompt *scriptedPrompt.ScriptedPrompt) *softwareCredentialStore.SoftwareCredentialStore {
	t.Helper()
	sealer, err := sealing.NewSealer("test-passphrase", TestKDFParams)
	require.NoError(t, err)
	store, err := softwareCredentialStore.NewSoftwareCredentialStore(nil, memory.NewMemoryPersistence(nil), sealer, prompt, zap.NewNop())
	require.NoError(t, err)
	return store
}

// NewTestSigner creates a signer on platform whose prompt approves by default
// and reports modalities as enrolled.
func NewTestSigner(t *testing.T, platform string, modalities ...string) *TestSigner {
	t.Helper()
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, modalities...)
	store := NewTestSoftwareStore(t, prompt)

	reg := prometheus.NewRegistry()
	m, err := metrics.NewMetrics(reg)
	require.NoError(t, err)

	signer := biometricSigner.NewBiometricSigner(&biometricSigner.Config{
		Platform: config.NewPlatformGate(platform, TestSupportedPlatforms),
	}, store, m, zap.NewNop())

	return &TestSigner{
		Signer:   signer,
		Store:    store,
		Prompt:   prompt,
		Registry: reg,
	}
}
