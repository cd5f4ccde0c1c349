package biometricSigner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricPrompt/scriptedPrompt"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/sealing"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential/softwareCredentialStore"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingStore records every collaborator call and delegates to inner.
// Errors set on it are returned instead of delegating.
type countingStore struct {
	inner secureCredential.ISecureCredentialStore

	mu            sync.Mutex
	calls         map[string]int
	generateErr   error
	useErr        error
	useResult     *types.ChallengeResult
	modalitiesErr error

	generateHold chan struct{}
	generating   atomic.Int32
}

func newCountingStore(inner secureCredential.ISecureCredentialStore) *countingStore {
	return &countingStore{inner: inner, calls: map[string]int{}}
}

func (c *countingStore) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
}

func (c *countingStore) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *countingStore) GenerateGatedKeyPair(ctx context.Context, challenge *types.Challenge) ([]byte, error) {
	c.record("generate")
	if c.generateErr != nil {
		return nil, c.generateErr
	}
	c.mu.Lock()
	hold := c.generateHold
	c.mu.Unlock()
	if hold != nil {
		c.generating.Add(1)
		defer c.generating.Add(-1)
		<-hold
	}
	return c.inner.GenerateGatedKeyPair(ctx, challenge)
}

// holdGenerate blocks key generation until release is closed.
func (c *countingStore) holdGenerate(release chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generateHold = release
}

func (c *countingStore) UseGatedKey(ctx context.Context, challenge *types.Challenge) (*types.ChallengeResult, error) {
	c.record("use")
	if c.useErr != nil {
		return nil, c.useErr
	}
	if c.useResult != nil {
		return c.useResult, nil
	}
	return c.inner.UseGatedKey(ctx, challenge)
}

func (c *countingStore) QueryEnrolledModalities(ctx context.Context) ([]string, error) {
	c.record("query")
	if c.modalitiesErr != nil {
		return nil, c.modalitiesErr
	}
	return c.inner.QueryEnrolledModalities(ctx)
}

func (c *countingStore) PublicKey(ctx context.Context) (string, []byte, error) {
	c.record("public")
	return c.inner.PublicKey(ctx)
}

func (c *countingStore) HasKey(ctx context.Context) (bool, error) {
	c.record("has")
	return c.inner.HasKey(ctx)
}

func (c *countingStore) DeleteKey(ctx context.Context) error {
	c.record("delete")
	return c.inner.DeleteKey(ctx)
}

type testHarness struct {
	prompt *scriptedPrompt.ScriptedPrompt
	store  *countingStore
}

func newHarness(t *testing.T, modalities ...string) *testHarness {
	t.Helper()
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, modalities...)
	sealer, err := sealing.NewSealer("test-passphrase", sealing.KDFParams{Time: 1, MemoryKB: 8 * 1024, Threads: 1})
	require.NoError(t, err)
	inner, err := softwareCredentialStore.NewSoftwareCredentialStore(
		nil, memory.NewMemoryPersistence(nil), sealer, prompt, zap.NewNop())
	require.NoError(t, err)
	return &testHarness{prompt: prompt, store: newCountingStore(inner)}
}
