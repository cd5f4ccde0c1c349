package biometricSigner

import (
	"context"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
)

// Pending is the future returned by the async operation variants. Completion
// is driven by the user answering the prompt, not by computation.
type Pending[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func startPending[T any](fn func() (T, error)) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.value, p.err = fn()
	}()
	return p
}

// Done is closed once the operation has a result.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the result is ready or ctx is done. Giving up on Wait does
// not cancel the operation.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, abandoned(ctx.Err())
	}
}

// CreateKeysAsync starts CreateKeys and returns immediately.
func (s *BiometricSigner) CreateKeysAsync(ctx context.Context, req *types.CreateKeysRequest) *Pending[*types.CreateKeysResponse] {
	return startPending(func() (*types.CreateKeysResponse, error) {
		return s.CreateKeys(ctx, req)
	})
}

// SignAsync starts Sign and returns immediately.
func (s *BiometricSigner) SignAsync(ctx context.Context, req *types.SignRequest) *Pending[*types.SignResponse] {
	return startPending(func() (*types.SignResponse, error) {
		return s.Sign(ctx, req)
	})
}

// AuthAvailableAsync starts AuthAvailable and returns immediately.
func (s *BiometricSigner) AuthAvailableAsync(ctx context.Context) *Pending[bool] {
	return startPending(func() (bool, error) {
		return s.AuthAvailable(ctx)
	})
}

// GetAvailableBiometricTypesAsync starts GetAvailableBiometricTypes and returns immediately.
func (s *BiometricSigner) GetAvailableBiometricTypesAsync(ctx context.Context) *Pending[[]types.BiometricType] {
	return startPending(func() ([]types.BiometricType, error) {
		return s.GetAvailableBiometricTypes(ctx)
	})
}
