package biometricSigner

import (
	"context"
	"sync"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricErrors"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// challengeGate admits one biometric challenge at a time, system wide. The
// sensor and prompt UI cannot service two prompts at once.
type challengeGate struct {
	sem     *semaphore.Weighted
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func newChallengeGate(m *metrics.Metrics, logger *zap.Logger) *challengeGate {
	return &challengeGate{
		sem:     semaphore.NewWeighted(1),
		metrics: m,
		logger:  logger,
	}
}

type gateResult[T any] struct {
	value T
	err   error
}

// commitLatch settles, exactly once, whether a detached key change may commit
// or its caller has already been told it was cancelled.
type commitLatch struct {
	mu        sync.Mutex
	committed bool
	abandoned bool
}

// commit is the store-side guard. It fails once the caller has been released.
func (l *commitLatch) commit() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.abandoned {
		return secureCredential.ErrCommitAborted
	}
	l.committed = true
	return nil
}

// abandon reports whether the caller may be released. It is false when the
// store already started committing.
func (l *commitLatch) abandon() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.committed {
		return false
	}
	l.abandoned = true
	return true
}

// runExclusive waits for the gate under the caller's ctx, then runs fn detached
// from that ctx. If the caller stops waiting after fn started, fn keeps running
// until its challenge resolves and only then releases the gate.
func runExclusive[T any](ctx context.Context, g *challengeGate, operation string, fn func(context.Context) (T, error)) (T, error) {
	return runGated(ctx, g, operation, nil, fn)
}

// runCommitted is runExclusive for operations that change the stored key. A
// caller that stops waiting before the store commits gets a cancellation and
// the change is discarded. Once the commit started, the caller waits for it.
func runCommitted[T any](ctx context.Context, g *challengeGate, operation string, fn func(context.Context) (T, error)) (T, error) {
	latch := &commitLatch{}
	return runGated(ctx, g, operation, latch, func(ctx context.Context) (T, error) {
		return fn(secureCredential.WithCommitGuard(ctx, latch.commit))
	})
}

func runGated[T any](ctx context.Context, g *challengeGate, operation string, latch *commitLatch, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	// Acquire may succeed on an already-done ctx
	if err := ctx.Err(); err != nil {
		return zero, abandoned(err)
	}

	g.metrics.GateWaiting(1)
	err := g.sem.Acquire(ctx, 1)
	g.metrics.GateWaiting(-1)
	if err != nil {
		g.logger.Sugar().Debugw("Caller gave up while queued for challenge gate", "operation", operation, "error", err)
		return zero, abandoned(err)
	}

	done := make(chan gateResult[T], 1)
	go func() {
		defer g.sem.Release(1)
		v, err := fn(context.WithoutCancel(ctx))
		done <- gateResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		if latch != nil && !latch.abandon() {
			g.logger.Sugar().Debugw("Caller stopped waiting during commit", "operation", operation)
			r := <-done
			return r.value, r.err
		}
		g.logger.Sugar().Infow("Caller stopped waiting; challenge will still resolve in the background", "operation", operation)
		return zero, abandoned(ctx.Err())
	}
}

func abandoned(err error) error {
	return biometricErrors.Wrap(biometricErrors.KindBiometricAuthFailed, err, biometricErrors.DetailCancelled)
}
