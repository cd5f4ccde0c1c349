package biosignerClient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricErrors"
)

// RetryConfig configures retries of capability queries. Create, sign and delete
// are never retried since each attempt may raise a new biometric prompt.
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      2 * time.Second,
	BackoffMultiple: 2.0,
}

// statusError is returned for non-JSON failures, e.g. 429 from the rate limiter.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return "server returned status " + http.StatusText(e.status) + ": " + e.body
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status == http.StatusServiceUnavailable
	}
	if biometricErrors.KindOf(err) != "" {
		return errors.Is(err, biometricErrors.ErrSensorError)
	}
	// transport failure
	return true
}

func (c *BiosignerClient) doWithRetry(ctx context.Context, method, path string, out interface{}) error {
	attempts := c.retryConfig.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := c.retryConfig.InitialBackoff

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = c.do(ctx, method, path, nil, out)
		if !retryable(err) || biometricErrors.IsCancelled(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		c.logger.Sugar().Debugw("Retrying request", "path", path, "attempt", attempt+1, "error", err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * c.retryConfig.BackoffMultiple)
		if backoff > c.retryConfig.MaxBackoff {
			backoff = c.retryConfig.MaxBackoff
		}
	}
	return err
}
