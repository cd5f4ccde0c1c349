package biosignerClient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricErrors"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"go.uber.org/zap"
)

// BiosignerClient talks to a biosigner server. Failures reported by the server
// come back as *biometricErrors.Error with the server's kind and detail.
//
// There is no request timeout: create and sign wait on a human. Bound the wait
// with ctx instead.
type BiosignerClient struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *zap.Logger
}

func NewBiosignerClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *BiosignerClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BiosignerClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		retryConfig: DefaultRetryConfig,
		logger:      logger,
	}
}

// SetRetryConfig replaces the retry settings used for capability queries.
func (c *BiosignerClient) SetRetryConfig(cfg RetryConfig) {
	c.retryConfig = cfg
}

func (c *BiosignerClient) CreateKeys(ctx context.Context, req *types.CreateKeysRequest) (*types.CreateKeysResponse, error) {
	var resp types.CreateKeysResponse
	if err := c.do(ctx, http.MethodPost, "/v1/keys", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *BiosignerClient) DeleteKeys(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/keys", nil, nil)
}

func (c *BiosignerClient) Sign(ctx context.Context, req *types.SignRequest) (*types.SignResponse, error) {
	var resp types.SignResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sign", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *BiosignerClient) AuthAvailable(ctx context.Context) (bool, error) {
	var resp types.AuthAvailableResponse
	if err := c.doWithRetry(ctx, http.MethodGet, "/v1/auth/available", &resp); err != nil {
		return false, err
	}
	return resp.Available, nil
}

func (c *BiosignerClient) GetAvailableBiometricTypes(ctx context.Context) ([]types.BiometricType, error) {
	var resp types.BiometricTypesResponse
	if err := c.doWithRetry(ctx, http.MethodGet, "/v1/biometrics/types", &resp); err != nil {
		return nil, err
	}
	return resp.Types, nil
}

// PublicKeyJWK returns the server's current gated public key as raw JWK JSON.
func (c *BiosignerClient) PublicKeyJWK(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doWithRetry(ctx, http.MethodGet, "/v1/keys/jwk", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *BiosignerClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logger.Sugar().Debugw("Sending request", "method", method, "path", path)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return biometricErrors.Wrap(biometricErrors.KindBiometricAuthFailed, ctxErr, biometricErrors.DetailCancelled)
		}
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var errResp types.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Kind != "" {
		return biometricErrors.New(biometricErrors.Kind(errResp.Kind), errResp.Detail)
	}
	return &statusError{status: status, body: strings.TrimSpace(string(body))}
}
