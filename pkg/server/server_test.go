package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricErrors"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricPrompt/scriptedPrompt"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	prompt *scriptedPrompt.ScriptedPrompt
	server *Server
}

func newTestServer(t *testing.T, platform string, cfg *Config, modalities ...string) *testServer {
	t.Helper()
	ts := testutil.NewTestSigner(t, platform, modalities...)
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Gatherer = ts.Registry
	return &testServer{prompt: ts.Prompt, server: NewServer(cfg, ts.Signer, zap.NewNop())}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	ts.server.GetHandler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestServer_CreateKeysAndSign(t *testing.T) {
	ts := newTestServer(t, "linux", nil, "fingerprint")

	rec := ts.do(t, http.MethodPost, "/v1/keys", &types.CreateKeysRequest{Reason: "Confirm identity"})
	require.Equal(t, http.StatusOK, rec.Code)
	var created types.CreateKeysResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.NotEmpty(t, created.PublicKey)

	payload := base64.StdEncoding.EncodeToString([]byte("hello"))
	rec = ts.do(t, http.MethodPost, "/v1/sign", &types.SignRequest{Payload: payload, Reason: "Confirm identity"})
	require.Equal(t, http.StatusOK, rec.Code)
	var signed types.SignResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&signed))

	assert.NoError(t, verification.VerifySignature(created.PublicKey, []byte("hello"), signed.Signature))
}

func TestServer_ErrorKindsMapToStatus(t *testing.T) {
	ts := newTestServer(t, "linux", nil, "fingerprint")
	payload := base64.StdEncoding.EncodeToString([]byte("hello"))

	rec := ts.do(t, http.MethodPost, "/v1/sign", &types.SignRequest{Payload: payload, Reason: "r"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(biometricErrors.KindNoKeyAvailable), decodeError(t, rec).Kind)

	rec = ts.do(t, http.MethodPost, "/v1/keys", &types.CreateKeysRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(biometricErrors.KindInvalidArgument), decodeError(t, rec).Kind)

	rec = ts.do(t, http.MethodPost, "/v1/keys", &types.CreateKeysRequest{Reason: "r"})
	require.Equal(t, http.StatusOK, rec.Code)

	ts.prompt.Enqueue(types.ChallengeOutcomeCancelled)
	rec = ts.do(t, http.MethodPost, "/v1/sign", &types.SignRequest{Payload: payload, Reason: "r"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errResp := decodeError(t, rec)
	assert.Equal(t, string(biometricErrors.KindBiometricAuthFailed), errResp.Kind)
	assert.Equal(t, biometricErrors.DetailCancelled, errResp.Detail)
}

func TestServer_UnsupportedPlatform(t *testing.T) {
	ts := newTestServer(t, "plan9", nil, "face")

	rec := ts.do(t, http.MethodPost, "/v1/keys", &types.CreateKeysRequest{Reason: "r"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	errResp := decodeError(t, rec)
	assert.Equal(t, string(biometricErrors.KindUnsupportedPlatform), errResp.Kind)
	assert.Equal(t, "plan9", errResp.Detail)
}

func TestServer_MalformedBody(t *testing.T) {
	ts := newTestServer(t, "linux", nil, "face")

	req := httptest.NewRequest(http.MethodPost, "/v1/sign", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	ts.server.GetHandler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.prompt.Presented())
}

func TestServer_CapabilityEndpoints(t *testing.T) {
	ts := newTestServer(t, "linux", nil, "fingerprint", "undefined")

	rec := ts.do(t, http.MethodGet, "/v1/auth/available", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var avail types.AuthAvailableResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&avail))
	assert.True(t, avail.Available)

	rec = ts.do(t, http.MethodGet, "/v1/biometrics/types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bt types.BiometricTypesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bt))
	assert.Equal(t, []types.BiometricType{types.BiometricTypeFingerprint}, bt.Types)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, "linux", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodGet, "/v1/keys", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodGet, "/v1/sign", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodPost, "/v1/auth/available", nil).Code)
}

func TestServer_DeleteKeys(t *testing.T) {
	ts := newTestServer(t, "linux", nil, "face")

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/v1/keys", &types.CreateKeysRequest{Reason: "r"}).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/v1/keys", nil).Code)

	payload := base64.StdEncoding.EncodeToString([]byte("x"))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/v1/sign", &types.SignRequest{Payload: payload, Reason: "r"}).Code)
}

func TestServer_PublicKeyJWK(t *testing.T) {
	ts := newTestServer(t, "linux", nil, "face")

	rec := ts.do(t, http.MethodGet, "/v1/keys/jwk", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(biometricErrors.KindNoKeyAvailable), decodeError(t, rec).Kind)

	rec = ts.do(t, http.MethodPost, "/v1/keys", &types.CreateKeysRequest{Reason: "r"})
	var created types.CreateKeysResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = ts.do(t, http.MethodGet, "/v1/keys/jwk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/jwk+json", rec.Header().Get("Content-Type"))
	expected, err := verification.PublicKeyJWKJSON(created.PublicKey)
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), rec.Body.String())
	assert.Empty(t, ts.prompt.Presented())

	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodPost, "/v1/keys/jwk", nil).Code)

	unsupported := newTestServer(t, "plan9", nil, "face")
	assert.Equal(t, http.StatusNotImplemented, unsupported.do(t, http.MethodGet, "/v1/keys/jwk", nil).Code)
}

func TestServer_UntypedErrorIsSensorError(t *testing.T) {
	ts := newTestServer(t, "linux", nil, "face")

	rec := httptest.NewRecorder()
	ts.server.writeError(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/available", nil), errors.New("sensor unplugged"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(biometricErrors.KindSensorError), decodeError(t, rec).Kind)
}

func TestServer_RateLimit(t *testing.T) {
	ts := newTestServer(t, "linux", &Config{RateLimitRPS: 0.001, RateLimitBurst: 2}, "face")

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/auth/available", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/auth/available", nil).Code)
	rec := ts.do(t, http.MethodGet, "/v1/auth/available", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// health and metrics are not limited
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestServer_HealthzAndMetrics(t *testing.T) {
	healthy := true
	ts := newTestServer(t, "linux", &Config{HealthCheck: func() error {
		if healthy {
			return nil
		}
		return errors.New("badger closed")
	}}, "face")

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodGet, "/healthz", nil).Code)

	ts.do(t, http.MethodGet, "/v1/auth/available", nil)
	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "biosigner_operations_total")
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusPreconditionFailed, StatusForKind(biometricErrors.KindBiometricEnrollmentRequired))
	assert.Equal(t, http.StatusServiceUnavailable, StatusForKind(biometricErrors.KindSensorError))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(biometricErrors.KindKeyGenerationFailed))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(""))
}
