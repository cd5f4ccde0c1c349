package server

import (
	"encoding/json"
	"net/http"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricErrors"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/verification"
)

const maxRequestBytes = 1 << 20

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind biometricErrors.Kind) int {
	switch kind {
	case biometricErrors.KindUnsupportedPlatform:
		return http.StatusNotImplemented
	case biometricErrors.KindInvalidArgument:
		return http.StatusBadRequest
	case biometricErrors.KindKeyGenerationFailed:
		return http.StatusInternalServerError
	case biometricErrors.KindBiometricEnrollmentRequired:
		return http.StatusPreconditionFailed
	case biometricErrors.KindNoKeyAvailable:
		return http.StatusNotFound
	case biometricErrors.KindBiometricAuthFailed:
		return http.StatusUnauthorized
	case biometricErrors.KindSensorError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateKeys(w, r)
	case http.MethodDelete:
		s.handleDeleteKeys(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCreateKeys handles POST /v1/keys
func (s *Server) handleCreateKeys(w http.ResponseWriter, r *http.Request) {
	var req types.CreateKeysRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.signer.CreateKeys(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleDeleteKeys handles DELETE /v1/keys
func (s *Server) handleDeleteKeys(w http.ResponseWriter, r *http.Request) {
	if err := s.signer.DeleteKeys(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePublicKeyJWK handles GET /v1/keys/jwk
func (s *Server) handlePublicKeyJWK(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	current, err := s.signer.PublicKey(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	raw, err := verification.PublicKeyJWKJSON(current.PublicKey)
	if err != nil {
		s.writeError(w, r, biometricErrors.Wrap(biometricErrors.KindSensorError, err, "credential store returned an unusable public key"))
		return
	}
	w.Header().Set("Content-Type", "application/jwk+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// handleSign handles POST /v1/sign
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req types.SignRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.signer.Sign(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleAuthAvailable handles GET /v1/auth/available
func (s *Server) handleAuthAvailable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	available, err := s.signer.AuthAvailable(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &types.AuthAvailableResponse{Available: available})
}

// handleBiometricTypes handles GET /v1/biometrics/types
func (s *Server) handleBiometricTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	bioTypes, err := s.signer.GetAvailableBiometricTypes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &types.BiometricTypesResponse{Types: bioTypes})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck != nil {
		if err := s.healthCheck(); err != nil {
			s.logger.Sugar().Warnw("Health check failed", "error", err)
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, biometricErrors.Wrap(biometricErrors.KindInvalidArgument, err, "failed to parse request"))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	// Untyped failures come from collaborators and are reported as sensor errors
	kind := biometricErrors.KindOf(err)
	if kind == "" {
		kind = biometricErrors.KindSensorError
	}
	status := StatusForKind(kind)

	if status >= http.StatusInternalServerError {
		s.logger.Sugar().Errorw("Request failed", "path", r.URL.Path, "kind", kind, "error", err)
	} else {
		s.logger.Sugar().Debugw("Request rejected", "path", r.URL.Path, "kind", kind, "error", err)
	}

	s.writeJSON(w, status, &types.ErrorResponse{
		Kind:   string(kind),
		Detail: biometricErrors.DetailOf(err),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Sugar().Warnw("Failed to encode response", "error", err)
	}
}
