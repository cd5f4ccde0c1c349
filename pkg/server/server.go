package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricSigner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

/*
Server exposes the biometric signer over HTTP.

	POST   /v1/keys              CreateKeysRequest  -> CreateKeysResponse
	DELETE /v1/keys                                 -> 204
	GET    /v1/keys/jwk                             -> RFC 7517 JWK of the current public key
	POST   /v1/sign              SignRequest        -> SignResponse
	GET    /v1/auth/available                       -> AuthAvailableResponse
	GET    /v1/biometrics/types                     -> BiometricTypesResponse
	GET    /healthz
	GET    /metrics

Failures are returned as ErrorResponse {kind, detail} with a status derived
from the kind. Requests for create, sign and delete hold the connection open
until the biometric challenge resolves; closing the connection abandons the
wait but not the challenge.
*/

type Config struct {
	Port int

	// RateLimitRPS limits requests per remote host; zero disables limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Gatherer backs /metrics; nil serves the default registry
	Gatherer prometheus.Gatherer

	// HealthCheck is consulted by /healthz, e.g. the key slot persistence
	HealthCheck func() error
}

type Server struct {
	signer      *biometricSigner.BiometricSigner
	limiter     *clientLimiter
	healthCheck func() error
	httpServer  *http.Server
	logger      *zap.Logger
}

func NewServer(cfg *Config, signer *biometricSigner.BiometricSigner, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		signer:      signer,
		limiter:     newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		healthCheck: cfg.HealthCheck,
		logger:      logger,
	}

	mux := http.NewServeMux()

	// Key lifecycle
	mux.HandleFunc("/v1/keys", s.limited(s.handleKeys))
	mux.HandleFunc("/v1/keys/jwk", s.limited(s.handlePublicKeyJWK))

	// Signing
	mux.HandleFunc("/v1/sign", s.limited(s.handleSign))

	// Capability queries
	mux.HandleFunc("/v1/auth/available", s.limited(s.handleAuthAvailable))
	mux.HandleFunc("/v1/biometrics/types", s.limited(s.handleBiometricTypes))

	mux.HandleFunc("/healthz", s.handleHealthz)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start starts the HTTP server in the background
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests until ctx ends
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(remoteHost(r), time.Now()) {
			s.logger.Sugar().Debugw("Rate limited request", "remote", remoteHost(r), "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
