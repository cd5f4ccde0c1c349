package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	biosignerAws "github.com/Layr-Labs/eigenx-biosigner-go/internal/aws"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricPrompt"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricPrompt/scriptedPrompt"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricPrompt/terminalPrompt"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricSigner"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/config"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence/redis"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/sealing"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential/awsKmsCredentialStore"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential/softwareCredentialStore"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/server"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the biosigner HTTP server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8090,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvBiosignerPort},
			},
			&cli.StringFlag{
				Name:    "platform",
				Usage:   "Platform identifier (defaults to the running OS)",
				EnvVars: []string{config.EnvBiosignerPlatform},
			},
			&cli.StringSliceFlag{
				Name:    "supported-platforms",
				Usage:   "Platforms allowed to run gated operations",
				EnvVars: []string{config.EnvBiosignerSupportedPlatforms},
			},
			&cli.StringFlag{
				Name:    "store-type",
				Value:   string(config.StoreTypeSoftware),
				Usage:   fmt.Sprintf("Secure credential store: %s", config.GetSupportedStoreTypesString()),
				EnvVars: []string{config.EnvBiosignerStoreType},
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Value:   string(config.PersistenceTypeBadger),
				Usage:   "Key slot persistence for the software store: memory, badger, redis",
				EnvVars: []string{config.EnvBiosignerPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Value:   "./biosigner-data",
				Usage:   "Badger data directory",
				EnvVars: []string{config.EnvBiosignerDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port)",
				EnvVars: []string{config.EnvBiosignerRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvBiosignerRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvBiosignerRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for Redis keys",
				EnvVars: []string{config.EnvBiosignerRedisKeyPrefix},
			},
			&cli.StringFlag{
				Name:    "sealing-passphrase",
				Usage:   "Passphrase sealing the private key at rest (software store)",
				EnvVars: []string{config.EnvBiosignerSealingPassphrase},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region for the aws-kms store",
				EnvVars: []string{config.EnvBiosignerAWSRegion},
			},
			&cli.StringFlag{
				Name:    "kms-alias",
				Value:   config.DefaultKMSAlias,
				Usage:   "KMS alias naming the gated key",
				EnvVars: []string{config.EnvBiosignerKMSAlias},
			},
			&cli.StringFlag{
				Name:    "prompt-type",
				Value:   string(config.PromptTypeTerminal),
				Usage:   "Biometric prompt: terminal, approve-all",
				EnvVars: []string{config.EnvBiosignerPromptType},
			},
			&cli.StringSliceFlag{
				Name:    "enrolled-modalities",
				Value:   cli.NewStringSlice(string(types.BiometricTypeFingerprint)),
				Usage:   "Modalities the prompt reports as enrolled",
				EnvVars: []string{config.EnvBiosignerEnrolledModalities},
			},
			&cli.BoolFlag{
				Name:    "require-enrollment",
				Value:   true,
				Usage:   "Refuse key creation while no modality is enrolled",
				EnvVars: []string{config.EnvBiosignerRequireEnrollment},
			},
			&cli.IntFlag{
				Name:    "max-attempts",
				Value:   terminalPrompt.DefaultMaxAttempts,
				Usage:   "Attempts before the terminal prompt locks out",
				EnvVars: []string{config.EnvBiosignerMaxAttempts},
			},
			&cli.StringFlag{
				Name:    "dialog-config",
				Usage:   "YAML file with server-wide dialog defaults",
				EnvVars: []string{config.EnvBiosignerDialogConfig},
			},
			&cli.Float64Flag{
				Name:    "rate-limit-rps",
				Usage:   "Requests per second per client (0 disables)",
				EnvVars: []string{config.EnvBiosignerRateLimitRPS},
			},
			&cli.IntFlag{
				Name:    "rate-limit-burst",
				Value:   5,
				Usage:   "Rate limit burst per client",
				EnvVars: []string{config.EnvBiosignerRateLimitBurst},
			},
		},
		Action: runServe,
	}
}

func parseServerConfig(c *cli.Context) *config.BiosignerServerConfig {
	return &config.BiosignerServerConfig{
		Port:               c.Int("port"),
		Platform:           c.String("platform"),
		SupportedPlatforms: splitSlice(c.StringSlice("supported-platforms")),
		StoreType:          config.StoreType(c.String("store-type")),
		PersistenceType:    config.PersistenceType(c.String("persistence-type")),
		DataPath:           c.String("data-path"),
		RedisAddress:       c.String("redis-address"),
		RedisPassword:      c.String("redis-password"),
		RedisDB:            c.Int("redis-db"),
		RedisKeyPrefix:     c.String("redis-key-prefix"),
		SealingPassphrase:  c.String("sealing-passphrase"),
		AWSRegion:          c.String("aws-region"),
		KMSAlias:           c.String("kms-alias"),
		PromptType:         config.PromptType(c.String("prompt-type")),
		EnrolledModalities: splitSlice(c.StringSlice("enrolled-modalities")),
		RequireEnrollment:  c.Bool("require-enrollment"),
		MaxAttempts:        c.Int("max-attempts"),
		DialogConfigPath:   c.String("dialog-config"),
		RateLimitRPS:       c.Float64("rate-limit-rps"),
		RateLimitBurst:     c.Int("rate-limit-burst"),
		Verbose:            c.Bool("verbose"),
	}
}

// splitSlice accepts both repeated flags and comma separated env values.
func splitSlice(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, config.SplitList(v)...)
	}
	return out
}

func runServe(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseServerConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var dialogDefaults types.DialogMessages
	if cfg.DialogConfigPath != "" {
		dialogDefaults, err = config.LoadDialogMessagesFile(cfg.DialogConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load dialog config: %w", err)
		}
	}

	prompt, err := buildPrompt(cfg, l)
	if err != nil {
		return err
	}

	store, healthCheck, closeStore, err := buildStore(ctx, cfg, prompt, l)
	if err != nil {
		return err
	}
	defer closeStore()

	m, err := metrics.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	gate := cfg.PlatformGate()
	if !gate.IsSupported() {
		l.Sugar().Warnw("Platform is not supported; gated operations will be rejected",
			"platform", gate.Platform, "supported", gate.Supported)
	}

	signer := biometricSigner.NewBiometricSigner(&biometricSigner.Config{
		Platform:       gate,
		DialogDefaults: dialogDefaults,
	}, store, m, l)

	srv := server.NewServer(&server.Config{
		Port:           cfg.Port,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		HealthCheck:    healthCheck,
	}, signer, l)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	l.Sugar().Infow("Biosigner running",
		"port", cfg.Port,
		"platform", gate.Platform,
		"store", cfg.StoreType,
		"prompt", cfg.PromptType,
	)

	<-ctx.Done()
	l.Sugar().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func buildPrompt(cfg *config.BiosignerServerConfig, l *zap.Logger) (biometricPrompt.IBiometricPrompt, error) {
	switch cfg.PromptType {
	case config.PromptTypeApproveAll:
		l.Sugar().Warnw("Every biometric challenge will be approved automatically")
		return scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeApproved, cfg.EnrolledModalities...), nil
	case config.PromptTypeTerminal:
		p, err := terminalPrompt.NewStdioTerminalPrompt(cfg.EnrolledModalities, cfg.MaxAttempts, l)
		if err != nil {
			return nil, fmt.Errorf("failed to create terminal prompt: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported prompt type %q", cfg.PromptType)
	}
}

func buildStore(
	ctx context.Context,
	cfg *config.BiosignerServerConfig,
	prompt biometricPrompt.IBiometricPrompt,
	l *zap.Logger,
) (secureCredential.ISecureCredentialStore, func() error, func(), error) {
	switch cfg.StoreType {
	case config.StoreTypeAWSKMS:
		awsCfg, err := biosignerAws.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		biosignerAws.LogCallerIdentity(ctx, awsCfg, l)
		store, err := awsKmsCredentialStore.NewAWSKMSCredentialStore(awsCfg, &awsKmsCredentialStore.Config{
			Alias:             cfg.KMSAlias,
			Region:            awsCfg.Region,
			RequireEnrollment: cfg.RequireEnrollment,
		}, prompt, l)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create KMS credential store: %w", err)
		}
		return store, nil, func() {}, nil

	case config.StoreTypeSoftware:
		slots, err := buildPersistence(cfg, l)
		if err != nil {
			return nil, nil, nil, err
		}
		sealer, err := sealing.NewSealer(cfg.SealingPassphrase, sealing.DefaultKDFParams)
		if err != nil {
			_ = slots.Close()
			return nil, nil, nil, fmt.Errorf("failed to create sealer: %w", err)
		}
		store, err := softwareCredentialStore.NewSoftwareCredentialStore(&softwareCredentialStore.Config{
			RequireEnrollment: cfg.RequireEnrollment,
		}, slots, sealer, prompt, l)
		if err != nil {
			_ = slots.Close()
			return nil, nil, nil, fmt.Errorf("failed to create software credential store: %w", err)
		}
		closeFn := func() {
			if err := slots.Close(); err != nil {
				l.Sugar().Warnw("Failed to close key slot persistence", "error", err)
			}
		}
		return store, slots.HealthCheck, closeFn, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported store type %q", cfg.StoreType)
	}
}

func buildPersistence(cfg *config.BiosignerServerConfig, l *zap.Logger) (persistence.IKeySlotPersistence, error) {
	switch cfg.PersistenceType {
	case config.PersistenceTypeMemory:
		return memory.NewMemoryPersistence(l), nil
	case config.PersistenceTypeBadger:
		p, err := badger.NewBadgerPersistence(cfg.DataPath, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger persistence: %w", err)
		}
		return p, nil
	case config.PersistenceTypeRedis:
		p, err := redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis persistence: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported persistence type %q", cfg.PersistenceType)
	}
}
