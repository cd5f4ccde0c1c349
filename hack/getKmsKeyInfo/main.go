package main

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/Layr-Labs/eigenx-biosigner-go/internal/aws"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricPrompt/scriptedPrompt"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/config"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/secureCredential/awsKmsCredentialStore"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/verification"
)

// Prints the KMS key currently behind the biosigner alias.
//
//	KMS_ALIAS=alias/biosigner-gated-key AWS_REGION=us-east-1 go run ./hack/getKmsKeyInfo
func main() {
	ctx := context.Background()
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	awsCfg, err := aws.LoadAWSConfig(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		panic(err)
	}
	aws.LogCallerIdentity(ctx, awsCfg, l)

	alias := os.Getenv("KMS_ALIAS")
	if alias == "" {
		alias = config.DefaultKMSAlias
	}

	// the prompt is never consulted when only reading the public key
	prompt := scriptedPrompt.NewScriptedPrompt(types.ChallengeOutcomeDenied)
	store, err := awsKmsCredentialStore.NewAWSKMSCredentialStore(awsCfg, &awsKmsCredentialStore.Config{
		Alias:  alias,
		Region: awsCfg.Region,
	}, prompt, l)
	if err != nil {
		l.Sugar().Fatalw("failed to create KMS credential store", "error", err)
	}

	keyID, pub, err := store.PublicKey(ctx)
	if err != nil {
		l.Sugar().Fatalw("failed to read gated key", "alias", alias, "error", err)
	}

	publicKey := base64.StdEncoding.EncodeToString(pub)
	jwkJSON, err := verification.PublicKeyJWKJSON(publicKey)
	if err != nil {
		l.Sugar().Fatalw("failed to convert public key to JWK", "error", err)
	}

	l.Sugar().Infow("Gated Key",
		"alias", alias,
		"keyId", keyID,
		"publicKey", publicKey,
		"jwk", string(jwkJSON),
	)
}
