package main

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/clients/biosignerClient"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/config"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/verification"
	"github.com/urfave/cli/v2"
)

func createClient(c *cli.Context) (*biosignerClient.BiosignerClient, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return biosignerClient.NewBiosignerClient(c.String("server-url"), nil, l), nil
}

func loadDialogOverrides(c *cli.Context) (types.DialogMessages, error) {
	path := c.String("dialog")
	if path == "" {
		return types.DialogMessages{}, nil
	}
	d, err := config.LoadDialogMessagesFile(path)
	if err != nil {
		return types.DialogMessages{}, fmt.Errorf("failed to load dialog overrides: %w", err)
	}
	return d, nil
}

// payloadFromFlags returns the base64 payload from --payload or --data.
func payloadFromFlags(c *cli.Context) (string, error) {
	if p := c.String("payload"); p != "" {
		return p, nil
	}
	if c.IsSet("data") {
		return base64.StdEncoding.EncodeToString([]byte(c.String("data"))), nil
	}
	return "", fmt.Errorf("either --payload or --data is required")
}

func createKeysCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	overrides, err := loadDialogOverrides(c)
	if err != nil {
		return err
	}

	resp, err := client.CreateKeys(c.Context, &types.CreateKeysRequest{
		Reason:          c.String("reason"),
		DialogOverrides: overrides,
	})
	if err != nil {
		return fmt.Errorf("create keys failed: %w", err)
	}
	printf(c, "%s\n", resp.PublicKey)
	return nil
}

func signCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	payload, err := payloadFromFlags(c)
	if err != nil {
		return err
	}
	overrides, err := loadDialogOverrides(c)
	if err != nil {
		return err
	}

	resp, err := client.Sign(c.Context, &types.SignRequest{
		Payload:         payload,
		Reason:          c.String("reason"),
		DialogOverrides: overrides,
	})
	if err != nil {
		return fmt.Errorf("sign failed: %w", err)
	}
	printf(c, "%s\n", resp.Signature)
	return nil
}

func verifyCommand(c *cli.Context) error {
	payloadB64, err := payloadFromFlags(c)
	if err != nil {
		return err
	}
	payload, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil {
		return fmt.Errorf("payload is not base64: %w", err)
	}
	if err := verification.VerifySignature(c.String("public-key"), payload, c.String("signature")); err != nil {
		return err
	}
	printf(c, "signature valid (%s)\n", types.SignatureAlgorithm)
	return nil
}

func deleteKeysCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	if err := client.DeleteKeys(c.Context); err != nil {
		return fmt.Errorf("delete keys failed: %w", err)
	}
	printf(c, "deleted\n")
	return nil
}

func authAvailableCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	available, err := client.AuthAvailable(c.Context)
	if err != nil {
		return fmt.Errorf("auth available failed: %w", err)
	}
	printf(c, "%t\n", available)
	return nil
}

func biometricTypesCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	bioTypes, err := client.GetAvailableBiometricTypes(c.Context)
	if err != nil {
		return fmt.Errorf("biometric types failed: %w", err)
	}
	names := make([]string, 0, len(bioTypes))
	for _, bt := range bioTypes {
		names = append(names, bt.String())
	}
	printf(c, "%s\n", strings.Join(names, ","))
	return nil
}

func publicKeyJWKCommand(c *cli.Context) error {
	if c.Bool("offline") {
		publicKey := c.String("public-key")
		if publicKey == "" {
			return fmt.Errorf("--public-key is required with --offline")
		}
		raw, err := verification.PublicKeyJWKJSON(publicKey)
		if err != nil {
			return err
		}
		printf(c, "%s\n", raw)
		return nil
	}

	client, err := createClient(c)
	if err != nil {
		return err
	}
	raw, err := client.PublicKeyJWK(c.Context)
	if err != nil {
		return fmt.Errorf("public key jwk failed: %w", err)
	}
	printf(c, "%s\n", raw)
	return nil
}
