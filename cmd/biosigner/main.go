package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/config"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "biosigner",
		Usage: "Biometric-gated key lifecycle and signing",
		Description: `Creates an RSA key pair whose private half is only usable after a biometric
check, and signs payloads with it. Every signature requires a fresh challenge.

Run "serve" to start the signer, then use the client commands against it.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvBiosignerVerbose},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			{
				Name:   "create-keys",
				Usage:  "Create (or replace) the gated key pair",
				Flags:  append(clientFlags(), reasonFlag(), dialogFlag()),
				Action: createKeysCommand,
			},
			{
				Name:  "sign",
				Usage: "Sign a payload with the gated key",
				Flags: append(clientFlags(), reasonFlag(), dialogFlag(),
					&cli.StringFlag{
						Name:  "data",
						Usage: "Payload to sign (as string)",
					},
					&cli.StringFlag{
						Name:  "payload",
						Usage: "Payload to sign (standard base64), takes precedence over --data",
					},
				),
				Action: signCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify a signature offline",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "public-key",
						Usage:    "Public key (base64 DER as returned by create-keys, or PEM)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "data",
						Usage: "Signed payload (as string)",
					},
					&cli.StringFlag{
						Name:  "payload",
						Usage: "Signed payload (standard base64), takes precedence over --data",
					},
					&cli.StringFlag{
						Name:     "signature",
						Usage:    "Signature (standard base64)",
						Required: true,
					},
				},
				Action: verifyCommand,
			},
			{
				Name:   "delete-keys",
				Usage:  "Delete the gated key pair",
				Flags:  clientFlags(),
				Action: deleteKeysCommand,
			},
			{
				Name:   "auth-available",
				Usage:  "Report whether any biometric is enrolled",
				Flags:  clientFlags(),
				Action: authAvailableCommand,
			},
			{
				Name:   "biometric-types",
				Usage:  "List enrolled biometric types",
				Flags:  clientFlags(),
				Action: biometricTypesCommand,
			},
			{
				Name:  "public-key-jwk",
				Usage: "Print the current gated public key as a JWK",
				Flags: append(clientFlags(),
					&cli.StringFlag{
						Name:  "public-key",
						Usage: "Public key to convert with --offline (base64 DER as returned by create-keys)",
					},
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Convert --public-key locally instead of asking the server",
					},
				),
				Action: publicKeyJWKCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func reasonFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "reason",
		Usage:    "Text shown in the biometric prompt",
		Required: true,
	}
}

func dialogFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "dialog",
		Usage: "YAML file with per-request dialog overrides",
	}
}

func clientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "Biosigner server URL",
			Value:   "http://localhost:8090",
			EnvVars: []string{config.EnvBiosignerServerURL},
		},
	}
}

func printf(c *cli.Context, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(c.App.Writer, format, args...)
}
