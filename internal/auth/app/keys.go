package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/carelinkhq/carelink/pkg/cryptox"
	"github.com/carelinkhq/carelink/pkg/jwtx"
)

// initAuthKeys builds the KeyManager from the configured signing key.
// When no key file is configured an ephemeral key is generated, which
// is fine for development but invalidates every outstanding token on
// restart.
func initAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	var privatePEM []byte

	if cfg.PrivateKeyFile != "" {
		pemData, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signing key %s: %w", cfg.PrivateKeyFile, err)
		}
		privatePEM = pemData
		logger.Info("loaded signing key", "file", cfg.PrivateKeyFile)
	} else {
		pemData, err := cryptox.GenerateRSAKey(2048)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral signing key: %w", err)
		}
		privatePEM = pemData
		logger.Warn("no signing key configured, generated an ephemeral key; all existing tokens are now invalid")
	}

	var extraPEMs [][]byte
	for _, file := range cfg.PublicKeyFiles {
		pemData, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read public key %s: %w", file, err)
		}
		extraPEMs = append(extraPEMs, pemData)
	}

	return jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		PrivateKeyPEM:      privatePEM,
		ExtraPublicKeyPEMs: extraPEMs,
		Issuer:             cfg.Issuer,
		Audience:           cfg.Audience,
	})
}
