package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
)

// envSecretManager resolves secrets from environment variables. Used for
// local development where AWS is unavailable. The secret path maps to an
// environment variable name: slashes and dashes become underscores,
// uppercased.
type envSecretManager struct{}

// NewEnvSecretManager creates an environment-backed secret manager
func NewEnvSecretManager() ports.SecretManager {
	return envSecretManager{}
}

// GetSecret resolves a secret path against the environment
func (envSecretManager) GetSecret(_ context.Context, path string) (string, error) {
	key := strings.ToUpper(strings.NewReplacer("/", "_", "-", "_").Replace(path))
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret %q not found in environment (looked up %s)", path, key)
}
