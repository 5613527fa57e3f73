package ports

import "context"

// SecretManager loads merchant credentials (the gateway company token) from
// a secret backend.
type SecretManager interface {
	GetSecret(ctx context.Context, path string) (string, error)
}
