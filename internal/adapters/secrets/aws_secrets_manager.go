package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
)

// AWSSecretsManagerConfig contains configuration for the AWS adapter
type AWSSecretsManagerConfig struct {
	// AWS region, e.g. "af-south-1"
	Region string

	// Optional profile name for local development
	Profile string

	// Optional custom endpoint for LocalStack testing
	Endpoint string

	// Cache TTL for retrieved secrets
	CacheTTL time.Duration
}

// DefaultAWSSecretsManagerConfig returns default configuration
func DefaultAWSSecretsManagerConfig(region string) *AWSSecretsManagerConfig {
	return &AWSSecretsManagerConfig{
		Region:   region,
		CacheTTL: 5 * time.Minute,
	}
}

// awsSecretsManager implements ports.SecretManager for AWS Secrets Manager.
// The company token is read here so it never has to live in the environment.
type awsSecretsManager struct {
	client *secretsmanager.Client
	config *AWSSecretsManagerConfig
	logger ports.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewAWSSecretsManager creates a new AWS Secrets Manager adapter
func NewAWSSecretsManager(ctx context.Context, cfg *AWSSecretsManagerConfig, logger ports.Logger) (ports.SecretManager, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	clientOptions := []func(*secretsmanager.Options){}
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("AWS Secrets Manager adapter initialized",
		ports.String("region", cfg.Region))

	return &awsSecretsManager{
		client: secretsmanager.NewFromConfig(awsCfg, clientOptions...),
		config: cfg,
		logger: logger,
		cache:  make(map[string]cacheEntry),
	}, nil
}

// GetSecret retrieves a secret value by name or full ARN
func (a *awsSecretsManager) GetSecret(ctx context.Context, path string) (string, error) {
	a.mu.RLock()
	entry, ok := a.cache[path]
	a.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %q: %w", path, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value", path)
	}

	a.mu.Lock()
	a.cache[path] = cacheEntry{
		value:     *out.SecretString,
		expiresAt: time.Now().Add(a.config.CacheTTL),
	}
	a.mu.Unlock()

	return *out.SecretString, nil
}
