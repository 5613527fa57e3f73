package payment

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
)

const (
	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceRandLen  = 10
	referenceAttempts = 5
)

// existsFunc checks whether a candidate reference is already taken
type existsFunc func(ctx context.Context, db ports.DBTX, reference string) (bool, error)

// newReference builds one candidate reference, e.g. "PAY-X7K2M9QD4T-1742034600"
func newReference(prefix string, now time.Time) (string, error) {
	buf := make([]byte, referenceRandLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%d", prefix, buf, now.Unix()), nil
}

// GenerateReference produces a collision-free reference by retrying against
// the store. The timestamp suffix makes residual collisions effectively
// impossible within the attempt budget.
func GenerateReference(ctx context.Context, prefix string, now time.Time, exists existsFunc) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		ref, err := newReference(prefix, now)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, nil, ref)
		if err != nil {
			return "", fmt.Errorf("check reference: %w", err)
		}
		if !taken {
			return ref, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique %s reference after %d attempts", prefix, referenceAttempts)
}
