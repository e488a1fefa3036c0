package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const revokedPrefix = "blacklist:"

// Revocations reads the token blacklist the account service writes on logout.
type Revocations struct {
	client *redis.Client
}

func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{client: client}
}

func (r *Revocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}
