package services

import (
	"context"

	"github.com/thereayou/loci-chat/pkg/auth"
)

// TokenVerifier checks bearer tokens issued by the account service.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// TokenRevocations reports tokens revoked before expiry.
type TokenRevocations interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}
