package cache

import (
	"context"
	"fmt"
	"time"
)

const revokedTokenPrefix = "session:revoked:"

// revocationTTL keeps a denylist entry until the token would have expired
// anyway. Already-expired tokens need no entry.
func revocationTTL(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return 0
	}
	// Round up so the entry never expires before the token does.
	return ttl.Truncate(time.Second) + time.Second
}

// RevokeToken denylists a token id until expiresAt.
func (c *Cache) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := revocationTTL(expiresAt, time.Now())
	if ttl == 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedTokenPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether a token id was revoked.
func (c *Cache) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}
