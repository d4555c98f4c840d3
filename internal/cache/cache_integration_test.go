//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tablemate/tablemate/internal/testutil"
)

func newTestCache(t *testing.T) (context.Context, *Cache) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	c, err := New(ctx, testutil.RequireEnv(t, "REDIS_URL"))
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return ctx, c
}

func TestIntegrationCache_MealTitle(t *testing.T) {
	ctx, c := newTestCache(t)
	id := testutil.UniqueID("meal")
	t.Cleanup(func() { _ = c.DeleteMealTitle(context.Background(), id) })

	if _, err := c.GetMealTitle(ctx, id); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	if err := c.SetMealTitleMissing(ctx, id); err != nil {
		t.Fatalf("SetMealTitleMissing: %v", err)
	}
	if missing, _ := c.IsMealTitleMissing(ctx, id); !missing {
		t.Error("expected negative entry")
	}

	if err := c.SetMealTitle(ctx, id, "Ramen"); err != nil {
		t.Fatalf("SetMealTitle: %v", err)
	}
	if missing, _ := c.IsMealTitleMissing(ctx, id); missing {
		t.Error("SetMealTitle should clear the negative entry")
	}
	if title, err := c.GetMealTitle(ctx, id); err != nil || title != "Ramen" {
		t.Errorf("GetMealTitle = %q, %v", title, err)
	}

	if err := c.DeleteMealTitle(ctx, id); err != nil {
		t.Fatalf("DeleteMealTitle: %v", err)
	}
	if _, err := c.GetMealTitle(ctx, id); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss after delete, got %v", err)
	}
}

func TestIntegrationCache_RevokeToken(t *testing.T) {
	ctx, c := newTestCache(t)
	jti := testutil.UniqueID("jti")

	if revoked, _ := c.IsTokenRevoked(ctx, jti); revoked {
		t.Fatal("fresh token should not be revoked")
	}
	if err := c.RevokeToken(ctx, jti, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if revoked, _ := c.IsTokenRevoked(ctx, jti); !revoked {
		t.Error("token should be revoked")
	}

	expired := testutil.UniqueID("jti")
	if err := c.RevokeToken(ctx, expired, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("RevokeToken expired: %v", err)
	}
	if revoked, _ := c.IsTokenRevoked(ctx, expired); revoked {
		t.Error("expired token needs no denylist entry")
	}
}

func TestIntegrationCache_UserRateLimit(t *testing.T) {
	ctx, c := newTestCache(t)
	user := testutil.UniqueID("user")

	for i := 0; i < 3; i++ {
		res, err := c.CheckUserRateLimit(ctx, user, 60, 3)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d should pass: %+v %v", i, res, err)
		}
	}

	res, err := c.CheckUserRateLimit(ctx, user, 60, 3)
	if err != nil {
		t.Fatalf("CheckUserRateLimit: %v", err)
	}
	if res.Allowed {
		t.Error("fourth request should be limited")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}
}
