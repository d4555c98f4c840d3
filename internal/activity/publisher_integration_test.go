//go:build integration

package activity

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/tablemate/tablemate/internal/metrics"
	"github.com/tablemate/tablemate/internal/testutil"
)

func TestPublisher_Publish(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	p := NewPublisher(client, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.NewInMemory())
	a := New(KindEventJoined, testutil.UniqueID("evt"), "user-1")
	a.Seats = 3

	id, err := p.Publish(ctx, a)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	t.Cleanup(func() { client.XDel(context.Background(), StreamKey, id) })

	msgs, err := client.XRange(ctx, StreamKey, id, id).Result()
	if err != nil || len(msgs) != 1 {
		t.Fatalf("xrange: %v (%d messages)", err, len(msgs))
	}

	var got Activity
	if err := json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.EventID != a.EventID || got.Seats != 3 || got.Kind != KindEventJoined {
		t.Errorf("payload = %+v, want %+v", got, a)
	}
}

func TestPublisher_RejectsInvalid(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	p := NewPublisher(client, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if _, err := p.Publish(context.Background(), Activity{Kind: KindEventJoined}); err == nil {
		t.Fatal("expected validation error")
	}
}
