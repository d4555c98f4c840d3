package activity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tablemate/tablemate/internal/metrics"
)

func TestNew_StampsTime(t *testing.T) {
	t.Parallel()

	before := time.Now().UnixMilli()
	a := New(KindEventJoined, "evt-1", "user-1")

	if a.Occurred < before {
		t.Errorf("Occurred = %d, want >= %d", a.Occurred, before)
	}
	if err := Validate(a); err != nil {
		t.Fatalf("expected valid activity, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a    Activity
	}{
		{"unknown_kind", Activity{Kind: "event_exploded", EventID: "e", ActorID: "u", Occurred: 1}},
		{"missing_event", Activity{Kind: KindEventCreated, ActorID: "u", Occurred: 1}},
		{"missing_actor", Activity{Kind: KindEventCreated, EventID: "e", Occurred: 1}},
		{"negative_seats", Activity{Kind: KindEventJoined, EventID: "e", ActorID: "u", Seats: -1, Occurred: 1}},
		{"missing_time", Activity{Kind: KindEventDeleted, EventID: "e", ActorID: "u"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := Validate(tc.a); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestKind_Valid(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{KindEventCreated, KindEventUpdated, KindEventJoined, KindEventDeleted} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if Kind("").Valid() {
		t.Error("empty kind should be invalid")
	}
}

func TestPublisher_DrainWaitsForAsync(t *testing.T) {
	t.Parallel()

	// Invalid activities fail before touching Redis, so no server is needed.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	recorder := metrics.NewInMemory()
	p := NewPublisher(client, slog.New(slog.NewTextHandler(io.Discard, nil)), recorder)

	for i := 0; i < 3; i++ {
		p.PublishAsync(Activity{Kind: KindEventJoined})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got := recorder.Snapshot().ActivityDropped; got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}
}

func TestPublisher_DrainIdle(t *testing.T) {
	t.Parallel()

	p := NewPublisher(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err := p.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
}
