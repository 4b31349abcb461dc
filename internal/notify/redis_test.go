package notify_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/notify"
)

// Set TEAMTASKS_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a
// real server.
func TestRedisBrokerRoundTrip(t *testing.T) {
	addr := os.Getenv("TEAMTASKS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEAMTASKS_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := notify.NewRedisBroker(client, nil)
	ch, stop, err := broker.Subscribe(ctx, "bob")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	want := model.Notification{ID: "n1", UserID: "bob", Type: model.NotificationTaskAssigned}
	if err := broker.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.ID != want.ID || got.Type != want.Type {
			t.Errorf("got %+v, want %+v", got, want)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}
