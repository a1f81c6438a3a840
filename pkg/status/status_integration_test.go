//go:build integration

package status

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/tagpages/pkg/progress"
)

// setupRedisContainer starts a Redis container and returns a client.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		redisContainer.Terminate(context.Background())
	})

	return client
}

func TestPublisher_Integration(t *testing.T) {
	client := setupRedisContainer(t)
	pub := NewPublisher(client, "integration", zerolog.Nop())
	ctx := context.Background()

	if err := pub.Publish(ctx, progress.Stats{Total: 10098, Outstanding: 10098, Succeeded: 5000, Failed: 3}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	snap, err := pub.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if snap.Succeeded != 5000 || snap.Failed != 3 || snap.Total != 10098 {
		t.Errorf("Get() = %+v", snap)
	}

	ttl, err := client.TTL(ctx, pub.Key()).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 {
		t.Errorf("TTL = %v, want a positive expiry", ttl)
	}
}
