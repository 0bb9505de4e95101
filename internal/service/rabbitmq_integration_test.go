//go:build integration
// +build integration

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/geekdaily/escape-the-algo/internal/config"
	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

var (
	loggerInitOnce sync.Once
	loggerInitErr  error
)

func initTestLogger() error {
	loggerInitOnce.Do(func() {
		loggerInitErr = logger.Init("error", "")
	})
	return loggerInitErr
}

func setupTestRabbitMQ(t *testing.T) *config.RabbitMQConfig {
	t.Helper()
	if err := initTestLogger(); err != nil {
		t.Fatalf("Failed to initialize test logger: %v", err)
	}

	ctx := context.Background()

	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.13-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start rabbitmq container: %v", err)
	}
	t.Cleanup(func() {
		if err := rabbitmqContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := rabbitmqContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get host: %v", err)
	}

	port, err := rabbitmqContainer.MappedPort(ctx, "5672/tcp")
	if err != nil {
		t.Fatalf("Failed to get port: %v", err)
	}

	return &config.RabbitMQConfig{
		Host:       host,
		Port:       port.Int(),
		User:       "guest",
		Password:   "guest",
		Exchange:   "test.discovery.events",
		Queue:      "test.discovery.outcomes",
		RoutingKey: "test.discovery.completed",
	}
}

func TestMessagePublisherPublishOutcome(t *testing.T) {
	cfg := setupTestRabbitMQ(t)

	publisher, err := NewMessagePublisher(cfg)
	if err != nil {
		t.Fatalf("NewMessagePublisher() error: %v", err)
	}
	defer publisher.Close()

	if !publisher.IsHealthy() {
		t.Fatal("publisher not healthy after connect")
	}

	event := &DiscoveryEvent{
		EventID:     uuid.New(),
		RunID:       1,
		Outcome:     "found",
		VideoID:     "abc123",
		RadiusMiles: 25,
		Steps:       4,
		DurationMS:  2300,
		OccurredAt:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := publisher.PublishOutcome(ctx, event); err != nil {
		t.Fatalf("PublishOutcome() error: %v", err)
	}
}

func TestMessagePublisherCloseIsIdempotentSafe(t *testing.T) {
	cfg := setupTestRabbitMQ(t)

	publisher, err := NewMessagePublisher(cfg)
	if err != nil {
		t.Fatalf("NewMessagePublisher() error: %v", err)
	}

	if err := publisher.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if publisher.IsHealthy() {
		t.Error("publisher reports healthy after close")
	}
}
