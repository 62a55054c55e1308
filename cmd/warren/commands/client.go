package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/fleet"
	"github.com/redis/go-redis/v9"
)

// connectFleet opens a fleet client for the configured instance and verifies
// Redis connectivity before returning it.
func connectFleet(ctx context.Context, cfg *config.Config) (*fleet.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, printer.Error(
			"invalid Redis URL",
			fmt.Sprintf("Could not parse %q: %v", cfg.RedisURL, err),
			[]string{"Expected a URL like redis://localhost:6379"},
		)
	}

	client, err := fleet.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create fleet client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.Error(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.RedisURL),
			[]string{
				"Check that Redis is running and reachable",
				"Set the URL with --redis-url or WARREN_REDIS_URL",
			},
		)
	}

	return client, nil
}
