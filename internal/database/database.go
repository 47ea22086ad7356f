package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	appconfig "github.com/GTDGit/apparel_tracker/internal/config"
)

// Store owns the MongoDB client and the application database handle.
// It is created once at process start and closed at shutdown.
type Store struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Connect establishes a MongoDB connection using the provided configuration.
// It applies a small retry strategy to handle transient bootstrapping issues
// (e.g., DB container starting up). The returned Store has pool settings
// pre-configured, decimals registered, and is pinged before returning.
func Connect(cfg *appconfig.MongoConfig) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("nil database config")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetRegistry(NewRegistry()).
		SetAppName("apparel-tracker")
	setPool(opts)

	// Retry policy: up to 5 attempts, exponential backoff starting at 500ms.
	const (
		maxAttempts = 5
		baseDelay   = 500 * time.Millisecond
	)

	var client *mongo.Client
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, lastErr = mongo.Connect(ctx, opts)
		if lastErr != nil {
			cancel()
			log.Warn().Err(lastErr).Int("attempt", attempt).Msg("mongo connect failed")
			sleepWithBackoff(attempt, baseDelay)
			continue
		}

		lastErr = client.Ping(ctx, readpref.Primary())
		cancel()
		if lastErr == nil {
			return &Store{Client: client, DB: client.Database(cfg.Database)}, nil
		}

		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("mongo ping failed")
		_ = client.Disconnect(context.Background())
		sleepWithBackoff(attempt, baseDelay)
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxAttempts, lastErr)
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// setPool configures the connection pool for the database.
func setPool(opts *options.ClientOptions) {
	opts.SetMaxPoolSize(25)
	opts.SetMinPoolSize(5)
	opts.SetMaxConnIdleTime(5 * time.Minute)
}

// sleepWithBackoff sleeps for an exponentially increasing duration.
func sleepWithBackoff(attempt int, base time.Duration) {
	d := base << (attempt - 1)
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	time.Sleep(d)
}
