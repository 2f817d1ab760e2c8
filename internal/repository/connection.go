package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig describes the cart database. Zero fields take the defaults
// below.
type MongoConfig struct {
	URI         string
	Database    string
	AppName     string
	MaxPoolSize uint64
	Timeout     time.Duration
}

const (
	defaultAppName     = "lanches-bebidas-storefront"
	defaultMaxPoolSize = 50
	defaultTimeout     = 5 * time.Second
)

func (c MongoConfig) withDefaults() MongoConfig {
	if c.AppName == "" {
		c.AppName = defaultAppName
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// clientOptions keeps carts on the primary: a cart read must see the last save.
func (c MongoConfig) clientOptions() *options.ClientOptions {
	return options.Client().
		ApplyURI(c.URI).
		SetAppName(c.AppName).
		SetConnectTimeout(c.Timeout).
		SetServerSelectionTimeout(c.Timeout).
		SetMaxPoolSize(c.MaxPoolSize).
		SetReadPreference(readpref.Primary()).
		SetRetryWrites(true)
}

// Connect opens the cart database and pings the primary, so a bad URI fails
// at startup rather than on the first cart save.
func Connect(ctx context.Context, cfg MongoConfig) (*mongo.Database, error) {
	cfg = cfg.withDefaults()
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("mongo uri and database are required")
	}

	client, err := mongo.Connect(ctx, cfg.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(cfg.Database), nil
}

// Disconnect closes the client behind db.
func Disconnect(ctx context.Context, db *mongo.Database) error {
	if db == nil {
		return nil
	}
	return db.Client().Disconnect(ctx)
}
