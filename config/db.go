package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects to MONGODB_URI, pings it and stores the client on cfg.
func ConnectMongo(ctx context.Context, cfg *Config) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("mongo ping: %w", err)
	}

	cfg.MongoClient = client
	return nil
}

func (c *Config) Database() *mongo.Database {
	return c.MongoClient.Database(c.DBName)
}

// EnsureIndexes creates the uniqueness constraints the stores rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"deleted_events": {
			{Keys: bson.D{{Key: "originalEventId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"events": {
			{Keys: bson.D{{Key: "ownerId", Value: 1}}},
			{Keys: bson.D{{Key: "date", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", col, err)
		}
	}
	return nil
}
