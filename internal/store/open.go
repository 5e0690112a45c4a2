package store

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sudo-init-do/homeswift/internal/config"
	"github.com/sudo-init-do/homeswift/internal/db"
)

// Open connects the backend named by cfg.StoreType and prepares its schema.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreType {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPostgresStore(pool), nil
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI).SetRegistry(MongoRegistry()))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		s := NewMongoStore(client, cfg.Mongo.Database)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("mongo ping: %w", err)
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		slog.Info("connected to mongo", "database", cfg.Mongo.Database)
		return s, nil
	case "memory":
		slog.Warn("using in-memory store, data is lost on restart")
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.StoreType)
}
