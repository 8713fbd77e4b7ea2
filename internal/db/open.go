package db

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-checklist/internal/config"
)

// Stores bundles the collections of one backend with its lifecycle hooks.
type Stores struct {
	Vehicles VehicleCollection
	Users    UserCollection

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping checks that the backend is reachable.
func (s *Stores) Ping(ctx context.Context) error { return s.ping(ctx) }

// Close releases the backend connection.
func (s *Stores) Close(ctx context.Context) error { return s.close(ctx) }

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("Using SQLite store")
		return &Stores{
			Vehicles: store,
			Users:    store,
			ping:     store.Ping,
			close:    func(context.Context) error { return store.Close() },
		}, nil

	case config.DriverMongo:
		client, err := ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		database := client.Database(cfg.MongoDB)
		store := NewMongoStore(database, cfg.MongoTransactions)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		users := &MongoUserCollection{Collection: database.Collection("users")}
		if err := users.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		log.WithFields(log.Fields{
			"database":     cfg.MongoDB,
			"transactions": cfg.MongoTransactions,
		}).Info("Using MongoDB store")
		return &Stores{
			Vehicles: store,
			Users:    users,
			ping:     func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:    client.Disconnect,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
