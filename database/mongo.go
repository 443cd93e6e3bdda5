package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoClient holds the document database used for sessions,
// consultations, profiles, and newsletter subscribers.
type MongoClient struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// NewMongoDB connects using MONGO_URI and MONGO_DB_NAME. The tracking
// pipeline tolerates this failing: callers run degraded rather than
// crash.
func NewMongoDB() (*MongoClient, error) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable is not set")
	}
	dbName := os.Getenv("MONGO_DB_NAME")
	if dbName == "" {
		dbName = "culturascape"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Println("Successfully connected to MongoDB document store.")
	return &MongoClient{Client: client, DB: client.Database(dbName)}, nil
}

func (c *MongoClient) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Client.Disconnect(ctx); err != nil {
		log.Printf("Error closing MongoDB connection: %v", err)
	} else {
		log.Println("MongoDB connection closed.")
	}
}
