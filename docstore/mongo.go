package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore implements Store on a MongoDB database. Increment maps to
// $inc, Max to $max, and ServerTimestamp to $currentDate, so deltas and
// timestamps are applied by the server, never read-modify-written here.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Create(ctx context.Context, collection, id string, data Document) error {
	update := splitOperators(data)
	opts := options.Update().SetUpsert(true)
	if _, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update, opts); err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return Document(doc), nil
}

func (s *MongoStore) UpdateFields(ctx context.Context, collection, id string, fields Document) error {
	update := splitOperators(fields)
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) QueryByField(ctx context.Context, collection, field string, value any, limit int64) ([]Document, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{field: value}, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", collection, field, err)
	}
	defer cursor.Close(ctx)

	var docs []Document
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", collection, err)
		}
		docs = append(docs, Document(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("query %s cursor: %w", collection, err)
	}
	return docs, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// splitOperators sorts document fields into the update operators the
// sentinel values call for. Dotted field paths pass straight through,
// MongoDB resolves them natively.
func splitOperators(fields Document) bson.M {
	set := bson.M{}
	inc := bson.M{}
	max := bson.M{}
	current := bson.M{}
	for key, value := range fields {
		switch v := value.(type) {
		case IncrementValue:
			inc[key] = v.Delta
		case MaxValue:
			max[key] = v.Candidate
		case TimestampValue:
			current[key] = true
		default:
			set[key] = value
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	if len(max) > 0 {
		update["$max"] = max
	}
	if len(current) > 0 {
		update["$currentDate"] = current
	}
	if len(update) == 0 {
		// Touch the document so an empty update still matches.
		update["$currentDate"] = bson.M{"lastActivity": true}
	}
	return update
}
