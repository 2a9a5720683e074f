package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoValueStore persists values in a single collection, one document per
// key, with the envelope string in a text field.
type MongoValueStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoValueStore(ctx context.Context, uri, dbName, collName string) (*MongoValueStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	// Verify connection quickly
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}

	coll := cli.Database(dbName).Collection(collName)
	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoValueStore{client: cli, coll: coll}, nil
}

func (m *MongoValueStore) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("empty key")
	}
	_, err := m.coll.UpdateByID(
		ctx,
		key,
		bson.M{
			"$set": bson.M{
				"value":     value,
				"updatedAt": time.Now(),
			},
			"$setOnInsert": bson.M{
				"createdAt": time.Now(),
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *MongoValueStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	var doc struct {
		Value string `bson:"value"`
	}
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", ErrNotFound
	}
	return doc.Value, err
}

func (m *MongoValueStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("empty key")
	}
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (m *MongoValueStore) List(ctx context.Context) ([]StoredValue, error) {
	cur, err := m.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []StoredValue
	for cur.Next(ctx) {
		var doc struct {
			Key   string `bson:"_id"`
			Value string `bson:"value"`
		}
		if err := cur.Decode(&doc); err == nil {
			out = append(out, StoredValue{Key: doc.Key, Value: doc.Value})
		}
	}
	return out, cur.Err()
}

func (m *MongoValueStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
