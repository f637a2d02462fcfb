package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tesouraria/internal/localstore"
)

type kvDoc struct {
	ID        string    `bson:"_id"`
	Namespace string    `bson:"namespace"`
	Key       string    `bson:"key"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// KV is the MongoDB localstore.KV.
type KV struct {
	values DataStore
	now    func() time.Time
}

func NewKV(provider CollectionProvider) *KV {
	return &KV{values: provider.Collection(KVCollection), now: time.Now}
}

func kvID(namespace, key string) string {
	return namespace + "/" + key
}

func (k *KV) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var doc kvDoc
	err := k.values.FindOne(ctx, bson.M{"_id": kvID(namespace, key)}, &doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, localstore.ErrNoValue
	}
	if err != nil {
		return nil, fmt.Errorf("get local value %s/%s: %w", namespace, key, err)
	}
	return doc.Value, nil
}

func (k *KV) Put(ctx context.Context, namespace, key string, value []byte) error {
	update := bson.M{"$set": bson.M{
		"namespace": namespace,
		"key":       key,
		"value":     value,
		"updatedAt": k.now().UTC(),
	}}
	_, err := k.values.UpdateOne(ctx, bson.M{"_id": kvID(namespace, key)}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put local value %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, namespace, key string) error {
	if _, err := k.values.DeleteOne(ctx, bson.M{"_id": kvID(namespace, key)}); err != nil {
		return fmt.Errorf("delete local value %s/%s: %w", namespace, key, err)
	}
	return nil
}

var _ localstore.KV = (*KV)(nil)
