package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ensureIndexes creates the ordered-retrieval and lookup indexes. The unique
// (caseId, prevHash) index is what turns a racing second append into a
// duplicate-key error instead of a fork.
func ensureIndexes(ctx context.Context, c *mongo.Collection) error {
	_, err := c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "caseId", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetName("case_created"),
		},
		{
			Keys:    bson.D{{Key: "caseId", Value: 1}, {Key: "prevHash", Value: 1}},
			Options: options.Index().SetName("case_link").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "hash", Value: 1}},
			Options: options.Index().SetName("hash"),
		},
		{
			Keys:    bson.D{{Key: "idemHash", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "actor.userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("actor_created"),
		},
		{Keys: bson.D{{Key: "kind", Value: 1}}},
	})
	return err
}
