package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Veysel440/go-ledger/internal/core"
	"github.com/Veysel440/go-ledger/internal/service"
)

type Repo struct {
	client *mongo.Client
	col    *mongo.Collection
}

type Config struct {
	URI        string
	DB         string
	Collection string
}

func New(ctx context.Context, cfg Config) (*Repo, error) {
	cl, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	col := cl.Database(cfg.DB).Collection(cfg.Collection)
	if err := ensureIndexes(ctx, col); err != nil {
		_ = cl.Disconnect(ctx)
		return nil, err
	}
	return &Repo{client: cl, col: col}, nil
}

func (r *Repo) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// chainOrder is createdAt ascending with seq as tie-breaker.
var chainOrder = bson.D{{Key: "createdAt", Value: 1}, {Key: "seq", Value: 1}}

func (r *Repo) Append(ctx context.Context, ev core.AuditEvent) error {
	doc, err := toDoc(ev)
	if err != nil {
		return err
	}
	_, err = r.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return service.ErrConflict
	}
	return err
}

func (r *Repo) Tip(ctx context.Context, caseID string) (core.AuditEvent, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}})
	var d eventDoc
	err := r.col.FindOne(ctx, bson.M{"caseId": caseID}, opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.AuditEvent{}, false, nil
	}
	if err != nil {
		return core.AuditEvent{}, false, err
	}
	return fromDoc(d), true, nil
}

func (r *Repo) Events(ctx context.Context, caseID string) ([]core.AuditEvent, error) {
	return r.find(ctx, bson.M{"caseId": caseID}, options.Find().SetSort(chainOrder))
}

func (r *Repo) Get(ctx context.Context, id string) (core.AuditEvent, error) {
	var d eventDoc
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.AuditEvent{}, service.ErrNotFound
	}
	if err != nil {
		return core.AuditEvent{}, err
	}
	return fromDoc(d), nil
}

func (r *Repo) FindByIdem(ctx context.Context, idemHash string) (core.AuditEvent, bool, error) {
	var d eventDoc
	err := r.col.FindOne(ctx, bson.M{"idemHash": idemHash}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.AuditEvent{}, false, nil
	}
	if err != nil {
		return core.AuditEvent{}, false, err
	}
	return fromDoc(d), true, nil
}

func (r *Repo) List(ctx context.Context, f service.ListFilter) ([]core.AuditEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(f.Limit).
		SetSkip(f.Offset)
	return r.find(ctx, listQuery(f), opts)
}

func listQuery(f service.ListFilter) bson.M {
	q := bson.M{}
	if f.CaseID != "" {
		q["caseId"] = f.CaseID
	}
	if f.ActorID != "" {
		q["actor.userId"] = f.ActorID
	}
	if f.Kind != "" {
		q["kind"] = string(f.Kind)
	}
	if f.Active != nil {
		q["isActive"] = *f.Active
	}
	if f.Since != nil || f.Until != nil {
		rng := bson.M{}
		if f.Since != nil {
			rng["$gte"] = f.Since.UTC()
		}
		if f.Until != nil {
			rng["$lte"] = f.Until.UTC()
		}
		q["createdAt"] = rng
	}
	return q
}

// SetActiveThrough issues two updates that only touch isActive. They are not
// atomic together; the ledger calls it under the case lock.
func (r *Repo) SetActiveThrough(ctx context.Context, caseID string, cutoff time.Time) error {
	cutoff = cutoff.UTC()
	if _, err := r.col.UpdateMany(ctx,
		bson.M{"caseId": caseID, "createdAt": bson.M{"$gt": cutoff}},
		bson.M{"$set": bson.M{"isActive": false}},
	); err != nil {
		return err
	}
	_, err := r.col.UpdateMany(ctx,
		bson.M{"caseId": caseID, "createdAt": bson.M{"$lte": cutoff}},
		bson.M{"$set": bson.M{"isActive": true}},
	)
	return err
}

func (r *Repo) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]core.AuditEvent, error) {
	cur, err := r.col.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := []core.AuditEvent{}
	for cur.Next(ctx) {
		var d eventDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		list = append(list, fromDoc(d))
	}
	return list, cur.Err()
}
