package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roverlab/traverse/pkg/errors"
)

// MongoStore persists path records in a MongoDB collection. A sibling
// counters collection provides the monotone insertion sequence, so Seq
// order is stable across clients.
type MongoStore struct {
	client   *mongo.Client
	records  *mongo.Collection
	counters *mongo.Collection
	opts     Options
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to uri and uses the named database with the
// "path_records" and "counters" collections.
func NewMongoStore(ctx context.Context, uri, database string, opts Options) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "connecting to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "pinging mongodb")
	}
	db := client.Database(database)
	return &MongoStore{
		client:   client,
		records:  db.Collection("path_records"),
		counters: db.Collection("counters"),
		opts:     opts,
	}, nil
}

// nextSeq atomically increments and returns the insertion counter.
func (s *MongoStore) nextSeq(ctx context.Context) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "path_records"},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "incrementing sequence counter")
	}
	return doc.Value, nil
}

// Insert implements [Store].
func (s *MongoStore) Insert(ctx context.Context, rec *PathRecord) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", err
	}
	hash := coordHash(rec.Coords)

	if s.opts.DisallowDuplicates {
		var existing PathRecord
		err := s.records.FindOne(ctx, bson.M{"coord_hash": hash}).Decode(&existing)
		switch {
		case err == nil:
			return "", errors.New(errors.ErrCodeDuplicatePath,
				"coordinate sequence already stored as %s", existing.ID)
		case err != mongo.ErrNoDocuments:
			return "", errors.Wrap(errors.ErrCodeInternal, err, "checking for duplicate path")
		}
	}

	seq, err := s.nextSeq(ctx)
	if err != nil {
		return "", err
	}

	stored := *rec
	stored.ID = uuid.NewString()
	stored.Seq = seq
	stored.CoordHash = hash
	stored.CreatedAt = time.Now().UTC()

	if _, err := s.records.InsertOne(ctx, &stored); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "inserting path record")
	}

	rec.ID, rec.Seq, rec.CoordHash, rec.CreatedAt = stored.ID, stored.Seq, stored.CoordHash, stored.CreatedAt
	return stored.ID, nil
}

// Get implements [Store].
func (s *MongoStore) Get(ctx context.Context, id string) (*PathRecord, error) {
	var rec PathRecord
	err := s.records.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeNotFound, "no path record with id %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "fetching path record %s", id)
	}
	return &rec, nil
}

// List implements [Store]. Bounds and ordering are pushed down to the
// server as queries on positional cost components.
func (s *MongoStore) List(ctx context.Context, f Filter) ([]*PathRecord, error) {
	query := bson.M{}
	for _, b := range f.Bounds {
		field := costField(b.Component)
		cond := bson.M{}
		if b.Min != nil {
			cond["$gte"] = *b.Min
		}
		if b.Max != nil {
			cond["$lte"] = *b.Max
		}
		if len(cond) == 0 {
			cond["$exists"] = true
		}
		query[field] = cond
	}

	sortKey := bson.D{{Key: "seq", Value: 1}}
	if f.SortComponent != nil {
		sortKey = bson.D{{Key: costField(*f.SortComponent), Value: 1}, {Key: "seq", Value: 1}}
	}

	cur, err := s.records.Find(ctx, query, options.Find().SetSort(sortKey))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "listing path records")
	}
	defer cur.Close(ctx)

	var recs []*PathRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decoding path records")
	}
	return recs, nil
}

// Delete implements [Store].
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.records.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "deleting path record %s", id)
	}
	if res.DeletedCount == 0 {
		return errors.New(errors.ErrCodeNotFound, "no path record with id %s", id)
	}
	return nil
}

// Close implements [Store].
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "disconnecting from mongodb")
	}
	return nil
}

// costField addresses one positional component of the stored cost vector.
func costField(component int) string {
	return "cost." + strconv.Itoa(component)
}
