// MongoDB document store using the official mongo-driver.
//
// Information Hiding:
// - Client creation deferred to first use and shared afterwards
// - BSON projection and sort documents
// - BSON value types converted to plain Go values

package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig names the collection holding flight-leg documents.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// Mongo implements Store and Seeder against a MongoDB collection. The
// client is created on first use; a failed attempt is retried by the
// next call, a successful one is reused by every caller.
type Mongo struct {
	cfg    MongoConfig
	logger *slog.Logger

	mu     sync.Mutex
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo returns a store for cfg without connecting.
func NewMongo(cfg MongoConfig, logger *slog.Logger) *Mongo {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Mongo{cfg: cfg, logger: logger}
}

func (m *Mongo) collection(ctx context.Context) (*mongo.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.coll != nil {
		return m.coll, nil
	}
	if m.cfg.URI == "" || m.cfg.Database == "" || m.cfg.Collection == "" {
		return nil, errors.New("mongo: uri, database and collection are required")
	}

	m.logger.Info("connecting to MongoDB", "database", m.cfg.Database, "collection", m.cfg.Collection)
	opts := options.Client().
		ApplyURI(m.cfg.URI).
		SetConnectTimeout(m.cfg.ConnectTimeout).
		SetServerSelectionTimeout(m.cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	m.client = client
	m.coll = client.Database(m.cfg.Database).Collection(m.cfg.Collection)
	return m.coll, nil
}

// FindOne returns the first document matching query.
func (m *Mongo) FindOne(ctx context.Context, query Query, projection []string) (Document, error) {
	coll, err := m.collection(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.FindOne()
	if len(projection) > 0 {
		opts.SetProjection(projectionDoc(projection))
	}

	var raw bson.M
	err = coll.FindOne(ctx, bson.M(query), opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDocument(raw), nil
}

// Find returns matching documents, sorted and limited per opts.
func (m *Mongo) Find(ctx context.Context, query Query, opts FindOptions) ([]Document, error) {
	coll, err := m.collection(ctx)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if opts.SortField != "" {
		dir := 1
		if opts.Descending {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: opts.SortField, Value: dir}})
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(projectionDoc(opts.Projection))
	}

	cursor, err := coll.Find(ctx, bson.M(query), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	docs := make([]Document, len(raw))
	for i, r := range raw {
		docs[i] = toDocument(r)
	}
	return docs, nil
}

// Probe fetches a single _id. An empty collection is reachable but
// reports false.
func (m *Mongo) Probe(ctx context.Context) (bool, error) {
	coll, err := m.collection(ctx)
	if err != nil {
		return false, err
	}

	var raw bson.M
	err = coll.FindOne(ctx, bson.M{}, options.FindOne().SetProjection(bson.M{fieldID: 1})).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Ping checks connectivity with the primary.
func (m *Mongo) Ping(ctx context.Context) error {
	if _, err := m.collection(ctx); err != nil {
		return err
	}
	return m.client.Ping(ctx, readpref.Primary())
}

// Insert adds docs to the collection.
func (m *Mongo) Insert(ctx context.Context, docs ...Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	coll, err := m.collection(ctx)
	if err != nil {
		return 0, err
	}

	batch := make([]any, len(docs))
	for i, d := range docs {
		batch[i] = bson.M(d)
	}
	res, err := coll.InsertMany(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("mongo insert: %w", err)
	}
	return len(res.InsertedIDs), nil
}

// Close disconnects the client if one was created.
func (m *Mongo) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client, m.coll = nil, nil
	return err
}

func projectionDoc(paths []string) bson.D {
	proj := make(bson.D, 0, len(paths))
	for _, p := range paths {
		proj = append(proj, bson.E{Key: p, Value: 1})
	}
	return proj
}

// ParseQuery decodes a relaxed Extended JSON filter such as
// {"flightLegState.carrier": "6E"}, so $date and $oid values reach the
// server with their BSON types.
func (m *Mongo) ParseQuery(s string) (Query, error) {
	var q bson.M
	if err := bson.UnmarshalExtJSON([]byte(s), false, &q); err != nil {
		return nil, err
	}
	return Query(q), nil
}

func toDocument(raw bson.M) Document {
	return StripInternal(Document(fromBSON(raw).(map[string]any)))
}

// fromBSON converts driver value types into plain maps, slices and
// scalars that encode cleanly to JSON.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = fromBSON(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = fromBSON(val)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return t.String()
	case primitive.Binary:
		return t.Data
	case primitive.Regex:
		return t.Pattern
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}

var (
	_ Store       = (*Mongo)(nil)
	_ Seeder      = (*Mongo)(nil)
	_ QueryParser = (*Mongo)(nil)
	_ Pinger      = (*Mongo)(nil)
)
