package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB result repository.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. cavegen
	Collection string // e.g. layouts
}

// MongoResultRepo implements ResultRepo on MongoDB backend.
type MongoResultRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

// mongoRecord is the stored document. Fingerprint is kept as hex because
// BSON has no unsigned 64-bit integer.
type mongoRecord struct {
	Sublevel    string    `bson:"sublevel"`
	Seed        int64     `bson:"seed"`
	Slug        string    `bson:"slug"`
	ShareCode   string    `bson:"share_code"`
	Fingerprint string    `bson:"fingerprint"`
	Layout      string    `bson:"layout"`
	CreatedAt   time.Time `bson:"created_at"`
}

// NewMongoResultRepo establishes connection and returns repository.
func NewMongoResultRepo(cfg MongoConfig) (*MongoResultRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "cavegen"
	}
	if cfg.Collection == "" {
		cfg.Collection = "layouts"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	// ping
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	repo := &MongoResultRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}

	if err := repo.ensureIndexes(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (m *MongoResultRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	keyIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "sublevel", Value: 1}, {Key: "seed", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("sublevel_seed_unique"),
	}
	fpIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "fingerprint", Value: 1}},
		Options: options.Index().SetName("fingerprint"),
	}
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{keyIdx, fpIdx})
	return err
}

func toMongo(rec *Record) mongoRecord {
	return mongoRecord{
		Sublevel:    rec.Sublevel,
		Seed:        int64(rec.Seed),
		Slug:        rec.Slug,
		ShareCode:   rec.ShareCode,
		Fingerprint: rec.FingerprintHex(),
		Layout:      string(rec.Layout),
		CreatedAt:   rec.CreatedAt,
	}
}

func (d *mongoRecord) toRecord() (*Record, error) {
	fp, err := parseFingerprintHex(d.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("bad fingerprint %q: %w", d.Fingerprint, err)
	}
	return &Record{
		Sublevel:    d.Sublevel,
		Seed:        uint32(d.Seed),
		Slug:        d.Slug,
		ShareCode:   d.ShareCode,
		Fingerprint: fp,
		Layout:      []byte(d.Layout),
		CreatedAt:   d.CreatedAt,
	}, nil
}

func keyFilter(sublevel string, seed uint32) bson.M {
	return bson.M{"sublevel": sublevel, "seed": int64(seed)}
}

// Save implements ResultRepo (upsert).
func (m *MongoResultRepo) Save(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	_, err := m.collection.ReplaceOne(ctx, keyFilter(rec.Sublevel, rec.Seed), toMongo(rec), options.Replace().SetUpsert(true))
	return err
}

// BatchSave implements ResultRepo with a single unordered bulk write.
func (m *MongoResultRepo) BatchSave(ctx context.Context, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(recs))
	for _, rec := range recs {
		if err := validateRecord(rec); err != nil {
			return err
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(keyFilter(rec.Sublevel, rec.Seed)).
			SetReplacement(toMongo(rec)).
			SetUpsert(true))
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	_, err := m.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

// Load implements ResultRepo.
func (m *MongoResultRepo) Load(ctx context.Context, sublevel string, seed uint32) (*Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	var doc mongoRecord
	err := m.collection.FindOne(ctx, keyFilter(sublevel, seed)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rec, err := doc.toRecord()
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Delete implements ResultRepo.
func (m *MongoResultRepo) Delete(ctx context.Context, sublevel string, seed uint32) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	res, err := m.collection.DeleteOne(ctx, keyFilter(sublevel, seed))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("record %s not found", RecordKey(sublevel, seed))
	}
	return nil
}

// List implements ResultRepo.
func (m *MongoResultRepo) List(ctx context.Context, sublevel string, limit int) ([]*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "seed", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.collection.Find(ctx, bson.M{"sublevel": sublevel}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := make([]*Record, 0)
	for cur.Next(ctx) {
		var doc mongoRecord
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec, err := doc.toRecord()
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, cur.Err()
}

// Close disconnects the client.
func (m *MongoResultRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
