package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/console-migrate/internal/config"
	"github.com/chirino/console-migrate/internal/model"
	registrymigrate "github.com/chirino/console-migrate/internal/registry/migrate"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registrystore.DocumentStore, error) {
			cfg := config.FromContext(ctx)
			client, err := connect(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return &MongoStore{client: client, db: client.Database(cfg.DBName)}, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &mongoMigrator{}})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func connect(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(cfg.DBURL)
	if cfg.DBMaxOpenConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.DBMaxOpenConns))
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

type mongoMigrator struct{}

func (m *mongoMigrator) Name() string { return "mongo-indexes" }
func (m *mongoMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.SchemaMigrate {
		return nil
	}
	if cfg.DatastoreType != "mongo" {
		return nil // skip if not using mongo
	}

	log.Info("Running migration", "name", m.Name())
	client, err := connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mongo migration: %w", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.DBName)
	for _, coll := range model.Collections {
		// Ensure collection exists; an "already exists" error is expected.
		_ = db.CreateCollection(ctx, string(coll))
		// Fallback lookups match by name.
		if _, err := db.Collection(string(coll)).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: model.FieldName, Value: 1}},
		}); err != nil {
			return fmt.Errorf("mongo migration: failed to create name index for %s: %w", coll, err)
		}
	}
	log.Info("MongoDB index migration complete")
	return nil
}

// MongoStore implements DocumentStore using MongoDB. Keys stored as
// ObjectIDs are exposed to the engine as hex strings and converted back on
// write; string keys pass through unchanged.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore wraps an existing client.
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(dbName)}
}

func (s *MongoStore) coll(c model.Collection) *mongo.Collection { return s.db.Collection(string(c)) }

func (s *MongoStore) NewID() string { return bson.NewObjectID().Hex() }

func (s *MongoStore) FindAll(ctx context.Context, c model.Collection) ([]model.Document, error) {
	cur, err := s.coll(c).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c, err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", c, err)
	}
	docs := make([]model.Document, len(raw))
	for i, r := range raw {
		docs[i] = fromBSON(r)
	}
	return docs, nil
}

func (s *MongoStore) FindOne(ctx context.Context, c model.Collection, match registrystore.Match) (model.Document, error) {
	var raw bson.M
	err := s.coll(c).FindOne(ctx, bson.M{match.Field: toBSONField(match.Field, match.Value)}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Collection: c, ID: fmt.Sprintf("%s=%v", match.Field, match.Value)}
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c, err)
	}
	return fromBSON(raw), nil
}

func (s *MongoStore) UpdateFields(ctx context.Context, c model.Collection, id string, patch registrystore.Patch) error {
	update := bson.M{}
	if len(patch.Set) > 0 {
		set := bson.M{}
		for field, value := range patch.Set {
			set[field] = toBSONField(field, value)
		}
		update["$set"] = set
	}
	if len(patch.AddToSet) > 0 {
		add := bson.M{}
		for field, ids := range patch.AddToSet {
			add[field] = bson.M{"$each": toObjectIDs(ids)}
		}
		update["$addToSet"] = add
	}
	if len(patch.Pull) > 0 {
		pull := bson.M{}
		for field, ids := range patch.Pull {
			pull[field] = bson.M{"$in": toObjectIDs(ids)}
		}
		update["$pull"] = pull
	}
	if len(update) == 0 {
		return nil
	}

	res, err := s.coll(c).UpdateOne(ctx, bson.M{model.FieldID: toObjectID(id)}, update)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", c, id, err)
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Collection: c, ID: id}
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, c model.Collection, doc model.Document) (string, error) {
	raw := toBSON(doc)
	if _, ok := raw[model.FieldID]; !ok {
		raw[model.FieldID] = bson.NewObjectID()
	}
	res, err := s.coll(c).InsertOne(ctx, raw)
	if mongo.IsDuplicateKeyError(err) {
		return "", &registrystore.ConflictError{Collection: c, ID: doc.ID(), Message: "duplicate key"}
	}
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", c, err)
	}
	return idString(res.InsertedID), nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
