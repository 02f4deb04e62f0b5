// Package mongo stores bulk-ingested documents in a MongoDB collection.
// Endpoint declarations are read from a modules collection keyed by api path.
package mongo

import (
	"context"
	"time"

	"github.com/doublecloud/hubwriter/pkg/bulk"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

const (
	DefaultModulesCollection = "modules"
	idField                  = "_id"
	contentField             = "content"
	disconnectTimeout        = 10 * time.Second
)

type Config struct {
	URI               string
	Database          string
	Collection        string
	ModulesCollection string
}

func (c *Config) Validate() error {
	if c.Database == "" {
		return xerrors.New("database is empty")
	}
	if c.Collection == "" {
		return xerrors.New("collection is empty")
	}
	if c.ModulesCollection == "" {
		c.ModulesCollection = DefaultModulesCollection
	}
	return nil
}

type Service struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    *Config
	logger *zap.Logger
}

var _ bulk.Service = (*Service)(nil)

func NewService(ctx context.Context, cfg *Config, logger *zap.Logger) (*Service, error) {
	if cfg.URI == "" {
		return nil, xerrors.New("invalid mongo config: uri is empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid mongo config: %w", err)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, xerrors.Errorf("unable to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, xerrors.Errorf("unable to ping mongo: %w", err)
	}
	s := NewServiceFromDatabase(client.Database(cfg.Database), cfg, logger)
	s.client = client
	return s, nil
}

// NewServiceFromDatabase works on an already connected database, Close leaves its client open.
func NewServiceFromDatabase(db *mongo.Database, cfg *Config, logger *zap.Logger) *Service {
	if cfg.ModulesCollection == "" {
		cfg.ModulesCollection = DefaultModulesCollection
	}
	return &Service{
		client: nil,
		db:     db,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "mongo")),
	}
}

type moduleDocument struct {
	ID      string `bson:"_id"`
	Content string `bson:"content"`
}

func (s *Service) Declaration(ctx context.Context, apiPath string) (*bulk.Declaration, error) {
	var module moduleDocument
	err := s.db.Collection(s.cfg.ModulesCollection).
		FindOne(ctx, bson.D{{Key: idField, Value: apiPath}}).
		Decode(&module)
	if err != nil {
		if xerrors.Is(err, mongo.ErrNoDocuments) {
			if apiPath == bulk.DefaultAPIPath {
				return bulk.BuiltinDeclaration(), nil
			}
			return nil, bulk.NotFoundError(apiPath)
		}
		return nil, xerrors.Errorf("unable to read %q from %s.%s: %w", apiPath, s.db.Name(), s.cfg.ModulesCollection, err)
	}
	decl, err := bulk.ParseDeclaration(apiPath, []byte(module.Content))
	if err != nil {
		return nil, xerrors.Errorf("unable to parse declaration: %w", err)
	}
	return decl, nil
}

func (s *Service) BulkInputCaller(_ context.Context, declaration *bulk.Declaration, endpointState, workUnit []byte) (bulk.Caller, error) {
	coll := s.db.Collection(s.cfg.Collection)
	return bulk.NewBufferedCaller(declaration.InputBatchSize, endpointState, func(ctx context.Context, state []byte, inputs [][]byte) ([]byte, error) {
		docs := make([]interface{}, 0, len(inputs))
		for _, input := range inputs {
			doc, err := toDocument(bulk.DocumentURI(workUnit), input)
			if err != nil {
				return nil, xerrors.Errorf("unable to convert input to bson: %w", err)
			}
			docs = append(docs, doc)
		}
		startInsert := time.Now()
		if _, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
			return nil, xerrors.Errorf("unable to insert %d documents into %s.%s: %w", len(docs), s.db.Name(), s.cfg.Collection, err)
		}
		s.logger.Debug("Inserted documents", zap.Int("count", len(docs)), zap.Duration("elapsed", time.Since(startInsert)))
		return state, nil
	}), nil
}

// toDocument puts the uri into _id, an _id coming with the input is replaced.
func toDocument(uri string, input []byte) (bson.D, error) {
	var parsed bson.D
	if err := bson.UnmarshalExtJSON(input, false, &parsed); err != nil {
		return nil, err
	}
	doc := make(bson.D, 0, len(parsed)+1)
	doc = append(doc, bson.E{Key: idField, Value: uri})
	for _, e := range parsed {
		if e.Key == idField {
			continue
		}
		doc = append(doc, e)
	}
	return doc, nil
}

func (s *Service) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return xerrors.Errorf("unable to disconnect from mongo: %w", err)
	}
	return nil
}
