// Package mongostore implements store.Store on MongoDB using the official
// driver. Plants and harvests live in the "plants" and "harvests"
// collections of the configured database.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/conneroisu/plantlog/internal/logging"
	"github.com/conneroisu/plantlog/internal/store"
)

// Options configures a connection.
type Options struct {
	URI      string
	Database string
	// Timeout bounds every store operation; zero means no bound.
	Timeout time.Duration
	// Transactions runs the cascading delete inside a multi-document
	// transaction. The server must be a replica set or sharded cluster.
	Transactions bool
	Logger       logging.Logger
}

// Store is a store.Store backed by MongoDB.
type Store struct {
	client       *mongo.Client
	plants       *mongo.Collection
	harvests     *mongo.Collection
	timeout      time.Duration
	transactions bool
	logger       logging.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to the server and verifies it answers a ping.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("store")

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.Timeout > 0 {
		clientOpts.SetServerSelectionTimeout(opts.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting: %v", store.ErrUnavailable, err)
	}

	s := newStore(client, opts, logger)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info(ctx, "connected to mongo", "database", opts.Database, "transactions", opts.Transactions)
	return s, nil
}

func newStore(client *mongo.Client, opts Options, logger logging.Logger) *Store {
	db := client.Database(opts.Database)
	return &Store{
		client:       client,
		plants:       db.Collection(store.PlantsCollection),
		harvests:     db.Collection(store.HarvestsCollection),
		timeout:      opts.Timeout,
		transactions: opts.Transactions,
		logger:       logger,
	}
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) ListPlants(ctx context.Context) (_ []store.Plant, err error) {
	op := logging.StartOperation(s.logger, "list_plants")
	defer func() { op.Finish(ctx, err) }()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	cur, err := s.plants.Find(ctx, bson.D{})
	if err != nil {
		return nil, classify(err)
	}

	plants := make([]store.Plant, 0)
	if err := cur.All(ctx, &plants); err != nil {
		return nil, classify(err)
	}
	return plants, nil
}

func (s *Store) GetPlant(ctx context.Context, id primitive.ObjectID) (*store.Plant, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var p store.Plant
	if err := s.plants.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (s *Store) CreatePlant(ctx context.Context, p store.Plant) (_ primitive.ObjectID, err error) {
	op := logging.StartOperation(s.logger, "create_plant")
	defer func() { op.Finish(ctx, err) }()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	p.ID = primitive.NewObjectID()
	if _, err := s.plants.InsertOne(ctx, p); err != nil {
		return primitive.NilObjectID, classify(err)
	}
	return p.ID, nil
}

func (s *Store) UpdatePlant(ctx context.Context, id primitive.ObjectID, fields store.PlantFields) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.plants.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields.SetDocument()})
	if err != nil {
		return classify(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeletePlant removes the plant and then its harvests. Without transactions
// a failure between the two steps leaves orphaned harvests behind.
func (s *Store) DeletePlant(ctx context.Context, id primitive.ObjectID) (_ store.DeleteResult, err error) {
	op := logging.StartOperation(s.logger, "delete_plant")
	defer func() { op.Finish(ctx, err) }()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if !s.transactions {
		return s.deleteCascade(ctx, id)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return store.DeleteResult{}, classify(err)
	}
	defer session.EndSession(ctx)

	out, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return s.deleteCascade(sc, id)
	})
	if err != nil {
		return store.DeleteResult{}, err
	}
	return out.(store.DeleteResult), nil
}

func (s *Store) deleteCascade(ctx context.Context, id primitive.ObjectID) (store.DeleteResult, error) {
	var result store.DeleteResult

	res, err := s.plants.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return result, classify(err)
	}
	result.Plants = res.DeletedCount

	res, err = s.harvests.DeleteMany(ctx, bson.M{"plant_id": store.PlantRef(id)})
	if err != nil {
		s.logger.Error(ctx, err, "plant deleted but harvests were not", "plant_id", store.PlantRef(id))
		return result, classify(err)
	}
	result.Harvests = res.DeletedCount
	return result, nil
}

func (s *Store) ListHarvests(ctx context.Context, plantID string) (_ []store.Harvest, err error) {
	op := logging.StartOperation(s.logger, "list_harvests")
	defer func() { op.Finish(ctx, err) }()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	cur, err := s.harvests.Find(ctx, bson.M{"plant_id": plantID})
	if err != nil {
		return nil, classify(err)
	}

	harvests := make([]store.Harvest, 0)
	if err := cur.All(ctx, &harvests); err != nil {
		return nil, classify(err)
	}
	return harvests, nil
}

func (s *Store) CreateHarvest(ctx context.Context, h store.Harvest) (_ primitive.ObjectID, err error) {
	op := logging.StartOperation(s.logger, "create_harvest")
	defer func() { op.Finish(ctx, err) }()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	h.ID = primitive.NewObjectID()
	if _, err := s.harvests.InsertOne(ctx, h); err != nil {
		return primitive.NilObjectID, classify(err)
	}
	return h.ID, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// drop removes both collections. Used by integration tests.
func (s *Store) drop(ctx context.Context) error {
	return s.plants.Database().Drop(ctx)
}

// classify maps driver errors onto the store sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case errors.Is(err, mongo.ErrClientDisconnected),
		mongo.IsNetworkError(err),
		mongo.IsTimeout(err):
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	default:
		return err
	}
}
