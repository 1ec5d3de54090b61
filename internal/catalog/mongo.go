package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"substream/internal/config"
	"substream/internal/logging"
	"substream/internal/media"
	"substream/internal/services"
)

// MongoStore is the production Store backed by a mongo collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

var _ Store = (*MongoStore)(nil)

// Connect establishes the mongo connection with bounded retry and prepares
// the collection indexes. The returned store is ready for use; callers own
// its lifecycle and must Close it on shutdown.
func Connect(ctx context.Context, cfg config.Store, logger *slog.Logger) (*MongoStore, error) {
	logger = logging.NewComponentLogger(logger, "catalog")

	connectTimeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	retryInterval := time.Duration(cfg.ConnectRetryInterval) * time.Second
	if retryInterval <= 0 {
		retryInterval = 3 * time.Second
	}

	var client *mongo.Client
	var lastErr error
	attempts := cfg.ConnectRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		client, lastErr = connectOnce(ctx, cfg.URI, connectTimeout)
		if lastErr == nil {
			break
		}
		logger.Warn("store connection failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Error(lastErr))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrConnectivity, "catalog", "connect", "canceled", ctx.Err())
		case <-time.After(retryInterval):
		}
	}
	if lastErr != nil {
		return nil, services.Wrap(services.ErrConnectivity, "catalog", "connect", "all attempts exhausted", lastErr)
	}

	store := &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	logger.Info("store connected",
		logging.String("database", cfg.Database),
		logging.String("collection", cfg.Collection))
	return store, nil
}

func connectOnce(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("ping: %w", err)
	}
	return client, nil
}

// One entry per (owner, file location); show containers carry no location
// and are excluded by the partial filter.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "mediaLocation", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"mediaLocation": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "metadata.tmdbId", Value: 1}},
		},
	})
	if err != nil {
		return services.Wrap(services.ErrConnectivity, "catalog", "ensure indexes", "", err)
	}
	return nil
}

// Ping verifies store reachability.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return services.Wrap(services.ErrConnectivity, "catalog", "ping", "", err)
	}
	return nil
}

// Close disconnects from the store.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return services.Wrap(services.ErrConnectivity, "catalog", "close", "", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, ownerID, id string) (*media.Entry, error) {
	return s.findOne(ctx, "find by id", bson.M{"ownerId": ownerID, "id": id})
}

// FindByLocation searches flat entries and nested season episodes in a
// single aggregation pass and returns the first hit from either branch.
func (s *MongoStore) FindByLocation(ctx context.Context, ownerID, location string) (*media.Entry, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ownerId": ownerID}}},
		{{Key: "$facet", Value: bson.M{
			"flat": bson.A{
				bson.M{"$match": bson.M{"mediaLocation": location}},
			},
			"nested": bson.A{
				bson.M{"$match": bson.M{"seasons.episodes.mediaLocation": location}},
				bson.M{"$unwind": "$seasons"},
				bson.M{"$unwind": "$seasons.episodes"},
				bson.M{"$match": bson.M{"seasons.episodes.mediaLocation": location}},
				bson.M{"$replaceRoot": bson.M{"newRoot": "$seasons.episodes"}},
			},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, services.Wrap(services.ErrConnectivity, "catalog", "find by location", "", err)
	}
	defer cursor.Close(ctx)

	var buckets []struct {
		Flat   []media.Entry `bson:"flat"`
		Nested []media.Entry `bson:"nested"`
	}
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, services.Wrap(services.ErrConnectivity, "catalog", "find by location", "decode", err)
	}
	if len(buckets) == 0 {
		return nil, nil
	}
	if len(buckets[0].Flat) > 0 {
		return &buckets[0].Flat[0], nil
	}
	if len(buckets[0].Nested) > 0 {
		return &buckets[0].Nested[0], nil
	}
	return nil, nil
}

func (s *MongoStore) FindShowByTMDBID(ctx context.Context, ownerID, tmdbID string) (*media.Entry, error) {
	filter := bson.M{
		"ownerId":         ownerID,
		"category":        string(media.CategoryTV),
		"metadata.tmdbId": tmdbID,
		"mediaLocation":   bson.M{"$exists": false},
	}
	return s.findOne(ctx, "find show by tmdb id", filter)
}

func (s *MongoStore) Insert(ctx context.Context, entry *media.Entry) (*media.Entry, error) {
	if _, err := s.collection.InsertOne(ctx, entry); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLocation, entry.FileLocation)
		}
		return nil, services.Wrap(services.ErrConnectivity, "catalog", "insert", "", err)
	}
	return entry.Clone(), nil
}

func (s *MongoStore) UpdateMetadata(ctx context.Context, ownerID, id string, metadata *media.Metadata) (*media.Entry, error) {
	result := s.collection.FindOneAndUpdate(ctx,
		bson.M{"ownerId": ownerID, "id": id},
		bson.M{"$set": bson.M{"metadata": metadata}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var updated media.Entry
	if err := result.Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, services.Wrap(services.ErrConnectivity, "catalog", "update metadata", "", err)
	}
	return &updated, nil
}

func (s *MongoStore) ReplaceSeasons(ctx context.Context, ownerID, showID string, seasons []media.Season, expectedRevision int64) (*media.Entry, error) {
	result := s.collection.FindOneAndUpdate(ctx,
		bson.M{"ownerId": ownerID, "id": showID, "revision": expectedRevision},
		bson.M{
			"$set": bson.M{"seasons": seasons},
			"$inc": bson.M{"revision": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var updated media.Entry
	err := result.Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, services.Wrap(services.ErrConnectivity, "catalog", "replace seasons", "", err)
	}

	// No document matched: either the show vanished or its revision moved.
	existing, findErr := s.FindByID(ctx, ownerID, showID)
	if findErr != nil {
		return nil, findErr
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, showID)
	}
	return nil, fmt.Errorf("%w: show %s expected revision %d, found %d",
		ErrRevisionConflict, showID, expectedRevision, existing.Revision)
}

func (s *MongoStore) Delete(ctx context.Context, ownerID, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"ownerId": ownerID, "id": id})
	if err != nil {
		return services.Wrap(services.ErrConnectivity, "catalog", "delete", "", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, op string, filter bson.M) (*media.Entry, error) {
	var entry media.Entry
	if err := s.collection.FindOne(ctx, filter).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrConnectivity, "catalog", op, "", err)
	}
	return &entry, nil
}
