package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/delish/storefront/internal/models"
)

const (
	storesPerPage   = 4
	searchLimit     = 5
	nearLimit       = 10
	nearMaxMeters   = 10000
	topStoresLimit  = 10
	slugRetryBudget = 3
)

// MongoStoreRepository is the MongoDB implementation of StoreRepository.
type MongoStoreRepository struct {
	stores *mongo.Collection
}

func NewMongoStoreRepository(database *mongo.Database) *MongoStoreRepository {
	return &MongoStoreRepository{stores: database.Collection("stores")}
}

func validateStore(store *models.Store) error {
	store.Name = strings.TrimSpace(store.Name)
	store.Description = strings.TrimSpace(store.Description)
	store.Location.Address = strings.TrimSpace(store.Location.Address)
	if store.Name == "" {
		return &models.ValidationError{Field: "name", Message: "please enter a store name"}
	}
	if len(store.Location.Coordinates) != 2 {
		return &models.ValidationError{Field: "location.coordinates", Message: "you must supply coordinates"}
	}
	if store.Location.Address == "" {
		return &models.ValidationError{Field: "location.address", Message: "you must supply an address"}
	}
	return nil
}

// nextSlug counts stores whose slug is the base or a numeric-suffixed variant
// (case-insensitive), excluding the store being updated, and derives the
// candidate slug from that count.
func (r *MongoStoreRepository) nextSlug(ctx context.Context, base string, exclude primitive.ObjectID) (string, error) {
	filter := bson.M{"slug": primitive.Regex{Pattern: slugPattern(base), Options: "i"}}
	if !exclude.IsZero() {
		filter["_id"] = bson.M{"$ne": exclude}
	}
	count, err := r.stores.CountDocuments(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("counting slug matches: %w", err)
	}
	return candidateSlug(base, count), nil
}

// Create inserts a new store with a deduplicated slug. The count-then-insert
// is racy on its own, so the unique slug index backs it up: a duplicate-key
// insert bumps the suffix and tries again.
func (r *MongoStoreRepository) Create(ctx context.Context, store *models.Store) error {
	if err := validateStore(store); err != nil {
		return err
	}
	store.ID = primitive.NewObjectID()
	store.CreatedAt = time.Now()
	store.Location.Type = "Point"
	if store.Tags == nil {
		store.Tags = []string{}
	}

	base := slugify(store.Name)
	for attempt := 0; attempt <= slugRetryBudget; attempt++ {
		// On retry the recount sees whichever store won the race, so the
		// candidate suffix moves past it.
		candidate, err := r.nextSlug(ctx, base, primitive.NilObjectID)
		if err != nil {
			return err
		}
		store.Slug = candidate
		_, err = r.stores.InsertOne(ctx, store)
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("inserting store: %w", err)
		}
	}
	return fmt.Errorf("could not allocate a unique slug for %q", store.Name)
}

// Update replaces the updatable fields and re-slugs only when the name changed.
// Authorization (author match) is the caller's responsibility.
func (r *MongoStoreRepository) Update(ctx context.Context, id primitive.ObjectID, changes *models.Store) (*models.Store, error) {
	if err := validateStore(changes); err != nil {
		return nil, err
	}
	existing, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes.Location.Type = "Point"
	set := bson.M{
		"name":        changes.Name,
		"description": changes.Description,
		"tags":        changes.Tags,
		"location":    changes.Location,
	}
	if changes.Photo != "" {
		set["photo"] = changes.Photo
	}

	reslug := changes.Name != existing.Name
	for attempt := 0; attempt <= slugRetryBudget; attempt++ {
		if reslug {
			candidate, err := r.nextSlug(ctx, slugify(changes.Name), id)
			if err != nil {
				return nil, err
			}
			set["slug"] = candidate
		}
		var updated models.Store
		err = r.stores.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err == nil {
			return &updated, nil
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		if !reslug || !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("updating store: %w", err)
		}
	}
	return nil, fmt.Errorf("could not allocate a unique slug for %q", changes.Name)
}

func (r *MongoStoreRepository) ByID(ctx context.Context, id primitive.ObjectID) (*models.Store, error) {
	var store models.Store
	err := r.stores.FindOne(ctx, bson.M{"_id": id}).Decode(&store)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding store: %w", err)
	}
	return &store, nil
}

func (r *MongoStoreRepository) ByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Store, error) {
	if len(ids) == 0 {
		return []models.Store{}, nil
	}
	cursor, err := r.stores.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("finding stores by ids: %w", err)
	}
	defer cursor.Close(ctx)
	var stores []models.Store
	if err := cursor.All(ctx, &stores); err != nil {
		return nil, fmt.Errorf("decoding stores: %w", err)
	}
	return stores, nil
}

// BySlug fetches one store with its author and reviews joined in, each review
// carrying its own author.
func (r *MongoStoreRepository) BySlug(ctx context.Context, slug string) (*models.Store, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"slug": slug}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "author",
			"foreignField": "_id",
			"as":           "authorUser",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$authorUser", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "reviews",
			"let":  bson.M{"storeId": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$store", "$$storeId"}}}},
				bson.M{"$lookup": bson.M{
					"from":         "users",
					"localField":   "author",
					"foreignField": "_id",
					"as":           "authorUser",
				}},
				bson.M{"$unwind": bson.M{"path": "$authorUser", "preserveNullAndEmptyArrays": true}},
				bson.M{"$sort": bson.M{"created": -1}},
			},
			"as": "reviews",
		}}},
	}
	cursor, err := r.stores.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("store by slug: %w", err)
	}
	defer cursor.Close(ctx)
	var stores []models.Store
	if err := cursor.All(ctx, &stores); err != nil {
		return nil, fmt.Errorf("decoding store: %w", err)
	}
	if len(stores) == 0 {
		return nil, models.ErrNotFound
	}
	return &stores[0], nil
}

// List returns one page of stores newest-first plus the totals. The page query
// and the count are independent, so they run in parallel.
func (r *MongoStoreRepository) List(ctx context.Context, page int64) (*models.StorePage, error) {
	if page < 1 {
		page = 1
	}
	skip := (page - 1) * storesPerPage

	storesChan := make(chan struct {
		stores []models.Store
		err    error
	}, 1)
	countChan := make(chan struct {
		count int64
		err   error
	}, 1)

	go func() {
		opts := options.Find().
			SetSkip(skip).
			SetLimit(storesPerPage).
			SetSort(bson.M{"created": -1})
		cursor, err := r.stores.Find(ctx, bson.M{}, opts)
		if err != nil {
			storesChan <- struct {
				stores []models.Store
				err    error
			}{nil, err}
			return
		}
		defer cursor.Close(ctx)
		var stores []models.Store
		err = cursor.All(ctx, &stores)
		storesChan <- struct {
			stores []models.Store
			err    error
		}{stores, err}
	}()

	go func() {
		count, err := r.stores.CountDocuments(ctx, bson.M{})
		countChan <- struct {
			count int64
			err   error
		}{count, err}
	}()

	storesResult := <-storesChan
	countResult := <-countChan
	if storesResult.err != nil {
		return nil, fmt.Errorf("listing stores: %w", storesResult.err)
	}
	if countResult.err != nil {
		return nil, fmt.Errorf("counting stores: %w", countResult.err)
	}

	pages := pageCount(countResult.count, storesPerPage)
	if len(storesResult.stores) == 0 && skip > 0 {
		last := pages
		if last < 1 {
			last = 1
		}
		return nil, &models.PageOutOfRangeError{Requested: page, LastPage: last}
	}
	if storesResult.stores == nil {
		storesResult.stores = []models.Store{}
	}
	return &models.StorePage{
		Stores: storesResult.stores,
		Page:   page,
		Pages:  pages,
		Count:  countResult.count,
	}, nil
}

func (r *MongoStoreRepository) ByTag(ctx context.Context, tag string) ([]models.Store, error) {
	filter := bson.M{"tags": bson.M{"$exists": true}}
	if tag != "" {
		filter = bson.M{"tags": tag}
	}
	cursor, err := r.stores.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("stores by tag: %w", err)
	}
	defer cursor.Close(ctx)
	var stores []models.Store
	if err := cursor.All(ctx, &stores); err != nil {
		return nil, fmt.Errorf("decoding stores: %w", err)
	}
	return stores, nil
}

// TagCounts groups stores by tag and counts them, most used first.
func (r *MongoStoreRepository) TagCounts(ctx context.Context) ([]models.TagCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$tags"}},
		{{Key: "$group", Value: bson.M{"_id": "$tags", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"count": -1}}},
	}
	cursor, err := r.stores.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("tag counts: %w", err)
	}
	defer cursor.Close(ctx)
	var tags []models.TagCount
	if err := cursor.All(ctx, &tags); err != nil {
		return nil, fmt.Errorf("decoding tag counts: %w", err)
	}
	return tags, nil
}

// Search runs a full-text query over name+description ranked by text score.
func (r *MongoStoreRepository) Search(ctx context.Context, query string) ([]models.Store, error) {
	opts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetLimit(searchLimit)
	cursor, err := r.stores.Find(ctx, bson.M{"$text": bson.M{"$search": query}}, opts)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer cursor.Close(ctx)
	var stores []models.Store
	if err := cursor.All(ctx, &stores); err != nil {
		return nil, fmt.Errorf("decoding search results: %w", err)
	}
	return stores, nil
}

// Near finds the closest stores within 10km, projected to the fields the map needs.
func (r *MongoStoreRepository) Near(ctx context.Context, lng, lat float64) ([]models.Store, error) {
	filter := bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": bson.A{lng, lat},
				},
				"$maxDistance": nearMaxMeters,
			},
		},
	}
	opts := options.Find().
		SetProjection(bson.M{"slug": 1, "name": 1, "description": 1, "location": 1, "photo": 1}).
		SetLimit(nearLimit)
	cursor, err := r.stores.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}
	defer cursor.Close(ctx)
	var stores []models.Store
	if err := cursor.All(ctx, &stores); err != nil {
		return nil, fmt.Errorf("decoding geo results: %w", err)
	}
	return stores, nil
}

// TopRated joins each store's reviews, keeps stores with at least two, and
// ranks them by average rating.
func (r *MongoStoreRepository) TopRated(ctx context.Context) ([]models.TopStore, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         "reviews",
			"localField":   "_id",
			"foreignField": "store",
			"as":           "reviews",
		}}},
		{{Key: "$match", Value: bson.M{"reviews.1": bson.M{"$exists": true}}}},
		{{Key: "$project", Value: bson.M{
			"photo":         "$$ROOT.photo",
			"name":          "$$ROOT.name",
			"slug":          "$$ROOT.slug",
			"reviews":       "$$ROOT.reviews",
			"averageRating": bson.M{"$avg": "$reviews.rating"},
		}}},
		{{Key: "$sort", Value: bson.M{"averageRating": -1}}},
		{{Key: "$limit", Value: topStoresLimit}},
	}
	cursor, err := r.stores.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("top rated: %w", err)
	}
	defer cursor.Close(ctx)
	var stores []models.TopStore
	if err := cursor.All(ctx, &stores); err != nil {
		return nil, fmt.Errorf("decoding top stores: %w", err)
	}
	return stores, nil
}

// pageCount is ceil(total/perPage).
func pageCount(total, perPage int64) int64 {
	return (total + perPage - 1) / perPage
}
