package repository

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	models "github.com/phillip/event-finder-go/models"
)

type MongoEventRepository struct {
	col *mongo.Collection
}

func NewMongoEventRepository(db *mongo.Database) *MongoEventRepository {
	return &MongoEventRepository{col: db.Collection(EventsCollection)}
}

func (r *MongoEventRepository) Insert(ctx context.Context, e *models.Event) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *MongoEventRepository) findOne(ctx context.Context, filter bson.M) (*models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var event models.Event
	if err := r.col.FindOne(ctx, filter).Decode(&event); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *MongoEventRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoEventRepository) FindOwned(ctx context.Context, id, owner primitive.ObjectID) (*models.Event, error) {
	return r.findOne(ctx, bson.M{"_id": id, "ownerId": owner})
}

func (r *MongoEventRepository) UpdateOwned(ctx context.Context, id, owner primitive.ObjectID, u EventUpdate) (*models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Event
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "ownerId": owner},
		bson.M{"$set": u.SetDoc()},
		opts,
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (r *MongoEventRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Find pushes owner and location filters to Mongo. The location text is
// matched literally, never as a user-supplied pattern.
func (r *MongoEventRepository) Find(ctx context.Context, f EventFilter) ([]models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	filter := bson.M{}
	if f.OwnerID != nil {
		filter["ownerId"] = *f.OwnerID
	}
	if f.Location != "" {
		filter["location"] = bson.M{"$regex": regexp.QuoteMeta(f.Location), "$options": "i"}
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []models.Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *MongoEventRepository) IDsByOwner(ctx context.Context, owner primitive.ObjectID) ([]primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"ownerId": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
