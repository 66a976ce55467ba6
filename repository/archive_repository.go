package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	models "github.com/phillip/event-finder-go/models"
)

type MongoArchiveRepository struct {
	col *mongo.Collection
}

func NewMongoArchiveRepository(db *mongo.Database) *MongoArchiveRepository {
	return &MongoArchiveRepository{col: db.Collection(DeletedEventsCollection)}
}

// Archive inserts the snapshot. InsertOne is acknowledged by the default write
// concern before it returns, so the record is durable when err is nil.
func (r *MongoArchiveRepository) Archive(ctx context.Context, d *models.DeletedEvent) (primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, fmt.Errorf("%w: originalEventId %s", ErrDuplicate, d.OriginalEventID.Hex())
		}
		return primitive.NilObjectID, err
	}
	return d.ID, nil
}

func (r *MongoArchiveRepository) FindByOriginalID(ctx context.Context, eventID primitive.ObjectID) (*models.DeletedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var d models.DeletedEvent
	if err := r.col.FindOne(ctx, bson.M{"originalEventId": eventID}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
