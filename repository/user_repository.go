package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	models "github.com/phillip/event-finder-go/models"
)

type MongoUserRepository struct {
	col *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{col: db.Collection(UsersCollection)}
}

func (r *MongoUserRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M, upsert bool) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetUpsert(upsert)

	var user models.User
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpsertByGoogleID overwrites the provider-owned profile fields on every
// login and creates the user on first login.
func (r *MongoUserRepository) UpsertByGoogleID(ctx context.Context, identity models.Identity, now time.Time) (*models.User, error) {
	update := bson.M{
		"$set": bson.M{
			"displayName":  identity.DisplayName,
			"email":        identity.Email,
			"profilePhoto": identity.ProfilePhoto,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"googleId":        identity.Subject,
			"createdEvents":   bson.A{},
			"verifiedProfile": false,
			"createdAt":       now,
		},
	}
	return r.findOneAndUpdate(ctx, bson.M{"googleId": identity.Subject}, update, true)
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var user models.User
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserRepository) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) AddCreatedEvent(ctx context.Context, userID, eventID primitive.ObjectID) error {
	return r.updateByID(ctx, userID, bson.M{
		"$addToSet": bson.M{"createdEvents": eventID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoUserRepository) RemoveCreatedEvent(ctx context.Context, userID, eventID primitive.ObjectID) error {
	return r.updateByID(ctx, userID, bson.M{
		"$pull": bson.M{"createdEvents": eventID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoUserRepository) SetCreatedEvents(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) (*models.User, error) {
	if ids == nil {
		ids = []primitive.ObjectID{}
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{"createdEvents": ids, "updatedAt": time.Now().UTC()},
	}, false)
}

// SetVerification stores a new submission and always resets approval.
func (r *MongoUserRepository) SetVerification(ctx context.Context, userID primitive.ObjectID, details models.VerificationDetails) (*models.User, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{
			"verificationDetails": details,
			"verifiedProfile":     false,
			"updatedAt":           time.Now().UTC(),
		},
	}, false)
}
