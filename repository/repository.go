package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/event-finder-go/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

const (
	EventsCollection        = "events"
	DeletedEventsCollection = "deleted_events"
	UsersCollection         = "users"

	opTimeout   = 5 * time.Second
	listTimeout = 10 * time.Second
)

// EventFilter narrows a listing at the store level.
type EventFilter struct {
	OwnerID  *primitive.ObjectID
	Location string // case-insensitive substring
}

type EventRepository interface {
	Insert(ctx context.Context, e *models.Event) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error)
	// FindOwned returns ErrNotFound both when the event is absent and when
	// owner does not match.
	FindOwned(ctx context.Context, id, owner primitive.ObjectID) (*models.Event, error)
	// UpdateOwned applies u only if the event is still owned by owner.
	UpdateOwned(ctx context.Context, id, owner primitive.ObjectID, u EventUpdate) (*models.Event, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	Find(ctx context.Context, f EventFilter) ([]models.Event, error)
	IDsByOwner(ctx context.Context, owner primitive.ObjectID) ([]primitive.ObjectID, error)
}

// ArchiveRepository is append-only.
type ArchiveRepository interface {
	Archive(ctx context.Context, d *models.DeletedEvent) (primitive.ObjectID, error)
	FindByOriginalID(ctx context.Context, eventID primitive.ObjectID) (*models.DeletedEvent, error)
}

type UserRepository interface {
	UpsertByGoogleID(ctx context.Context, identity models.Identity, now time.Time) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	AddCreatedEvent(ctx context.Context, userID, eventID primitive.ObjectID) error
	RemoveCreatedEvent(ctx context.Context, userID, eventID primitive.ObjectID) error
	SetCreatedEvents(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) (*models.User, error)
	SetVerification(ctx context.Context, userID primitive.ObjectID, details models.VerificationDetails) (*models.User, error)
}

var (
	_ EventRepository   = (*MongoEventRepository)(nil)
	_ ArchiveRepository = (*MongoArchiveRepository)(nil)
	_ UserRepository    = (*MongoUserRepository)(nil)
)
