package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Event struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	OwnerID              primitive.ObjectID `bson:"ownerId" json:"ownerId"` // immutable after creation
	Title                string             `bson:"title" json:"title"`
	Description          string             `bson:"description" json:"description"`
	Location             string             `bson:"location" json:"location"`
	Date                 time.Time          `bson:"date" json:"date"`
	LastRegistrationDate *time.Time         `bson:"lastRegistrationDate,omitempty" json:"lastRegistrationDate,omitempty"`
	Category             string             `bson:"category,omitempty" json:"category,omitempty"`
	SubCategory          string             `bson:"subCategory,omitempty" json:"subCategory,omitempty"`
	Fee                  float64            `bson:"fee" json:"fee"`
	ImageURL             string             `bson:"imageURL,omitempty" json:"imageURL,omitempty"`
	InstagramLink        string             `bson:"instagramLink,omitempty" json:"instagramLink,omitempty"`
	WebsiteLink          string             `bson:"websiteLink,omitempty" json:"websiteLink,omitempty"`
	RegistrationLink     string             `bson:"registrationLink,omitempty" json:"registrationLink,omitempty"`
	MaxParticipants      int                `bson:"maxParticipants" json:"maxParticipants"`
	CurrentParticipants  int                `bson:"currentParticipants" json:"currentParticipants"`

	// Filled by the geocoder; nil when the location could not be resolved.
	LocationLat *float64 `bson:"locationLat" json:"locationLat"`
	LocationLon *float64 `bson:"locationLon" json:"locationLon"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasCoordinates reports whether both coordinates were resolved.
func (e *Event) HasCoordinates() bool {
	return e.LocationLat != nil && e.LocationLon != nil
}

func (e Event) Version() (primitive.ObjectID, time.Time) {
	return e.ID, e.UpdatedAt
}

// DeletedEvent is the archive snapshot written before an event is removed.
type DeletedEvent struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	OriginalEvent   Event              `bson:"originalEvent" json:"originalEvent"`
	OriginalEventID primitive.ObjectID `bson:"originalEventId" json:"originalEventId"`
	DeletedByID     primitive.ObjectID `bson:"deletedById" json:"deletedById"`
	DeletedAt       time.Time          `bson:"deletedAt" json:"deletedAt"`
	Reason          string             `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
