package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type VerificationDetails struct {
	FullName     string    `bson:"fullName" json:"fullName"`
	FatherName   string    `bson:"fatherName" json:"fatherName"`
	MobileNumber string    `bson:"mobileNumber" json:"mobileNumber"`
	FullAddress  string    `bson:"fullAddress" json:"fullAddress"`
	DocumentURL  string    `bson:"documentURL" json:"documentURL"`
	SubmittedAt  time.Time `bson:"submittedAt" json:"submittedAt"`
}

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	GoogleID     string             `bson:"googleId" json:"googleId"`
	DisplayName  string             `bson:"displayName" json:"displayName"`
	Email        string             `bson:"email" json:"email"`
	ProfilePhoto string             `bson:"profilePhoto" json:"profilePhoto"`

	LocationLat *float64 `bson:"locationLat,omitempty" json:"locationLat,omitempty"`
	LocationLon *float64 `bson:"locationLon,omitempty" json:"locationLon,omitempty"`

	// Derived index of events this user created. Event.OwnerID is authoritative.
	CreatedEvents []primitive.ObjectID `bson:"createdEvents" json:"createdEvents"`

	VerifiedProfile     bool                 `bson:"verifiedProfile" json:"verifiedProfile"`
	VerificationDetails *VerificationDetails `bson:"verificationDetails,omitempty" json:"verificationDetails,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Identity is the profile the identity provider reports on login.
type Identity struct {
	Subject      string
	DisplayName  string
	Email        string
	ProfilePhoto string
}
