package repository

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	models "github.com/phillip/event-finder-go/models"
)

// EventUpdate is a partial update. Nil fields are left untouched; _id and
// ownerId have no field here and so can never change.
type EventUpdate struct {
	Title                *string
	Description          *string
	Location             *string
	Date                 *time.Time
	LastRegistrationDate *time.Time
	Category             *string
	SubCategory          *string
	Fee                  *float64
	ImageURL             *string
	InstagramLink        *string
	WebsiteLink          *string
	RegistrationLink     *string
	MaxParticipants      *int

	// SetCoordinates overwrites both coordinates, including with nil.
	SetCoordinates bool
	LocationLat    *float64
	LocationLon    *float64

	UpdatedAt time.Time
}

// Empty reports whether u changes nothing besides the timestamp.
func (u EventUpdate) Empty() bool {
	return len(u.setDoc()) == 0
}

// SetDoc renders u as a $set document.
func (u EventUpdate) SetDoc() bson.M {
	set := u.setDoc()
	set["updatedAt"] = u.UpdatedAt
	return set
}

func (u EventUpdate) setDoc() bson.M {
	set := bson.M{}
	putString := func(key string, v *string) {
		if v != nil {
			set[key] = *v
		}
	}
	putString("title", u.Title)
	putString("description", u.Description)
	putString("location", u.Location)
	putString("category", u.Category)
	putString("subCategory", u.SubCategory)
	putString("imageURL", u.ImageURL)
	putString("instagramLink", u.InstagramLink)
	putString("websiteLink", u.WebsiteLink)
	putString("registrationLink", u.RegistrationLink)

	if u.Date != nil {
		set["date"] = *u.Date
	}
	if u.LastRegistrationDate != nil {
		set["lastRegistrationDate"] = *u.LastRegistrationDate
	}
	if u.Fee != nil {
		set["fee"] = *u.Fee
	}
	if u.MaxParticipants != nil {
		set["maxParticipants"] = *u.MaxParticipants
	}
	if u.SetCoordinates {
		set["locationLat"] = u.LocationLat
		set["locationLon"] = u.LocationLon
	}
	return set
}

// Apply mutates e in place the same way SetDoc would in the database.
func (u EventUpdate) Apply(e *models.Event) {
	assign := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	assign(&e.Title, u.Title)
	assign(&e.Description, u.Description)
	assign(&e.Location, u.Location)
	assign(&e.Category, u.Category)
	assign(&e.SubCategory, u.SubCategory)
	assign(&e.ImageURL, u.ImageURL)
	assign(&e.InstagramLink, u.InstagramLink)
	assign(&e.WebsiteLink, u.WebsiteLink)
	assign(&e.RegistrationLink, u.RegistrationLink)

	if u.Date != nil {
		e.Date = *u.Date
	}
	if u.LastRegistrationDate != nil {
		t := *u.LastRegistrationDate
		e.LastRegistrationDate = &t
	}
	if u.Fee != nil {
		e.Fee = *u.Fee
	}
	if u.MaxParticipants != nil {
		e.MaxParticipants = *u.MaxParticipants
	}
	if u.SetCoordinates {
		e.LocationLat = copyFloat(u.LocationLat)
		e.LocationLon = copyFloat(u.LocationLon)
	}
	e.UpdatedAt = u.UpdatedAt
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
