package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/phillip/event-finder-go/geo"
	models "github.com/phillip/event-finder-go/models"
	"github.com/phillip/event-finder-go/repository"
)

const DefaultDeletionReason = "User initiated deletion"

// Geocoder resolves free text to coordinates; nil means unknown.
type Geocoder interface {
	Geocode(ctx context.Context, location string) *geo.Point
}

// Router computes road distance between two points.
type Router interface {
	Configured() bool
	RoadDistance(ctx context.Context, origin, dest geo.Point) (geo.Route, bool)
}

type CreateEventInput struct {
	Title                string     `json:"title" validate:"required"`
	Description          string     `json:"description"`
	Location             string     `json:"location" validate:"required"`
	Date                 *time.Time `json:"date" validate:"required"`
	LastRegistrationDate *time.Time `json:"lastRegistrationDate"`
	Category             string     `json:"category"`
	SubCategory          string     `json:"subCategory"`
	Fee                  float64    `json:"fee" validate:"gte=0"`
	ImageURL             string     `json:"imageURL"`
	InstagramLink        string     `json:"instagramLink"`
	WebsiteLink          string     `json:"websiteLink"`
	RegistrationLink     string     `json:"registrationLink"`
	MaxParticipants      int        `json:"maxParticipants" validate:"required,gt=0"`
}

// UpdateEventInput holds the fields an owner may change. Nil means unchanged.
type UpdateEventInput struct {
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
}

// ListFilter is a parsed event listing query. Near and RadiusKm are either
// both set or both unset.
type ListFilter struct {
	OwnerID  *primitive.ObjectID
	Location string
	Near     *geo.Point
	RadiusKm float64
}

type EventService struct {
	events   repository.EventRepository
	archive  repository.ArchiveRepository
	users    *UserService
	geocoder Geocoder
	router   Router
	log      *zap.Logger
	now      func() time.Time
}

func NewEventService(
	events repository.EventRepository,
	archive repository.ArchiveRepository,
	users *UserService,
	geocoder Geocoder,
	router Router,
	log *zap.Logger,
) *EventService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventService{
		events:   events,
		archive:  archive,
		users:    users,
		geocoder: geocoder,
		router:   router,
		log:      log.Named("events"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// parseEventID folds malformed ids into not-found.
func parseEventID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, newError(ErrNotFound, "Event not found.")
	}
	return oid, nil
}

func (s *EventService) geocode(ctx context.Context, location string) (*float64, *float64) {
	p := s.geocoder.Geocode(ctx, location)
	if p == nil {
		return nil, nil
	}
	lat, lon := p.Lat, p.Lon
	return &lat, &lon
}

func (s *EventService) Create(ctx context.Context, caller *primitive.ObjectID, in CreateEventInput) (*models.Event, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	lat, lon := s.geocode(ctx, in.Location)

	now := s.now()
	event := &models.Event{
		ID:                   primitive.NewObjectID(),
		OwnerID:              *caller,
		Title:                in.Title,
		Description:          in.Description,
		Location:             in.Location,
		Date:                 *in.Date,
		LastRegistrationDate: in.LastRegistrationDate,
		Category:             in.Category,
		SubCategory:          in.SubCategory,
		Fee:                  in.Fee,
		ImageURL:             in.ImageURL,
		InstagramLink:        in.InstagramLink,
		WebsiteLink:          in.WebsiteLink,
		RegistrationLink:     in.RegistrationLink,
		MaxParticipants:      in.MaxParticipants,
		CurrentParticipants:  0,
		LocationLat:          lat,
		LocationLon:          lon,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.events.Insert(ctx, event); err != nil {
		s.log.Error("insert event failed", zap.Error(err))
		return nil, persistenceError("Error creating event.", err)
	}

	if err := s.users.AppendCreatedEvent(ctx, *caller, event.ID); err != nil {
		s.log.Warn("createdEvents index not updated",
			zap.String("user_id", caller.Hex()),
			zap.String("event_id", event.ID.Hex()),
			zap.Error(err),
		)
	}

	return event, nil
}

func blank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) == ""
}

func (s *EventService) Update(ctx context.Context, caller *primitive.ObjectID, id string, in UpdateEventInput) (*models.Event, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	eventID, err := parseEventID(id)
	if err != nil {
		return nil, err
	}

	existing, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "Event not found.")
		}
		return nil, persistenceError("Failed to update event.", err)
	}
	if err := RequireOwner(*caller, existing.OwnerID); err != nil {
		return nil, err
	}

	var missing []string
	if blank(in.Title) {
		missing = append(missing, "title")
	}
	if blank(in.Location) {
		missing = append(missing, "location")
	}
	if in.Date != nil && in.Date.IsZero() {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return nil, newError(ErrValidation, "Missing required fields: %s.", strings.Join(missing, ", "))
	}
	if in.MaxParticipants != nil && *in.MaxParticipants <= 0 {
		return nil, newError(ErrValidation, "Invalid fields: maxParticipants.")
	}
	if in.Fee != nil && *in.Fee < 0 {
		return nil, newError(ErrValidation, "Invalid fields: fee.")
	}

	u := repository.EventUpdate{
		Title:                trimmed(in.Title),
		Description:          in.Description,
		Location:             trimmed(in.Location),
		Date:                 in.Date,
		LastRegistrationDate: in.LastRegistrationDate,
		Category:             in.Category,
		SubCategory:          in.SubCategory,
		Fee:                  in.Fee,
		ImageURL:             in.ImageURL,
		InstagramLink:        in.InstagramLink,
		WebsiteLink:          in.WebsiteLink,
		RegistrationLink:     in.RegistrationLink,
		MaxParticipants:      in.MaxParticipants,
		UpdatedAt:            s.now(),
	}
	if u.Empty() {
		return nil, newError(ErrValidation, "No fields to update.")
	}

	// A new location text always replaces the coordinates, with nil if the
	// lookup fails, so old coordinates never outlive their text.
	if u.Location != nil && *u.Location != existing.Location {
		u.SetCoordinates = true
		u.LocationLat, u.LocationLon = s.geocode(ctx, *u.Location)
	}

	updated, err := s.events.UpdateOwned(ctx, eventID, *caller, u)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "Event not found.")
		}
		s.log.Error("update event failed", zap.String("event_id", id), zap.Error(err))
		return nil, persistenceError("Failed to update event.", err)
	}
	return updated, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// Delete archives the event and only then removes it. Absent and not-owned
// events are indistinguishable to the caller.
func (s *EventService) Delete(ctx context.Context, caller *primitive.ObjectID, id, reason string) (*models.DeletedEvent, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	eventID, err := parseEventID(id)
	if err != nil {
		return nil, err
	}

	notFound := newError(ErrNotFound, "Event not found or user unauthorized to delete.")

	snapshot, err := s.events.FindOwned(ctx, eventID, *caller)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound
		}
		return nil, persistenceError("Failed to delete and archive event.", err)
	}

	if strings.TrimSpace(reason) == "" {
		reason = DefaultDeletionReason
	}
	now := s.now()
	record := &models.DeletedEvent{
		OriginalEvent:   *snapshot,
		OriginalEventID: eventID,
		DeletedByID:     *caller,
		DeletedAt:       now,
		Reason:          reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := s.archive.Archive(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent delete archived it first and owns the removal.
			if _, ferr := s.archive.FindByOriginalID(ctx, eventID); ferr == nil {
				s.log.Warn("event already archived by a concurrent delete", zap.String("event_id", id))
				return nil, notFound
			}
			s.log.Error("invariant violation: duplicate archive without a prior record",
				zap.String("event_id", id), zap.Error(err))
		} else {
			s.log.Error("archive event failed", zap.String("event_id", id), zap.Error(err))
		}
		return nil, persistenceError("Failed to delete and archive event.", err)
	}

	deleted, err := s.events.Delete(ctx, eventID)
	if err != nil {
		s.log.Error("delete archived event failed",
			zap.String("event_id", id),
			zap.String("archive_id", record.ID.Hex()),
			zap.Error(err),
		)
		return nil, persistenceError("Failed to delete and archive event.", err)
	}
	if !deleted {
		return nil, notFound
	}

	if err := s.users.RemoveCreatedEvent(ctx, *caller, eventID); err != nil {
		s.log.Warn("createdEvents index not updated",
			zap.String("user_id", caller.Hex()),
			zap.String("event_id", id),
			zap.Error(err),
		)
	}

	return record, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	eventID, err := parseEventID(id)
	if err != nil {
		return nil, err
	}
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "Event not found.")
		}
		return nil, persistenceError("Error retrieving event.", err)
	}
	return event, nil
}

// List applies owner and location filters in the store, then the radius
// filter in memory. Events without coordinates never match a radius filter.
func (s *EventService) List(ctx context.Context, f ListFilter) ([]models.Event, error) {
	events, err := s.events.Find(ctx, repository.EventFilter{
		OwnerID:  f.OwnerID,
		Location: f.Location,
	})
	if err != nil {
		s.log.Error("list events failed", zap.Error(err))
		return nil, persistenceError("Error fetching events list.", err)
	}

	if f.Near == nil {
		return events, nil
	}

	filtered := events[:0]
	for _, e := range events {
		if !e.HasCoordinates() {
			continue
		}
		if f.Near.Within(geo.Point{Lat: *e.LocationLat, Lon: *e.LocationLon}, f.RadiusKm) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// RoadDistance reports the road distance from user to the event location.
func (s *EventService) RoadDistance(ctx context.Context, id string, user geo.Point) (geo.Route, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return geo.Route{}, err
	}
	if !event.HasCoordinates() {
		return geo.Route{}, newError(ErrNotFound, "Event not found or coordinates missing.")
	}
	if !s.router.Configured() {
		return geo.Route{}, newError(ErrProviderDegraded, "Server Error: routing provider is not configured.")
	}

	route, ok := s.router.RoadDistance(ctx, user, geo.Point{Lat: *event.LocationLat, Lon: *event.LocationLon})
	if !ok {
		return geo.Route{}, newError(ErrProviderDegraded, "Could not calculate road distance.")
	}
	return route, nil
}

func parseCoordinate(name, raw string, min, max float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < min || v > max {
		return 0, newError(ErrValidation, "Invalid %s: must be a number between %g and %g.", name, min, max)
	}
	return v, nil
}

// ParseListFilter validates raw query values. Any geo value that is present
// must be numeric; the radius filter applies only when all three are present.
func ParseListFilter(ownerID, location, userLat, userLon, radius string) (ListFilter, error) {
	var f ListFilter

	if ownerID = strings.TrimSpace(ownerID); ownerID != "" {
		oid, err := primitive.ObjectIDFromHex(ownerID)
		if err != nil {
			return f, newError(ErrValidation, "Invalid ownerId.")
		}
		f.OwnerID = &oid
	}
	f.Location = strings.TrimSpace(location)

	var (
		lat, lon, r float64
		err         error
	)
	if userLat != "" {
		if lat, err = parseCoordinate("userLat", userLat, -90, 90); err != nil {
			return f, err
		}
	}
	if userLon != "" {
		if lon, err = parseCoordinate("userLon", userLon, -180, 180); err != nil {
			return f, err
		}
	}
	if radius != "" {
		if r, err = parseCoordinate("radius", radius, 0, 2*math.Pi*geo.EarthRadiusKm); err != nil {
			return f, err
		}
	}

	if userLat != "" && userLon != "" && radius != "" {
		f.Near = &geo.Point{Lat: lat, Lon: lon}
		f.RadiusKm = r
	}
	return f, nil
}

// ParseUserPoint validates the coordinates for the road distance endpoint.
func ParseUserPoint(userLat, userLon string) (geo.Point, error) {
	if strings.TrimSpace(userLat) == "" || strings.TrimSpace(userLon) == "" {
		return geo.Point{}, newError(ErrValidation, "User coordinates are required for road distance calculation.")
	}
	lat, err := parseCoordinate("userLat", userLat, -90, 90)
	if err != nil {
		return geo.Point{}, err
	}
	lon, err := parseCoordinate("userLon", userLon, -180, 180)
	if err != nil {
		return geo.Point{}, err
	}
	return geo.Point{Lat: lat, Lon: lon}, nil
}
