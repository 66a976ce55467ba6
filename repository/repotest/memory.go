// Package repotest provides in-memory repositories with the same semantics as
// the Mongo ones, for tests.
package repotest

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/event-finder-go/models"
	"github.com/phillip/event-finder-go/repository"
)

type EventStore struct {
	mu     sync.Mutex
	events map[primitive.ObjectID]models.Event

	// Err, when set, is returned by every call.
	Err error
}

func NewEventStore() *EventStore {
	return &EventStore{events: make(map[primitive.ObjectID]models.Event)}
}

func cloneEvent(e models.Event) models.Event {
	if e.LocationLat != nil {
		v := *e.LocationLat
		e.LocationLat = &v
	}
	if e.LocationLon != nil {
		v := *e.LocationLon
		e.LocationLon = &v
	}
	if e.LastRegistrationDate != nil {
		v := *e.LastRegistrationDate
		e.LastRegistrationDate = &v
	}
	return e
}

func (s *EventStore) Insert(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if _, ok := s.events[e.ID]; ok {
		return repository.ErrDuplicate
	}
	s.events[e.ID] = cloneEvent(*e)
	return nil
}

func (s *EventStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	e, ok := s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneEvent(e)
	return &out, nil
}

func (s *EventStore) FindOwned(_ context.Context, id, owner primitive.ObjectID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	e, ok := s.events[id]
	if !ok || e.OwnerID != owner {
		return nil, repository.ErrNotFound
	}
	out := cloneEvent(e)
	return &out, nil
}

func (s *EventStore) UpdateOwned(_ context.Context, id, owner primitive.ObjectID, u repository.EventUpdate) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	e, ok := s.events[id]
	if !ok || e.OwnerID != owner {
		return nil, repository.ErrNotFound
	}
	u.Apply(&e)
	s.events[id] = e
	out := cloneEvent(e)
	return &out, nil
}

func (s *EventStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	if _, ok := s.events[id]; !ok {
		return false, nil
	}
	delete(s.events, id)
	return true, nil
}

func (s *EventStore) Find(_ context.Context, f repository.EventFilter) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	needle := strings.ToLower(f.Location)
	out := []models.Event{}
	for _, e := range s.events {
		if f.OwnerID != nil && e.OwnerID != *f.OwnerID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Location), needle) {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

func (s *EventStore) IDsByOwner(_ context.Context, owner primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var owned []models.Event
	for _, e := range s.events {
		if e.OwnerID == owner {
			owned = append(owned, e)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.Before(owned[j].CreatedAt)
		}
		return bytes.Compare(owned[i].ID[:], owned[j].ID[:]) < 0
	})
	ids := make([]primitive.ObjectID, 0, len(owned))
	for _, e := range owned {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// Len returns the number of live events.
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type ArchiveStore struct {
	mu      sync.Mutex
	records []models.DeletedEvent

	Err error
}

func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{}
}

func (s *ArchiveStore) Archive(_ context.Context, d *models.DeletedEvent) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return primitive.NilObjectID, s.Err
	}
	for _, r := range s.records {
		if r.OriginalEventID == d.OriginalEventID {
			return primitive.NilObjectID, fmt.Errorf("%w: originalEventId %s", repository.ErrDuplicate, d.OriginalEventID.Hex())
		}
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	rec := *d
	rec.OriginalEvent = cloneEvent(d.OriginalEvent)
	s.records = append(s.records, rec)
	return d.ID, nil
}

func (s *ArchiveStore) FindByOriginalID(_ context.Context, eventID primitive.ObjectID) (*models.DeletedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, r := range s.records {
		if r.OriginalEventID == eventID {
			out := r
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Records returns a copy of every archive record in insertion order.
func (s *ArchiveStore) Records() []models.DeletedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DeletedEvent(nil), s.records...)
}

type UserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User

	Err error
	// IndexErr only affects AddCreatedEvent and RemoveCreatedEvent.
	IndexErr error
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[primitive.ObjectID]models.User)}
}

func cloneUser(u models.User) models.User {
	u.CreatedEvents = append([]primitive.ObjectID{}, u.CreatedEvents...)
	if u.VerificationDetails != nil {
		v := *u.VerificationDetails
		u.VerificationDetails = &v
	}
	return u
}

// Put stores u as-is, assigning an id when missing.
func (s *UserStore) Put(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedEvents == nil {
		u.CreatedEvents = []primitive.ObjectID{}
	}
	s.users[u.ID] = cloneUser(u)
	return cloneUser(u)
}

func (s *UserStore) UpsertByGoogleID(_ context.Context, identity models.Identity, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for id, u := range s.users {
		if u.GoogleID == identity.Subject {
			u.DisplayName = identity.DisplayName
			u.Email = identity.Email
			u.ProfilePhoto = identity.ProfilePhoto
			u.UpdatedAt = now
			s.users[id] = u
			out := cloneUser(u)
			return &out, nil
		}
	}
	u := models.User{
		ID:            primitive.NewObjectID(),
		GoogleID:      identity.Subject,
		DisplayName:   identity.DisplayName,
		Email:         identity.Email,
		ProfilePhoto:  identity.ProfilePhoto,
		CreatedEvents: []primitive.ObjectID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.users[u.ID] = u
	out := cloneUser(u)
	return &out, nil
}

func (s *UserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (s *UserStore) AddCreatedEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if s.IndexErr != nil {
		return s.IndexErr
	}
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, id := range u.CreatedEvents {
		if id == eventID {
			return nil
		}
	}
	u.CreatedEvents = append(u.CreatedEvents, eventID)
	s.users[userID] = u
	return nil
}

func (s *UserStore) RemoveCreatedEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if s.IndexErr != nil {
		return s.IndexErr
	}
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	kept := u.CreatedEvents[:0:0]
	for _, id := range u.CreatedEvents {
		if id != eventID {
			kept = append(kept, id)
		}
	}
	u.CreatedEvents = kept
	s.users[userID] = u
	return nil
}

func (s *UserStore) SetCreatedEvents(_ context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.CreatedEvents = append([]primitive.ObjectID{}, ids...)
	s.users[userID] = u
	out := cloneUser(u)
	return &out, nil
}

func (s *UserStore) SetVerification(_ context.Context, userID primitive.ObjectID, details models.VerificationDetails) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := details
	u.VerificationDetails = &d
	u.VerifiedProfile = false
	s.users[userID] = u
	out := cloneUser(u)
	return &out, nil
}

var (
	_ repository.EventRepository   = (*EventStore)(nil)
	_ repository.ArchiveRepository = (*ArchiveStore)(nil)
	_ repository.UserRepository    = (*UserStore)(nil)
)
