package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/event-finder-go/geo"
	models "github.com/phillip/event-finder-go/models"
	"github.com/phillip/event-finder-go/repository"
	"github.com/phillip/event-finder-go/repository/repotest"
)

type fakeGeocoder struct {
	mu     sync.Mutex
	points map[string]geo.Point
	calls  []string
}

func (f *fakeGeocoder) Geocode(_ context.Context, location string) *geo.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, location)
	p, ok := f.points[location]
	if !ok {
		return nil
	}
	return &p
}

type fakeRouter struct {
	configured bool
	route      geo.Route
	ok         bool
}

func (f *fakeRouter) Configured() bool { return f.configured }

func (f *fakeRouter) RoadDistance(context.Context, geo.Point, geo.Point) (geo.Route, bool) {
	return f.route, f.ok
}

type fixture struct {
	events   *repotest.EventStore
	archive  *repotest.ArchiveStore
	users    *repotest.UserStore
	geocoder *fakeGeocoder
	router   *fakeRouter
	svc      *EventService
	userSvc  *UserService
}

func newFixture() *fixture {
	geocoder := &fakeGeocoder{points: map[string]geo.Point{
		"Bengaluru":   {Lat: 12.9716, Lon: 77.5946},
		"Mysuru":      {Lat: 12.2958, Lon: 76.6394},
		"Cubbon Park": {Lat: 12.988, Lon: 77.59},
		"Nandi Hills": {Lat: 13.42, Lon: 77.59},
	}}
	f := &fixture{
		events:   repotest.NewEventStore(),
		archive:  repotest.NewArchiveStore(),
		users:    repotest.NewUserStore(),
		geocoder: geocoder,
		router:   &fakeRouter{},
	}
	f.userSvc = NewUserService(f.users, f.events, nil)
	f.svc = NewEventService(f.events, f.archive, f.userSvc, f.geocoder, f.router, nil)
	return f
}

func (f *fixture) newUser(t *testing.T, sub string) primitive.ObjectID {
	t.Helper()
	u, err := f.userSvc.UpsertFromIdentity(context.Background(), models.Identity{Subject: sub, DisplayName: sub})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func meetup(location string) CreateEventInput {
	return CreateEventInput{
		Title:           "Meetup",
		Location:        location,
		Date:            date("2025-01-01"),
		MaxParticipants: 10,
	}
}

func ptr[T any](v T) *T { return &v }

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func TestCreateListDeleteScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u1 := f.newUser(t, "google-u1")

	event, err := f.svc.Create(ctx, &u1, meetup("Bengaluru"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if event.OwnerID != u1 {
		t.Errorf("ownerId = %s, want %s", event.OwnerID.Hex(), u1.Hex())
	}
	if event.CurrentParticipants != 0 {
		t.Errorf("currentParticipants = %d, want 0", event.CurrentParticipants)
	}
	if !event.HasCoordinates() {
		t.Error("expected geocoded coordinates")
	}

	user, _ := f.userSvc.Get(ctx, u1)
	if len(user.CreatedEvents) != 1 || user.CreatedEvents[0] != event.ID {
		t.Errorf("createdEvents = %v, want [%s]", user.CreatedEvents, event.ID.Hex())
	}

	list, err := f.svc.List(ctx, ListFilter{OwnerID: &u1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != event.ID {
		t.Fatalf("list by owner = %v, want exactly the created event", list)
	}

	record, err := f.svc.Delete(ctx, &u1, event.ID.Hex(), "")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if record.Reason != DefaultDeletionReason {
		t.Errorf("reason = %q", record.Reason)
	}

	_, err = f.svc.Get(ctx, event.ID.Hex())
	assertKind(t, err, ErrNotFound)

	records := f.archive.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 archive record, got %d", len(records))
	}
	if records[0].OriginalEventID != event.ID || records[0].DeletedByID != u1 {
		t.Errorf("archive record = %+v", records[0])
	}
	if records[0].OriginalEvent.Title != "Meetup" {
		t.Errorf("snapshot not stored: %+v", records[0].OriginalEvent)
	}

	user, _ = f.userSvc.Get(ctx, u1)
	if len(user.CreatedEvents) != 0 {
		t.Errorf("createdEvents after delete = %v, want empty", user.CreatedEvents)
	}
}

func TestCreateRequiresCaller(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), nil, meetup("Bengaluru"))
	assertKind(t, err, ErrUnauthorized)
	if f.events.Len() != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	u := f.newUser(t, "g")

	cases := map[string]func(*CreateEventInput){
		"missing title":    func(in *CreateEventInput) { in.Title = "   " },
		"missing location": func(in *CreateEventInput) { in.Location = "" },
		"missing date":     func(in *CreateEventInput) { in.Date = nil },
		"zero max":         func(in *CreateEventInput) { in.MaxParticipants = 0 },
		"negative max":     func(in *CreateEventInput) { in.MaxParticipants = -3 },
		"negative fee":     func(in *CreateEventInput) { in.Fee = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := meetup("Bengaluru")
			mutate(&in)
			_, err := f.svc.Create(context.Background(), &u, in)
			assertKind(t, err, ErrValidation)
		})
	}
	if f.events.Len() != 0 {
		t.Fatalf("invalid input must not be stored, got %d events", f.events.Len())
	}
}

func TestCreateValidationMessageNamesFields(t *testing.T) {
	f := newFixture()
	u := f.newUser(t, "g")
	_, err := f.svc.Create(context.Background(), &u, CreateEventInput{})
	want := "Missing required fields: title, location, date, maxParticipants."
	if got := Message(err); got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func TestCreateSucceedsWhenGeocodingFails(t *testing.T) {
	f := newFixture()
	u := f.newUser(t, "g")

	event, err := f.svc.Create(context.Background(), &u, meetup("Atlantis"))
	if err != nil {
		t.Fatalf("create must not fail on geocoding: %v", err)
	}
	if event.LocationLat != nil || event.LocationLon != nil {
		t.Fatalf("expected null coordinates, got %v,%v", event.LocationLat, event.LocationLon)
	}
	stored, err := f.svc.Get(context.Background(), event.ID.Hex())
	if err != nil {
		t.Fatalf("event should persist: %v", err)
	}
	if stored.HasCoordinates() {
		t.Fatal("stored event should have null coordinates")
	}
}

func TestCreateSurvivesIndexFailure(t *testing.T) {
	f := newFixture()
	u := f.newUser(t, "g")
	f.users.IndexErr = errors.New("transient")

	event, err := f.svc.Create(context.Background(), &u, meetup("Bengaluru"))
	if err != nil {
		t.Fatalf("index failure must not fail create: %v", err)
	}

	f.users.IndexErr = nil
	user, err := f.userSvc.RebuildCreatedEvents(context.Background(), &u)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(user.CreatedEvents) != 1 || user.CreatedEvents[0] != event.ID {
		t.Fatalf("rebuilt index = %v", user.CreatedEvents)
	}
}

func TestCreatePersistenceFailure(t *testing.T) {
	f := newFixture()
	u := f.newUser(t, "g")
	f.events.Err = errors.New("connection reset")

	_, err := f.svc.Create(context.Background(), &u, meetup("Bengaluru"))
	assertKind(t, err, ErrPersistence)
	if Message(err) == "connection reset" {
		t.Fatal("internal error leaked to message")
	}
}

func TestUpdateRegeocodesOnLocationChange(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.newUser(t, "g")
	event, _ := f.svc.Create(ctx, &u, meetup("Bengaluru"))

	updated, err := f.svc.Update(ctx, &u, event.ID.Hex(), UpdateEventInput{Location: ptr("Mysuru")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Location != "Mysuru" || *updated.LocationLat != 12.2958 {
		t.Fatalf("expected Mysuru coordinates, got %+v", updated)
	}

	updated, err = f.svc.Update(ctx, &u, event.ID.Hex(), UpdateEventInput{Location: ptr("Atlantis")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.LocationLat != nil || updated.LocationLon != nil {
		t.Fatal("stale coordinates survived a location change")
	}
}

func TestUpdateSkipsGeocodeWhenLocationUnchanged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.newUser(t, "g")
	event, _ := f.svc.Create(ctx, &u, meetup("Bengaluru"))
	calls := len(f.geocoder.calls)

	updated, err := f.svc.Update(ctx, &u, event.ID.Hex(), UpdateEventInput{
		Title:    ptr("Renamed"),
		Location: ptr("Bengaluru"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(f.geocoder.calls) != calls {
		t.Fatal("geocoder called for unchanged location")
	}
	if updated.Title != "Renamed" || !updated.HasCoordinates() {
		t.Fatalf("unexpected result %+v", updated)
	}
}

func TestUpdateOwnershipAndErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := f.newUser(t, "owner")
	other := f.newUser(t, "other")
	event, _ := f.svc.Create(ctx, &owner, meetup("Bengaluru"))

	_, err := f.svc.Update(ctx, &other, event.ID.Hex(), UpdateEventInput{Title: ptr("Hijacked")})
	assertKind(t, err, ErrForbidden)

	_, err = f.svc.Update(ctx, nil, event.ID.Hex(), UpdateEventInput{Title: ptr("x")})
	assertKind(t, err, ErrUnauthorized)

	_, err = f.svc.Update(ctx, &owner, primitive.NewObjectID().Hex(), UpdateEventInput{Title: ptr("x")})
	assertKind(t, err, ErrNotFound)

	_, err = f.svc.Update(ctx, &owner, "not-an-id", UpdateEventInput{Title: ptr("x")})
	assertKind(t, err, ErrNotFound)

	_, err = f.svc.Update(ctx, &owner, event.ID.Hex(), UpdateEventInput{Title: ptr("  ")})
	assertKind(t, err, ErrValidation)

	_, err = f.svc.Update(ctx, &owner, event.ID.Hex(), UpdateEventInput{})
	assertKind(t, err, ErrValidation)

	_, err = f.svc.Update(ctx, &owner, event.ID.Hex(), UpdateEventInput{MaxParticipants: ptr(0)})
	assertKind(t, err, ErrValidation)

	stored, _ := f.svc.Get(ctx, event.ID.Hex())
	if stored.Title != "Meetup" || stored.OwnerID != owner {
		t.Fatalf("event modified by rejected updates: %+v", stored)
	}
}

func TestDeleteByNonOwnerIsNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := f.newUser(t, "owner")
	other := f.newUser(t, "other")
	event, _ := f.svc.Create(ctx, &owner, meetup("Bengaluru"))

	_, err := f.svc.Delete(ctx, &other, event.ID.Hex(), "")
	assertKind(t, err, ErrNotFound)

	if _, err := f.svc.Get(ctx, event.ID.Hex()); err != nil {
		t.Fatalf("event must survive: %v", err)
	}
	if n := len(f.archive.Records()); n != 0 {
		t.Fatalf("no archive record expected, got %d", n)
	}
}

func TestDeleteNeverRemovesWithoutArchive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.newUser(t, "g")
	event, _ := f.svc.Create(ctx, &u, meetup("Bengaluru"))

	f.archive.Err = errors.New("disk full")
	_, err := f.svc.Delete(ctx, &u, event.ID.Hex(), "cancelled")
	assertKind(t, err, ErrPersistence)

	if _, err := f.svc.Get(ctx, event.ID.Hex()); err != nil {
		t.Fatalf("event deleted without archive: %v", err)
	}
}

func TestDeleteKeepsCustomReason(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.newUser(t, "g")
	event, _ := f.svc.Create(ctx, &u, meetup("Bengaluru"))

	record, err := f.svc.Delete(ctx, &u, event.ID.Hex(), "venue cancelled")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	stored, err := f.archive.FindByOriginalID(ctx, event.ID)
	if err != nil {
		t.Fatalf("archive lookup: %v", err)
	}
	if record.Reason != "venue cancelled" || stored.Reason != "venue cancelled" {
		t.Fatalf("reason not kept: %q / %q", record.Reason, stored.Reason)
	}
}

// slowArchive stands in for a store round-trip so that concurrent deletes
// all pass the ownership lookup before any of them archives.
type slowArchive struct {
	*repotest.ArchiveStore
	delay time.Duration
}

func (s slowArchive) Archive(ctx context.Context, d *models.DeletedEvent) (primitive.ObjectID, error) {
	time.Sleep(s.delay)
	return s.ArchiveStore.Archive(ctx, d)
}

func TestConcurrentDeletesArchiveOnce(t *testing.T) {
	f := newFixture()
	f.svc = NewEventService(f.events, slowArchive{f.archive, 20 * time.Millisecond}, f.userSvc, f.geocoder, f.router, nil)
	ctx := context.Background()
	u := f.newUser(t, "g")
	event, _ := f.svc.Create(ctx, &u, meetup("Bengaluru"))

	const n = 20
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Delete(ctx, &u, event.ID.Hex(), "")
		}(i)
	}
	wg.Wait()

	ok := 0
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrNotFound):
			t.Errorf("delete %d: losing call got %v, want not found", i, err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful delete, got %d", ok)
	}
	if n := len(f.archive.Records()); n != 1 {
		t.Fatalf("expected exactly one archive record, got %d", n)
	}
	if f.events.Len() != 0 {
		t.Fatal("event should be gone")
	}
}

// orphanDuplicate rejects every archive as a duplicate while holding no record.
type orphanDuplicate struct {
	*repotest.ArchiveStore
}

func (orphanDuplicate) Archive(context.Context, *models.DeletedEvent) (primitive.ObjectID, error) {
	return primitive.NilObjectID, repository.ErrDuplicate
}

func TestDeleteDuplicateWithoutRecordIsPersistenceFailure(t *testing.T) {
	f := newFixture()
	f.svc = NewEventService(f.events, orphanDuplicate{f.archive}, f.userSvc, f.geocoder, f.router, nil)
	ctx := context.Background()
	u := f.newUser(t, "g")
	event, _ := f.svc.Create(ctx, &u, meetup("Bengaluru"))

	if _, err := f.svc.Delete(ctx, &u, event.ID.Hex(), ""); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if f.events.Len() != 1 {
		t.Fatal("event must survive a failed archive")
	}
}

func TestListRadiusFilter(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.newUser(t, "g")

	a, _ := f.svc.Create(ctx, &u, meetup("Cubbon Park")) // ~2km from the query point
	b, _ := f.svc.Create(ctx, &u, meetup("Nandi Hills")) // ~50km
	c, _ := f.svc.Create(ctx, &u, meetup("Atlantis"))    // no coordinates

	list, err := f.svc.List(ctx, ListFilter{Near: &geo.Point{Lat: 12.97, Lon: 77.59}, RadiusKm: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("expected only A, got %d events", len(list))
	}

	list, _ = f.svc.List(ctx, ListFilter{Near: &geo.Point{Lat: 12.97, Lon: 77.59}, RadiusKm: 20000})
	for _, e := range list {
		if e.ID == c.ID {
			t.Fatal("event without coordinates matched a radius filter")
		}
	}
	if len(list) != 2 || list[0].ID == c.ID || list[1].ID == c.ID {
		t.Fatalf("expected A and B within a huge radius, got %d", len(list))
	}
	found := false
	for _, e := range list {
		found = found || e.ID == b.ID
	}
	if !found {
		t.Fatal("B missing from the wide radius result")
	}

	list, _ = f.svc.List(ctx, ListFilter{})
	if len(list) != 3 {
		t.Fatalf("unfiltered list should return all 3, got %d", len(list))
	}
}

func TestListLocationFilterIsCaseInsensitiveSubstring(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.newUser(t, "g")
	f.svc.Create(ctx, &u, meetup("Bengaluru"))
	f.svc.Create(ctx, &u, meetup("Mysuru"))

	list, err := f.svc.List(ctx, ListFilter{Location: "GALU"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Location != "Bengaluru" {
		t.Fatalf("unexpected result %v", list)
	}
}

func TestListCombinesOwnerAndGeo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u1 := f.newUser(t, "u1")
	u2 := f.newUser(t, "u2")
	mine, _ := f.svc.Create(ctx, &u1, meetup("Cubbon Park"))
	f.svc.Create(ctx, &u2, meetup("Cubbon Park"))

	list, _ := f.svc.List(ctx, ListFilter{OwnerID: &u1, Near: &geo.Point{Lat: 12.97, Lon: 77.59}, RadiusKm: 5})
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Fatalf("expected only u1's event, got %v", list)
	}
}

func TestParseListFilter(t *testing.T) {
	owner := primitive.NewObjectID()

	f, err := ParseListFilter(owner.Hex(), " Bengaluru ", "12.97", "77.59", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.OwnerID == nil || *f.OwnerID != owner || f.Location != "Bengaluru" {
		t.Fatalf("unexpected filter %+v", f)
	}
	if f.Near == nil || f.Near.Lat != 12.97 || f.RadiusKm != 5 {
		t.Fatalf("geo filter not applied: %+v", f)
	}

	f, err = ParseListFilter("", "", "12.97", "77.59", "")
	if err != nil || f.Near != nil {
		t.Fatalf("partial geo params must not apply a filter: %+v %v", f, err)
	}

	bad := [][5]string{
		{"", "", "abc", "77.59", "5"},
		{"", "", "12.97", "east", "5"},
		{"", "", "12.97", "77.59", "far"},
		{"", "", "12.97", "77.59", "-1"},
		{"", "", "NaN", "77.59", "5"},
		{"", "", "95", "77.59", "5"},
		{"", "", "abc", "", ""},
		{"nope", "", "", "", ""},
	}
	for _, b := range bad {
		if _, err := ParseListFilter(b[0], b[1], b[2], b[3], b[4]); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseListFilter(%q) = %v, want validation error", b, err)
		}
	}
}

func TestRoadDistance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.newUser(t, "g")
	located, _ := f.svc.Create(ctx, &u, meetup("Bengaluru"))
	unlocated, _ := f.svc.Create(ctx, &u, meetup("Atlantis"))
	user := geo.Point{Lat: 12.9, Lon: 77.5}

	_, err := f.svc.RoadDistance(ctx, located.ID.Hex(), user)
	assertKind(t, err, ErrProviderDegraded)

	f.router.configured = true
	_, err = f.svc.RoadDistance(ctx, located.ID.Hex(), user)
	assertKind(t, err, ErrProviderDegraded)

	f.router.ok = true
	f.router.route = geo.Route{DistanceKm: 12.3, DurationText: "30 mins"}
	route, err := f.svc.RoadDistance(ctx, located.ID.Hex(), user)
	if err != nil {
		t.Fatalf("road distance: %v", err)
	}
	if route.DistanceKm != 12.3 || route.DurationText != "30 mins" {
		t.Fatalf("unexpected route %+v", route)
	}

	_, err = f.svc.RoadDistance(ctx, unlocated.ID.Hex(), user)
	assertKind(t, err, ErrNotFound)

	_, err = f.svc.RoadDistance(ctx, primitive.NewObjectID().Hex(), user)
	assertKind(t, err, ErrNotFound)
}

func TestParseUserPoint(t *testing.T) {
	if _, err := ParseUserPoint("", "77.5"); !errors.Is(err, ErrValidation) {
		t.Errorf("missing lat: %v", err)
	}
	if _, err := ParseUserPoint("12.9", "x"); !errors.Is(err, ErrValidation) {
		t.Errorf("malformed lon: %v", err)
	}
	p, err := ParseUserPoint("12.9", "77.5")
	if err != nil || p.Lat != 12.9 || p.Lon != 77.5 {
		t.Errorf("got %+v, %v", p, err)
	}
}
