package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	models "github.com/phillip/event-finder-go/models"
	"github.com/phillip/event-finder-go/repository"
)

type VerificationInput struct {
	FullName     string `json:"fullName" validate:"required"`
	FatherName   string `json:"fatherName"`
	MobileNumber string `json:"mobileNumber" validate:"required"`
	FullAddress  string `json:"fullAddress"`
	DocumentURL  string `json:"document" validate:"required,url"`
}

type UserService struct {
	users  repository.UserRepository
	events repository.EventRepository
	log    *zap.Logger
	now    func() time.Time
}

func NewUserService(users repository.UserRepository, events repository.EventRepository, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{
		users:  users,
		events: events,
		log:    log.Named("users"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UpsertFromIdentity mirrors the provider profile onto the local user,
// creating it on first login. The provider always wins for these fields.
func (s *UserService) UpsertFromIdentity(ctx context.Context, identity models.Identity) (*models.User, error) {
	if strings.TrimSpace(identity.Subject) == "" {
		return nil, newError(ErrValidation, "Identity provider returned no subject.")
	}
	user, err := s.users.UpsertByGoogleID(ctx, identity, s.now())
	if err != nil {
		s.log.Error("upsert user failed", zap.String("google_id", identity.Subject), zap.Error(err))
		return nil, persistenceError("Failed to save user.", err)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "User not found.")
		}
		return nil, persistenceError("Failed to load user.", err)
	}
	return user, nil
}

func (s *UserService) AppendCreatedEvent(ctx context.Context, userID, eventID primitive.ObjectID) error {
	return s.users.AddCreatedEvent(ctx, userID, eventID)
}

func (s *UserService) RemoveCreatedEvent(ctx context.Context, userID, eventID primitive.ObjectID) error {
	return s.users.RemoveCreatedEvent(ctx, userID, eventID)
}

// RebuildCreatedEvents recomputes the createdEvents index from Event.ownerId.
func (s *UserService) RebuildCreatedEvents(ctx context.Context, caller *primitive.ObjectID) (*models.User, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	ids, err := s.events.IDsByOwner(ctx, *caller)
	if err != nil {
		s.log.Error("scan owned events failed", zap.String("user_id", caller.Hex()), zap.Error(err))
		return nil, persistenceError("Failed to rebuild created events.", err)
	}
	user, err := s.users.SetCreatedEvents(ctx, *caller, ids)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "User not found.")
		}
		return nil, persistenceError("Failed to rebuild created events.", err)
	}
	s.log.Info("createdEvents rebuilt", zap.String("user_id", caller.Hex()), zap.Int("count", len(ids)))
	return user, nil
}

// SubmitVerification records a verification request. It always resets
// verifiedProfile to false; approval happens elsewhere.
func (s *UserService) SubmitVerification(ctx context.Context, caller *primitive.ObjectID, in VerificationInput) (*models.VerificationDetails, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	in.FullName = strings.TrimSpace(in.FullName)
	in.MobileNumber = strings.TrimSpace(in.MobileNumber)
	if err := validateStruct(in); err != nil {
		return nil, newError(ErrValidation, "Missing mandatory fields or document.")
	}

	details := models.VerificationDetails{
		FullName:     in.FullName,
		FatherName:   strings.TrimSpace(in.FatherName),
		MobileNumber: in.MobileNumber,
		FullAddress:  strings.TrimSpace(in.FullAddress),
		DocumentURL:  in.DocumentURL,
		SubmittedAt:  s.now(),
	}

	user, err := s.users.SetVerification(ctx, *caller, details)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "User not found.")
		}
		s.log.Error("store verification failed", zap.String("user_id", caller.Hex()), zap.Error(err))
		return nil, persistenceError("Failed to process verification submission.", err)
	}

	s.log.Info("verification submitted", zap.String("user_id", user.ID.Hex()))
	return user.VerificationDetails, nil
}

// ValidateVerification checks the text fields before a document is uploaded.
func ValidateVerification(in VerificationInput) error {
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.MobileNumber) == "" {
		return newError(ErrValidation, "Missing mandatory fields or document.")
	}
	return nil
}
