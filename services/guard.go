package services

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequireAuthenticated fails with ErrUnauthorized when no caller was resolved.
func RequireAuthenticated(caller *primitive.ObjectID) error {
	if caller == nil || caller.IsZero() {
		return newError(ErrUnauthorized, "Unauthorized. Must be logged in.")
	}
	return nil
}

// RequireOwner fails with ErrForbidden unless caller owns the resource.
func RequireOwner(caller, owner primitive.ObjectID) error {
	if caller.IsZero() || caller != owner {
		return newError(ErrForbidden, "Forbidden. You are not the owner of this event.")
	}
	return nil
}
