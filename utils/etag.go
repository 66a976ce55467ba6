package utils

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag builds a weak validator for a single document.
func GenerateETag(id primitive.ObjectID, updatedAt time.Time) string {
	return fmt.Sprintf(`W/"%s-%d"`, id.Hex(), updatedAt.UnixNano())
}

// Versioned is anything with an identity and a modification time.
type Versioned interface {
	Version() (primitive.ObjectID, time.Time)
}

// ListETag hashes every member, so additions, edits and removals all change it.
func ListETag[T Versioned](items []T) string {
	h := sha1.New()
	var buf [8]byte
	for _, item := range items {
		id, updatedAt := item.Version()
		h.Write(id[:])
		binary.BigEndian.PutUint64(buf[:], uint64(updatedAt.UnixNano()))
		h.Write(buf[:])
	}
	return `W/"` + hex.EncodeToString(h.Sum(nil)) + `"`
}

// LastModified returns the latest modification time in items.
func LastModified[T Versioned](items []T) time.Time {
	var latest time.Time
	for _, item := range items {
		if _, t := item.Version(); t.After(latest) {
			latest = t
		}
	}
	return latest
}
