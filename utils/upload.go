package utils

import (
	"errors"
	"mime"
	"mime/multipart"
	"strings"
)

const MaxDocumentSize = 5 << 20

var (
	ErrDocumentTooLarge = errors.New("document exceeds 5 MB")
	ErrDocumentType     = errors.New("document must be an image or a PDF")
)

// CheckDocument enforces the size and type limits for verification uploads.
func CheckDocument(fh *multipart.FileHeader) error {
	if fh.Size > MaxDocumentSize {
		return ErrDocumentTooLarge
	}
	mediaType, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil {
		return ErrDocumentType
	}
	if strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf" {
		return nil
	}
	return ErrDocumentType
}
