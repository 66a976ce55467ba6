package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const (
	VerificationFolder = "verification_documents"

	uploadTimeout = 60 * time.Second
	deleteTimeout = 30 * time.Second
)

var ErrStorageUnconfigured = errors.New("document storage is not configured")

// CloudinaryStore keeps uploaded documents in Cloudinary.
type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryStore returns a store for the given account. Missing
// credentials yield a store whose calls fail with ErrStorageUnconfigured.
func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return &CloudinaryStore{}, nil
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config error: %w", err)
	}
	return &CloudinaryStore{cld: cld}, nil
}

func (s *CloudinaryStore) Configured() bool { return s != nil && s.cld != nil }

// UploadVerificationDocument stores file as <owner>-<unixMillis> in the
// verification folder and returns its secure URL.
func (s *CloudinaryStore) UploadVerificationDocument(ctx context.Context, owner string, file io.Reader) (string, error) {
	if !s.Configured() {
		return "", ErrStorageUnconfigured
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	resp, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       VerificationFolder,
		PublicID:     fmt.Sprintf("%s-%d", owner, time.Now().UnixMilli()),
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("upload error: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload error: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

// Delete removes a previously uploaded file given its delivery URL.
func (s *CloudinaryStore) Delete(ctx context.Context, fileURL string) error {
	if !s.Configured() {
		return ErrStorageUnconfigured
	}

	resourceType, publicID, err := extractPublicID(fileURL)
	if err != nil {
		return fmt.Errorf("could not extract public ID: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	_, err = s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// extractPublicID splits a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712/verification_documents/abc.pdf
// into its resource type and public id. Raw resources keep their extension.
func extractPublicID(fileURL string) (string, string, error) {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", "", err
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	upload := -1
	for i, p := range parts {
		if p == "upload" {
			upload = i
			break
		}
	}
	if upload < 1 || upload == len(parts)-1 {
		return "", "", errors.New("invalid cloudinary URL format")
	}

	resourceType := parts[upload-1]
	rest := parts[upload+1:]
	if len(rest) > 1 && versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}

	publicID := path.Join(rest...)
	if resourceType != "raw" {
		publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	}
	return resourceType, publicID, nil
}
