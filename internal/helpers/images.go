package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const (
	AvatarFolder = "avatars"
	EventsFolder = "events"
)

type UploadedImage struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// ImageStore uploads and removes images. file is anything Cloudinary accepts
// as a source: a remote URL, a data URI, or an io.Reader.
type ImageStore interface {
	UploadImage(ctx context.Context, file interface{}, folder string) (*UploadedImage, error)
	DeleteImage(ctx context.Context, publicID string) error
}

type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
	tag string
}

func NewCloudinaryStore(cld *cloudinary.Cloudinary) *CloudinaryStore {
	return &CloudinaryStore{cld: cld, tag: "campus-events"}
}

func (s *CloudinaryStore) UploadImage(ctx context.Context, file interface{}, folder string) (*UploadedImage, error) {
	if s.cld == nil {
		return nil, errors.New("cloudinary is not configured")
	}
	if str, ok := file.(string); ok && strings.TrimSpace(str) == "" {
		return nil, errors.New("empty image source")
	}

	res, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder: folder,
		Tags:   []string{s.tag},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %v", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("failed to upload image: %s", res.Error.Message)
	}
	return &UploadedImage{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

func (s *CloudinaryStore) DeleteImage(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	if s.cld == nil {
		return errors.New("cloudinary is not configured")
	}
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %v", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("failed to delete image %s: %s", publicID, res.Error.Message)
	}
	return nil
}
