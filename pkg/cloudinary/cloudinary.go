package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service uploads course thumbnails to Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// UploadThumbnail stores the course thumbnail under a stable public ID so a
// re-upload replaces the previous image instead of accumulating orphans.
func (s *Service) UploadThumbnail(ctx context.Context, courseID uint, filename string, reader io.Reader) (string, error) {
	if courseID == 0 {
		return "", fmt.Errorf("course id is required")
	}

	params := uploader.UploadParams{
		Folder:       strings.Trim(s.folder, "/"),
		PublicID:     thumbnailPublicID(courseID),
		ResourceType: "image",
		Overwrite:    api.Bool(true),
		Invalidate:   api.Bool(true),
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload thumbnail: %w", err)
	}

	s.logger.Info().
		Uint("course_id", courseID).
		Str("public_id", result.PublicID).
		Str("filename", filepath.Base(filename)).
		Msg("course thumbnail uploaded")

	return result.SecureURL, nil
}

func thumbnailPublicID(courseID uint) string {
	return fmt.Sprintf("course-%d-thumbnail", courseID)
}
