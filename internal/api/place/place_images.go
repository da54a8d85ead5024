package place

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/easytrip-api/internal/imagehost"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

// Invalidator drops cached public responses after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// NoopInvalidator is used when response caching is off.
type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(context.Context) error { return nil }

// ImageUpload is an image received with an admin request.
type ImageUpload struct {
	File     io.Reader
	Filename string
	Caption  string
}

var _ imagehost.Sink = (*ImageSink)(nil)

// ImageSink stores hosted image URLs on places once an upload finished.
type ImageSink struct {
	repo        Repository
	invalidator Invalidator
	logger      *slog.Logger
}

func NewImageSink(repo Repository, invalidator Invalidator, logger *slog.Logger) *ImageSink {
	if invalidator == nil {
		invalidator = NoopInvalidator{}
	}
	return &ImageSink{repo: repo, invalidator: invalidator, logger: logger}
}

func (s *ImageSink) ApplyUpload(ctx context.Context, job imagehost.Job, res imagehost.Result) error {
	var err error
	switch job.Kind {
	case imagehost.KindPrimary:
		err = s.repo.SetPrimaryImage(ctx, job.PlaceID, res.URL)
	case imagehost.KindSecondary:
		_, err = s.repo.AddImage(ctx, job.PlaceID, res.URL, job.Caption)
	default:
		err = fmt.Errorf("unknown image kind %q", job.Kind)
	}
	if err != nil {
		return err
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to invalidate response cache", slog.String("method", "ApplyUpload"), slog.Any("error", err))
	}
	return nil
}

var allowedImageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// stageUpload copies the upload into a temporary file owned by the image job.
func stageUpload(dir string, up ImageUpload) (string, error) {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !allowedImageExts[ext] {
		return "", fmt.Errorf("%w: unsupported image type %q", types.ErrValidation, ext)
	}
	f, err := os.CreateTemp(dir, "place-*"+ext)
	if err != nil {
		return "", fmt.Errorf("creating temporary image: %w", err)
	}
	if _, err = io.Copy(f, up.File); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing temporary image: %w", err)
	}
	if err = f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing temporary image: %w", err)
	}
	return f.Name(), nil
}
