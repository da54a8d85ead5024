// Package imagehost uploads place images to an external host and applies the
// result to the place once the upload finishes.
package imagehost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FACorreiaa/easytrip-api/config"
)

// ErrDisabled is returned by the disabled host.
var ErrDisabled = errors.New("image hosting is disabled")

// Options describe where the image lands on the host.
type Options struct {
	Folder   string   `json:"folder"`
	PublicID string   `json:"public_id"`
	Tags     []string `json:"tags,omitempty"`
}

// Result is the hosted image.
type Result struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Uploader pushes a local file to an image host.
type Uploader interface {
	Upload(ctx context.Context, localPath string, opts Options) (Result, error)
	Name() string
}

// New builds the uploader selected by cfg.Provider.
func New(cfg config.ImagesConfig, logger *slog.Logger) (Uploader, error) {
	switch strings.ToLower(cfg.Provider) {
	case "cloudinary":
		return NewCloudinary(cfg.Cloudinary.URL)
	case "s3":
		return NewS3(cfg)
	case "", "disabled":
		logger.Warn("Image hosting disabled, places will show the placeholder image")
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown image provider %q", cfg.Provider)
	}
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, Options) (Result, error) {
	return Result{}, ErrDisabled
}

func (Disabled) Name() string { return "disabled" }
