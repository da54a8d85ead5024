package imagehost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/easytrip-api/app/observability/metrics"
)

// Kind says what an uploaded image becomes.
type Kind string

const (
	KindPrimary   Kind = "primary"
	KindSecondary Kind = "secondary"
)

// Job is one pending upload. LocalPath is a temporary file owned by the job
// and removed once the job is processed.
type Job struct {
	PlaceID   int64   `json:"place_id"`
	Kind      Kind    `json:"kind"`
	LocalPath string  `json:"local_path"`
	Caption   string  `json:"caption,omitempty"`
	Options   Options `json:"options"`
}

func (j Job) Validate() error {
	if j.PlaceID < 1 {
		return fmt.Errorf("job has no place id")
	}
	if j.LocalPath == "" {
		return fmt.Errorf("job has no file")
	}
	if j.Kind != KindPrimary && j.Kind != KindSecondary {
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	return nil
}

// Sink stores the hosted URL on the place.
type Sink interface {
	ApplyUpload(ctx context.Context, job Job, res Result) error
}

// Dispatcher hands a job off for asynchronous processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
	Close(ctx context.Context) error
}

const uploadTimeout = 2 * time.Minute

// Processor runs jobs: upload, then apply. Failures are logged and leave the
// place without the image.
type Processor struct {
	uploader Uploader
	sink     Sink
	logger   *slog.Logger
}

func NewProcessor(uploader Uploader, sink Sink, logger *slog.Logger) *Processor {
	return &Processor{uploader: uploader, sink: sink, logger: logger}
}

func (p *Processor) Process(ctx context.Context, job Job) error {
	ctx, span := otel.Tracer("ImageHost").Start(ctx, "Process", trace.WithAttributes(
		attribute.Int64("place.id", job.PlaceID),
		attribute.String("image.kind", string(job.Kind)),
		attribute.String("image.provider", p.uploader.Name()),
	))
	defer span.End()

	l := p.logger.With(
		slog.String("method", "Process"),
		slog.Int64("placeID", job.PlaceID),
		slog.String("kind", string(job.Kind)),
	)
	defer func() {
		if err := os.Remove(job.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			l.WarnContext(ctx, "Failed to remove temporary image", slog.Any("error", err))
		}
	}()

	if err := job.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid job")
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	m := metrics.Get()
	res, err := p.uploader.Upload(ctx, job.LocalPath, job.Options)
	if errors.Is(err, ErrDisabled) {
		l.InfoContext(ctx, "Image upload skipped, hosting disabled")
		m.CountImageUpload(ctx, p.uploader.Name(), "skipped")
		span.SetStatus(codes.Ok, "Upload skipped")
		return nil
	}
	if err != nil {
		l.ErrorContext(ctx, "Image upload failed", slog.Any("error", err))
		m.CountImageUpload(ctx, p.uploader.Name(), "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upload failed")
		return fmt.Errorf("upload image for place %d: %w", job.PlaceID, err)
	}

	if err = p.sink.ApplyUpload(ctx, job, res); err != nil {
		l.ErrorContext(ctx, "Failed to store uploaded image", slog.Any("error", err))
		m.CountImageUpload(ctx, p.uploader.Name(), "unapplied")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Apply failed")
		return fmt.Errorf("apply image for place %d: %w", job.PlaceID, err)
	}

	l.InfoContext(ctx, "Image uploaded", slog.String("url", res.URL))
	m.CountImageUpload(ctx, p.uploader.Name(), "success")
	span.SetStatus(codes.Ok, "Image uploaded")
	return nil
}
