package place

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/easytrip-api/app/observability/metrics"
	"github.com/FACorreiaa/easytrip-api/internal/catalog"
	"github.com/FACorreiaa/easytrip-api/internal/imagehost"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

// RelatedLimit caps the related places list.
const RelatedLimit = 4

const snapshotKey = "places:all"

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	List(ctx context.Context) ([]types.Place, error)
	// Details returns the place with its secondary images.
	Details(ctx context.Context, id int64) (*types.Place, error)
	Search(ctx context.Context, c catalog.Criteria, key catalog.SortKey) ([]types.Place, error)
	Explore(ctx context.Context, c catalog.Criteria, key catalog.SortKey, pageSize, pageCount int) (catalog.Result, error)
	Related(ctx context.Context, id int64) ([]types.Place, error)

	Create(ctx context.Context, params types.CreatePlaceParams, image *ImageUpload) (*types.Place, error)
	Update(ctx context.Context, id int64, params types.UpdatePlaceParams) (*types.Place, error)
	Delete(ctx context.Context, id int64) error
	UploadImage(ctx context.Context, id int64, kind imagehost.Kind, image ImageUpload) error
	DeleteImage(ctx context.Context, placeID, imageID int64) error
}

// ImageSettings says where staged uploads go and how they are hosted.
type ImageSettings struct {
	Folder  string
	TempDir string
}

type ServiceImpl struct {
	logger      *slog.Logger
	repo        Repository
	dispatcher  imagehost.Dispatcher
	invalidator Invalidator
	snapshot    *cache.Cache
	images      ImageSettings
}

func NewService(repo Repository, dispatcher imagehost.Dispatcher, invalidator Invalidator,
	snapshotTTL time.Duration, images ImageSettings, logger *slog.Logger) *ServiceImpl {
	if invalidator == nil {
		invalidator = NoopInvalidator{}
	}
	if snapshotTTL <= 0 {
		snapshotTTL = cache.NoExpiration
	}
	return &ServiceImpl{
		logger:      logger,
		repo:        repo,
		dispatcher:  dispatcher,
		invalidator: invalidator,
		snapshot:    cache.New(snapshotTTL, 10*time.Minute),
		images:      images,
	}
}

// List returns every place, newest first, and refreshes the search
// fallback snapshot.
func (s *ServiceImpl) List(ctx context.Context) ([]types.Place, error) {
	ctx, span := otel.Tracer("PlaceService").Start(ctx, "List")
	defer span.End()

	places, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list places", slog.String("method", "List"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list places")
		return nil, fmt.Errorf("error listing places: %w", err)
	}
	s.snapshot.SetDefault(snapshotKey, places)
	span.SetStatus(codes.Ok, "Places listed")
	return places, nil
}

func (s *ServiceImpl) Details(ctx context.Context, id int64) (*types.Place, error) {
	ctx, span := otel.Tracer("PlaceService").Start(ctx, "Details", trace.WithAttributes(attribute.Int64("place.id", id)))
	defer span.End()

	var (
		p      *types.Place
		images []types.PlaceImage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = s.repo.GetByID(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		images, err = s.repo.ListImages(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load place")
		return nil, err
	}
	p.Images = images
	span.SetStatus(codes.Ok, "Place loaded")
	return p, nil
}

// Search runs the predicate in SQL. When the store fails, the same
// predicate runs over the last full listing. Both paths share the sort.
func (s *ServiceImpl) Search(ctx context.Context, c catalog.Criteria, key catalog.SortKey) ([]types.Place, error) {
	ctx, span := otel.Tracer("PlaceService").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("sort", string(key)),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "Search"))
	m := metrics.Get()
	m.SearchRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("sort", string(key))))

	places, err := s.repo.Search(ctx, c)
	if err != nil {
		l.WarnContext(ctx, "Search query failed, filtering snapshot in process", slog.Any("error", err))
		m.SearchFallbacksTotal.Add(ctx, 1)
		span.AddEvent("search fallback")

		all, serr := s.snapshotPlaces(ctx)
		if serr != nil {
			span.RecordError(serr)
			span.SetStatus(codes.Error, "Search unavailable")
			return nil, fmt.Errorf("error searching places: %w", serr)
		}
		places = catalog.Filter(all, c)
	}

	sorted := catalog.Sort(places, key)
	span.SetAttributes(attribute.Int("places.count", len(sorted)))
	span.SetStatus(codes.Ok, "Search completed")
	return sorted, nil
}

func (s *ServiceImpl) snapshotPlaces(ctx context.Context) ([]types.Place, error) {
	if cached, ok := s.snapshot.Get(snapshotKey); ok {
		return cached.([]types.Place), nil
	}
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	s.snapshot.SetDefault(snapshotKey, all)
	return all, nil
}

func (s *ServiceImpl) Explore(ctx context.Context, c catalog.Criteria, key catalog.SortKey, pageSize, pageCount int) (catalog.Result, error) {
	ordered, err := s.Search(ctx, c, key)
	if err != nil {
		return catalog.Result{}, err
	}
	return catalog.Paginate(ordered, pageSize, pageCount), nil
}

func (s *ServiceImpl) Related(ctx context.Context, id int64) ([]types.Place, error) {
	ctx, span := otel.Tracer("PlaceService").Start(ctx, "Related", trace.WithAttributes(attribute.Int64("place.id", id)))
	defer span.End()

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		span.RecordError(err)
		return nil, err
	}
	related, err := s.repo.Related(ctx, id, RelatedLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load related places")
		return nil, fmt.Errorf("error loading related places: %w", err)
	}
	related = catalog.Sort(related, catalog.SortRating)
	if len(related) > RelatedLimit {
		related = related[:RelatedLimit]
	}
	return related, nil
}

// Create stores the place and hands the optional image to the dispatcher.
// The image never fails the creation once the row exists.
func (s *ServiceImpl) Create(ctx context.Context, params types.CreatePlaceParams, image *ImageUpload) (*types.Place, error) {
	ctx, span := otel.Tracer("PlaceService").Start(ctx, "Create")
	defer span.End()
	l := s.logger.With(slog.String("method", "Create"))

	params.Normalize()
	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, "Invalid place")
		return nil, err
	}

	var staged string
	if image != nil {
		path, err := stageUpload(s.images.TempDir, *image)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		staged = path
	}

	p, err := s.repo.Create(ctx, params)
	if err != nil {
		if staged != "" {
			os.Remove(staged)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create place")
		return nil, fmt.Errorf("error creating place: %w", err)
	}
	l.InfoContext(ctx, "Place created", slog.Int64("placeID", p.ID), slog.String("createdBy", params.CreatedBy))

	if staged != "" {
		s.dispatchImage(ctx, p.ID, imagehost.KindPrimary, staged, image.Caption)
	}
	s.invalidate(ctx)
	span.SetAttributes(attribute.Int64("place.id", p.ID))
	span.SetStatus(codes.Ok, "Place created")
	return p, nil
}

func (s *ServiceImpl) Update(ctx context.Context, id int64, params types.UpdatePlaceParams) (*types.Place, error) {
	ctx, span := otel.Tracer("PlaceService").Start(ctx, "Update", trace.WithAttributes(attribute.Int64("place.id", id)))
	defer span.End()

	params.Normalize()
	if params.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", types.ErrValidation)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p, err := s.repo.Update(ctx, id, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update place")
		return nil, err
	}
	s.invalidate(ctx)
	span.SetStatus(codes.Ok, "Place updated")
	return p, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, id int64) error {
	ctx, span := otel.Tracer("PlaceService").Start(ctx, "Delete", trace.WithAttributes(attribute.Int64("place.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete place")
		return err
	}
	s.logger.InfoContext(ctx, "Place deleted", slog.String("method", "Delete"), slog.Int64("placeID", id))
	s.invalidate(ctx)
	span.SetStatus(codes.Ok, "Place deleted")
	return nil
}

// UploadImage accepts an image for an existing place. The upload itself runs
// asynchronously.
func (s *ServiceImpl) UploadImage(ctx context.Context, id int64, kind imagehost.Kind, image ImageUpload) error {
	ctx, span := otel.Tracer("PlaceService").Start(ctx, "UploadImage", trace.WithAttributes(
		attribute.Int64("place.id", id),
		attribute.String("image.kind", string(kind)),
	))
	defer span.End()

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	staged, err := stageUpload(s.images.TempDir, image)
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.dispatchImage(ctx, id, kind, staged, image.Caption)
	return nil
}

func (s *ServiceImpl) DeleteImage(ctx context.Context, placeID, imageID int64) error {
	if err := s.repo.DeleteImage(ctx, placeID, imageID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *ServiceImpl) dispatchImage(ctx context.Context, placeID int64, kind imagehost.Kind, path, caption string) {
	job := imagehost.Job{
		PlaceID:   placeID,
		Kind:      kind,
		LocalPath: path,
		Caption:   caption,
		Options: imagehost.Options{
			Folder:   s.images.Folder,
			PublicID: uuid.NewString(),
			Tags:     []string{"place-" + strconv.FormatInt(placeID, 10), string(kind)},
		},
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "Failed to dispatch image upload",
			slog.String("method", "dispatchImage"),
			slog.Int64("placeID", placeID),
			slog.Any("error", err))
		os.Remove(path)
	}
}

func (s *ServiceImpl) invalidate(ctx context.Context) {
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to invalidate response cache", slog.Any("error", err))
	}
}
