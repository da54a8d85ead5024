package place

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/easytrip-api/internal/api"
	"github.com/FACorreiaa/easytrip-api/internal/api/auth"
	"github.com/FACorreiaa/easytrip-api/internal/catalog"
	"github.com/FACorreiaa/easytrip-api/internal/imagehost"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

const defaultMaxUploadBytes = 10 << 20

type Handler interface {
	ListPlaces(w http.ResponseWriter, r *http.Request)
	GetPlace(w http.ResponseWriter, r *http.Request)
	SearchPlaces(w http.ResponseWriter, r *http.Request)
	ExplorePlaces(w http.ResponseWriter, r *http.Request)
	RelatedPlaces(w http.ResponseWriter, r *http.Request)
	Themes(w http.ResponseWriter, r *http.Request)
	CreatePlace(w http.ResponseWriter, r *http.Request)
	UpdatePlace(w http.ResponseWriter, r *http.Request)
	DeletePlace(w http.ResponseWriter, r *http.Request)
	ReplacePrimaryImage(w http.ResponseWriter, r *http.Request)
	AddPlaceImage(w http.ResponseWriter, r *http.Request)
	DeletePlaceImage(w http.ResponseWriter, r *http.Request)
}

var _ Handler = (*HandlerImpl)(nil)

type HandlerImpl struct {
	placeService   Service
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewHandlerImpl(placeService Service, maxUploadBytes int64, logger *slog.Logger) *HandlerImpl {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &HandlerImpl{
		placeService:   placeService,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

func startSpan(r *http.Request, name, route string, attrs ...attribute.KeyValue) (*http.Request, trace.Span) {
	attrs = append(attrs,
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	)
	ctx, span := otel.Tracer("PlaceHandler").Start(r.Context(), name, trace.WithAttributes(attrs...))
	return r.WithContext(ctx), span
}

// ListPlaces godoc
// @Summary      List places
// @Description  Returns every place, newest first.
// @Tags         Places
// @Produce      json
// @Success      200 {array} types.Place
// @Failure      500 {object} api.ErrorBody "Internal Server Error"
// @Router       /places [get]
func (h *HandlerImpl) ListPlaces(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ListPlaces", "/api/v1/places")
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "ListPlaces"))

	places, err := h.placeService.List(r.Context())
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to list places")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, places)
}

// GetPlace godoc
// @Summary      Get place
// @Description  Returns a place with its secondary images.
// @Tags         Places
// @Produce      json
// @Param        id path int true "Place ID"
// @Success      200 {object} types.Place
// @Failure      400 {object} api.ErrorBody "Invalid ID"
// @Failure      404 {object} api.ErrorBody "Place not found"
// @Router       /places/{id} [get]
func (h *HandlerImpl) GetPlace(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "GetPlace", "/api/v1/places/{id}")
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "GetPlace"))

	id, err := api.PathID(r, "id")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.placeService.Details(r.Context(), id)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to load place")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// SearchPlaces godoc
// @Summary      Search places
// @Description  Filters and sorts places. Label lists accept comma separated values.
// @Tags         Places
// @Produce      json
// @Param        searchTerm query string false "Substring of name or description"
// @Param        location query string false "Exact location"
// @Param        district query string false "Exact district"
// @Param        state query string false "Exact state"
// @Param        themes query string false "Themes, any of"
// @Param        tags query string false "Tags, any of"
// @Param        minRating query number false "Minimum average rating"
// @Param        season query string false "spring, summer, monsoon or winter"
// @Param        sort query string false "newest, rating, name or popular"
// @Success      200 {array} types.Place
// @Failure      400 {object} api.ErrorBody "Invalid input"
// @Failure      500 {object} api.ErrorBody "Internal Server Error"
// @Router       /places/search [get]
func (h *HandlerImpl) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "SearchPlaces", "/api/v1/places/search")
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "SearchPlaces"))

	c, key, err := criteriaFromQuery(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	places, err := h.placeService.Search(r.Context(), c, key)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to search places")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, places)
}

// ExplorePlaces godoc
// @Summary      Explore places
// @Description  Search followed by the growing page window used by "load more".
// @Tags         Places
// @Produce      json
// @Param        searchTerm query string false "Substring of name or description"
// @Param        themes query string false "Themes, any of"
// @Param        tags query string false "Tags, any of"
// @Param        minRating query number false "Minimum average rating"
// @Param        season query string false "Season"
// @Param        sort query string false "Sort key"
// @Param        pageSize query int false "Page size, default 12"
// @Param        page query int false "Number of pages shown, default 1"
// @Success      200 {object} catalog.Result
// @Failure      400 {object} api.ErrorBody "Invalid input"
// @Router       /places/explore [get]
func (h *HandlerImpl) ExplorePlaces(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ExplorePlaces", "/api/v1/places/explore")
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "ExplorePlaces"))

	c, key, err := criteriaFromQuery(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pageSize, page, err := pageFromQuery(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.placeService.Explore(r.Context(), c, key, pageSize, page)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to explore places")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// RelatedPlaces godoc
// @Summary      Related places
// @Description  Up to four places sharing a theme, best rated first.
// @Tags         Places
// @Produce      json
// @Param        id path int true "Place ID"
// @Success      200 {array} types.Place
// @Failure      404 {object} api.ErrorBody "Place not found"
// @Router       /places/{id}/related [get]
func (h *HandlerImpl) RelatedPlaces(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "RelatedPlaces", "/api/v1/places/{id}/related")
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "RelatedPlaces"))

	id, err := api.PathID(r, "id")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	related, err := h.placeService.Related(r.Context(), id)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to load related places")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, related)
}

// Themes godoc
// @Summary      Theme vocabulary
// @Tags         Places
// @Produce      json
// @Success      200 {object} api.ThemesResponse
// @Router       /themes [get]
func (h *HandlerImpl) Themes(w http.ResponseWriter, r *http.Request) {
	api.WriteJSONResponse(w, r, http.StatusOK, api.ThemesResponse{
		Themes:  types.ThemeVocabulary,
		Seasons: catalog.Seasons(),
	})
}

// CreatePlace godoc
// @Summary      Create place
// @Description  Creates a place. The optional image is uploaded after the place exists.
// @Tags         Admin
// @Accept       multipart/form-data
// @Produce      json
// @Param        name formData string true "Name"
// @Param        location formData string true "Location"
// @Param        description formData string false "Description"
// @Param        district formData string false "District"
// @Param        state formData string false "State"
// @Param        themes formData string false "Comma separated themes"
// @Param        tags formData string false "Comma separated tags"
// @Param        custom_keys formData string false "JSON object of strings"
// @Param        image formData file false "Primary image"
// @Success      201 {object} types.Place
// @Failure      400 {object} api.ErrorBody "Invalid input"
// @Failure      403 {object} api.ErrorBody "Forbidden"
// @Security     BearerAuth
// @Router       /admin/places [post]
func (h *HandlerImpl) CreatePlace(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "CreatePlace", "/api/v1/admin/places")
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "CreatePlace"))

	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	params, err := createParamsFromForm(r.MultipartForm)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		params.CreatedBy = p.Identity.UserID
	}

	file, upload, hasImage, err := imageFromForm(r.MultipartForm)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to read image")
		return
	}
	var image *ImageUpload
	if hasImage {
		defer file.Close()
		image = &upload
	}

	created, err := h.placeService.Create(r.Context(), params, image)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to create place")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

// UpdatePlace godoc
// @Summary      Update place
// @Description  Partial update. Omitted fields keep their value.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path int true "Place ID"
// @Param        body body types.UpdatePlaceParams true "Fields to change"
// @Success      200 {object} types.Place
// @Failure      400 {object} api.ErrorBody "Invalid input"
// @Failure      404 {object} api.ErrorBody "Place not found"
// @Security     BearerAuth
// @Router       /admin/places/{id} [put]
func (h *HandlerImpl) UpdatePlace(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "UpdatePlace", "/api/v1/admin/places/{id}")
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "UpdatePlace"))

	id, err := api.PathID(r, "id")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var params types.UpdatePlaceParams
	if err = api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		params.UpdatedBy = p.Identity.UserID
	}

	updated, err := h.placeService.Update(r.Context(), id, params)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to update place")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, updated)
}

// DeletePlace godoc
// @Summary      Delete place
// @Description  Hard delete. Images and reviews go with it.
// @Tags         Admin
// @Param        id path int true "Place ID"
// @Success      204
// @Failure      404 {object} api.ErrorBody "Place not found"
// @Security     BearerAuth
// @Router       /admin/places/{id} [delete]
func (h *HandlerImpl) DeletePlace(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "DeletePlace", "/api/v1/admin/places/{id}")
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "DeletePlace"))

	id, err := api.PathID(r, "id")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err = h.placeService.Delete(r.Context(), id); err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to delete place")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// ReplacePrimaryImage godoc
// @Summary      Replace primary image
// @Tags         Admin
// @Accept       multipart/form-data
// @Produce      json
// @Param        id path int true "Place ID"
// @Param        image formData file true "Image"
// @Success      202 {object} types.Response
// @Failure      400 {object} api.ErrorBody "Invalid input"
// @Failure      404 {object} api.ErrorBody "Place not found"
// @Security     BearerAuth
// @Router       /admin/places/{id}/image [post]
func (h *HandlerImpl) ReplacePrimaryImage(w http.ResponseWriter, r *http.Request) {
	h.acceptImage(w, r, imagehost.KindPrimary)
}

// AddPlaceImage godoc
// @Summary      Add secondary image
// @Tags         Admin
// @Accept       multipart/form-data
// @Produce      json
// @Param        id path int true "Place ID"
// @Param        image formData file true "Image"
// @Param        caption formData string false "Caption"
// @Success      202 {object} types.Response
// @Failure      400 {object} api.ErrorBody "Invalid input"
// @Failure      404 {object} api.ErrorBody "Place not found"
// @Security     BearerAuth
// @Router       /admin/places/{id}/images [post]
func (h *HandlerImpl) AddPlaceImage(w http.ResponseWriter, r *http.Request) {
	h.acceptImage(w, r, imagehost.KindSecondary)
}

func (h *HandlerImpl) acceptImage(w http.ResponseWriter, r *http.Request, kind imagehost.Kind) {
	r, span := startSpan(r, "AcceptImage", "/api/v1/admin/places/{id}/image", attribute.String("image.kind", string(kind)))
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "AcceptImage"), slog.String("kind", string(kind)))

	id, err := api.PathID(r, "id")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err = parseMultipart(w, r, h.maxUploadBytes); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, upload, ok, err := imageFromForm(r.MultipartForm)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to read image")
		return
	}
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	if err = h.placeService.UploadImage(r.Context(), id, kind, upload); err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to accept image")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusAccepted, types.Response{
		Success: true,
		Message: "image accepted, upload in progress",
	})
}

// DeletePlaceImage godoc
// @Summary      Delete secondary image
// @Tags         Admin
// @Param        id path int true "Place ID"
// @Param        imageID path int true "Image ID"
// @Success      204
// @Failure      404 {object} api.ErrorBody "Image not found"
// @Security     BearerAuth
// @Router       /admin/places/{id}/images/{imageID} [delete]
func (h *HandlerImpl) DeletePlaceImage(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "DeletePlaceImage", "/api/v1/admin/places/{id}/images/{imageID}")
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "DeletePlaceImage"))

	placeID, err := api.PathID(r, "id")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	imageID, err := api.PathID(r, "imageID")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err = h.placeService.DeleteImage(r.Context(), placeID, imageID); err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to delete image")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
