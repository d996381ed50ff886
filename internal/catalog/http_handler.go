package catalog

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"swapiapi/internal/apperr"
	"swapiapi/internal/entity"
	"swapiapi/internal/httpx"
)

type HTTPHandler struct {
	svc *Service
}

func NewHTTPHandler(svc *Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

// Register mounts list, search and detail routes for every kind.
func (h *HTTPHandler) Register(r chi.Router) {
	for _, kind := range entity.Kinds {
		r.Route("/"+string(kind), func(r chi.Router) {
			r.Get("/", h.List(kind))
			r.Get("/search", h.Search(kind))
			r.Get("/{id}", h.Get(kind))
		})
	}
}

// List handles GET /{kind}/
// @Summary List entities
// @Description Paginated listing in ascending id order with relationships embedded.
// @Tags catalog
// @Produce json
// @Param kind path string true "Entity kind" Enums(characters, films, starships)
// @Param skip query int false "Records to skip" default(0) minimum(0)
// @Param limit query int false "Page size" default(20) minimum(1) maximum(100)
// @Success 200 {array} entity.Character
// @Failure 400 {object} httpx.DetailResponse
// @Failure 500 {object} httpx.DetailResponse
// @Router /{kind}/ [get]
func (h *HTTPHandler) List(kind entity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := h.parsePage(r.URL.Query())
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}

		items, err := h.svc.List(r.Context(), kind, page)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, items)
	}
}

// Search handles GET /{kind}/search
// @Summary Search entities by name
// @Description Case-insensitive substring match on name, or title for films. No match returns an empty list.
// @Tags catalog
// @Produce json
// @Param kind path string true "Entity kind" Enums(characters, films, starships)
// @Param q query string true "Search term"
// @Success 200 {array} entity.Film
// @Failure 400 {object} httpx.DetailResponse
// @Failure 500 {object} httpx.DetailResponse
// @Router /{kind}/search [get]
func (h *HTTPHandler) Search(kind entity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.svc.Search(r.Context(), kind, r.URL.Query().Get("q"))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, items)
	}
}

// Get handles GET /{kind}/{id}
// @Summary Get an entity by id
// @Tags catalog
// @Produce json
// @Param kind path string true "Entity kind" Enums(characters, films, starships)
// @Param id path int true "Local id"
// @Success 200 {object} entity.Starship
// @Failure 400 {object} httpx.DetailResponse
// @Failure 404 {object} httpx.DetailResponse
// @Failure 500 {object} httpx.DetailResponse
// @Router /{kind}/{id} [get]
func (h *HTTPHandler) Get(kind entity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.WriteError(w, r, apperr.NewInvalidQuery("id", "id must be an integer"))
			return
		}

		item, err := h.svc.Get(r.Context(), kind, id)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, item)
	}
}

func (h *HTTPHandler) parsePage(q url.Values) (PageParams, error) {
	page := h.svc.DefaultPage()
	var fields []apperr.FieldError

	if raw := q.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "skip", Message: "skip must be an integer"})
		}
		page.Skip = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "limit", Message: "limit must be an integer"})
		}
		page.Limit = n
	}

	if len(fields) > 0 {
		return PageParams{}, &apperr.InvalidQueryError{Fields: fields}
	}
	return page, nil
}
