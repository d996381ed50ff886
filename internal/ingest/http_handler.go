package ingest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"swapiapi/internal/apperr"
	"swapiapi/internal/entity"
	"swapiapi/internal/httpx"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type Importer interface {
	ImportAll(ctx context.Context, kind entity.Kind) (Summary, error)
	Runs(ctx context.Context, limit int) ([]Run, error)
}

type HTTPHandler struct {
	svc Importer
}

func NewHTTPHandler(svc Importer) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

// Import handles POST /import/{kind}
// @Summary Import a kind from SWAPI
// @Description Fetches every upstream record of the kind, stores it and links its relationships. Safe to repeat.
// @Tags import
// @Produce json
// @Param kind path string true "Entity kind" Enums(characters, films, starships)
// @Success 202 {object} httpx.MessageResponse
// @Failure 404 {object} httpx.DetailResponse
// @Failure 502 {object} httpx.DetailResponse
// @Failure 500 {object} httpx.DetailResponse
// @Router /import/{kind} [post]
func (h *HTTPHandler) Import(w http.ResponseWriter, r *http.Request) {
	kind, err := entity.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.JSONDetail(w, http.StatusNotFound, "Not Found")
		return
	}

	// Upstream failures map to 502; partial results are already stored.
	if _, err := h.svc.ImportAll(r.Context(), kind); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	httpx.JSONMessage(w, http.StatusAccepted, kind.Singular()+" import completed.")
}

// Runs handles GET /import/runs
// @Summary List recent import runs
// @Tags import
// @Produce json
// @Param limit query int false "Maximum runs to return" default(20)
// @Success 200 {array} ingest.Run
// @Failure 400 {object} httpx.DetailResponse
// @Router /import/runs [get]
func (h *HTTPHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRunsLimit {
			httpx.WriteError(w, r, apperr.NewInvalidQuery("limit", "limit must be an integer between 1 and 100"))
			return
		}
		limit = n
	}

	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, runs)
}
