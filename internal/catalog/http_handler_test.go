package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapiapi/internal/apperr"
	"swapiapi/internal/entity"
)

func newTestRouter(t *testing.T) (*MockRepository, http.Handler) {
	ctrl := gomock.NewController(t)
	mockRepo := NewMockRepository(ctrl)
	handler := NewHTTPHandler(NewService(mockRepo, Config{DefaultPageSize: 20, MaxPageSize: 100}))

	r := chi.NewRouter()
	handler.Register(r)
	return mockRepo, r
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHTTPHandler_List(t *testing.T) {
	mockRepo, router := newTestRouter(t)

	t.Run("defaults", func(t *testing.T) {
		mockRepo.EXPECT().List(gomock.Any(), entity.KindCharacter, 0, 20).Return([]entity.Entity{
			&entity.Character{ID: 1, Name: "Luke Skywalker", Films: []entity.FilmRef{{ID: 1, Title: "A New Hope"}}},
		}, nil)

		w := serve(router, "/characters/")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[{"id":1,"name":"Luke Skywalker","gender":"","birth_year":"","films":[{"id":1,"title":"A New Hope"}]}]`, w.Body.String())
	})

	t.Run("explicit page", func(t *testing.T) {
		mockRepo.EXPECT().List(gomock.Any(), entity.KindStarship, 40, 10).Return([]entity.Entity{}, nil)

		w := serve(router, "/starships/?skip=40&limit=10")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("non-integer limit", func(t *testing.T) {
		w := serve(router, "/films/?limit=ten")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "limit must be an integer", body["detail"])
	})

	t.Run("limit above max", func(t *testing.T) {
		w := serve(router, "/films/?limit=1000")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative skip", func(t *testing.T) {
		w := serve(router, "/films/?skip=-5")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("repository error", func(t *testing.T) {
		mockRepo.EXPECT().List(gomock.Any(), entity.KindFilm, 0, 20).Return(nil, errors.New("db error"))

		w := serve(router, "/films/")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"detail":"Internal server error"}`, w.Body.String())
	})
}

func TestHTTPHandler_Search(t *testing.T) {
	mockRepo, router := newTestRouter(t)

	t.Run("match", func(t *testing.T) {
		hope := "1977-05-25"
		mockRepo.EXPECT().Search(gomock.Any(), entity.KindFilm, "hope").Return([]entity.Entity{
			&entity.Film{ID: 1, Title: "A New Hope", ReleaseDate: &hope, Characters: []entity.CharacterRef{}, Starships: []entity.StarshipRef{}},
		}, nil)

		w := serve(router, "/films/search?q=hope")

		assert.Equal(t, http.StatusOK, w.Code)
		var body []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body, 1)
		assert.Equal(t, "A New Hope", body[0]["title"])
		assert.Equal(t, "1977-05-25", body[0]["release_date"])
	})

	t.Run("no match is an empty list", func(t *testing.T) {
		mockRepo.EXPECT().Search(gomock.Any(), entity.KindCharacter, "vader").Return([]entity.Entity{}, nil)

		w := serve(router, "/characters/search?q=vader")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("missing q", func(t *testing.T) {
		w := serve(router, "/characters/search")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"detail":"q is required","errors":[{"field":"q","message":"q is required"}]}`, w.Body.String())
	})
}

func TestHTTPHandler_Get(t *testing.T) {
	mockRepo, router := newTestRouter(t)

	t.Run("success", func(t *testing.T) {
		mockRepo.EXPECT().GetByID(gomock.Any(), entity.KindStarship, int64(12)).Return(&entity.Starship{ID: 12, Name: "X-wing"}, nil)

		w := serve(router, "/starships/12")

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "X-wing", body["name"])
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo.EXPECT().GetByID(gomock.Any(), entity.KindCharacter, int64(999)).Return(nil, apperr.NewNotFound("characters", 999))

		w := serve(router, "/characters/999")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"detail":"Character not found"}`, w.Body.String())
	})

	t.Run("non-integer id", func(t *testing.T) {
		w := serve(router, "/films/abc")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
