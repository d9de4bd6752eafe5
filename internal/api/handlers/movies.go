// movies.go — обработчики каталога фильмов /api/v1/movies.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/catalog-module/internal/api/errors"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
)

// ListMovies — GET /api/v1/movies.
// Фильтры genre и studio без учёта регистра, сортировка по movie_id.
func (h *APIHandler) ListMovies(w http.ResponseWriter, r *http.Request, params ListMoviesParams) {
	limit, offset := paginationDefaults(params.Limit, params.Offset)
	filter := model.MovieFilter{Genre: params.Genre, Studio: params.Studio, Year: params.Year}

	movies, total, err := h.catalog.List(r.Context(), filter, limit, offset)
	if err != nil {
		apierrors.WriteFailure(w, h.logger, err)
		return
	}

	items := make([]Movie, len(movies))
	for i, m := range movies {
		items[i] = mapMovie(m)
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// CreateMovie — POST /api/v1/movies.
func (h *APIHandler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	var req service.MovieInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	m, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		apierrors.WriteFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapMovie(m))
}

// GetMovieStats — GET /api/v1/movies/stats.
func (h *APIHandler) GetMovieStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		apierrors.WriteFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mapStats(stats))
}

// GetMovie — GET /api/v1/movies/{movie_id}.
func (h *APIHandler) GetMovie(w http.ResponseWriter, r *http.Request, movieID int) {
	m, err := h.catalog.Get(r.Context(), movieID)
	if err != nil {
		apierrors.WriteFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mapMovie(m))
}

// UpdateMovie — PUT /api/v1/movies/{movie_id}. Перезаписывает все поля.
func (h *APIHandler) UpdateMovie(w http.ResponseWriter, r *http.Request, movieID int) {
	var req service.MovieFields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	m, err := h.catalog.Update(r.Context(), movieID, req)
	if err != nil {
		apierrors.WriteFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mapMovie(m))
}

// DeleteMovie — DELETE /api/v1/movies/{movie_id}.
func (h *APIHandler) DeleteMovie(w http.ResponseWriter, r *http.Request, movieID int) {
	if err := h.catalog.Delete(r.Context(), movieID); err != nil {
		apierrors.WriteFailure(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
