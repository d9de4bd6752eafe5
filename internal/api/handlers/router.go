// router.go — привязка маршрутов и параметров к ServerInterface.
// Параметры пути и запроса разбираются oapi-codegen runtime по стилю OpenAPI.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/goartstore/catalog-module/internal/api/errors"
)

// ServerInterface — операции HTTP API.
type ServerInterface interface {
	HealthLive(w http.ResponseWriter, r *http.Request)
	HealthReady(w http.ResponseWriter, r *http.Request)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	GetOpenAPI(w http.ResponseWriter, r *http.Request)

	ListMovies(w http.ResponseWriter, r *http.Request, params ListMoviesParams)
	CreateMovie(w http.ResponseWriter, r *http.Request)
	GetMovieStats(w http.ResponseWriter, r *http.Request)
	GetMovie(w http.ResponseWriter, r *http.Request, movieID int)
	UpdateMovie(w http.ResponseWriter, r *http.Request, movieID int)
	DeleteMovie(w http.ResponseWriter, r *http.Request, movieID int)

	ListImports(w http.ResponseWriter, r *http.Request, params PageParams)
	ImportFile(w http.ResponseWriter, r *http.Request, params ImportFileParams)
	ValidateFile(w http.ResponseWriter, r *http.Request)

	RunSweep(w http.ResponseWriter, r *http.Request)
}

// PageParams — параметры пагинации.
type PageParams struct {
	Limit  *int
	Offset *int
}

// ListMoviesParams — параметры GET /api/v1/movies.
type ListMoviesParams struct {
	PageParams
	Genre  *string
	Studio *string
	Year   *int
}

// ImportFileParams — параметры POST /api/v1/imports.
type ImportFileParams struct {
	FileName *string
}

// Middlewares — цепочки middleware по уровню доступа.
// Read — чтение, Write — изменения, Import — загрузка файлов (после Write).
type Middlewares struct {
	Read   []func(http.Handler) http.Handler
	Write  []func(http.Handler) http.Handler
	Import []func(http.Handler) http.Handler
}

// HandlerFromMux регистрирует все маршруты на router.
func HandlerFromMux(si ServerInterface, r chi.Router, mw Middlewares) {
	w := &wrapper{si: si}

	r.Get("/health/live", si.HealthLive)
	r.Get("/health/ready", si.HealthReady)
	r.Get("/metrics", si.GetMetrics)
	r.Get("/api/v1/openapi.yaml", si.GetOpenAPI)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mw.Read...)
			r.Get("/movies", w.listMovies)
			r.Get("/movies/stats", si.GetMovieStats)
			r.Get("/movies/{movie_id}", w.withMovieID(si.GetMovie))
			r.Get("/imports", w.listImports)
		})
		r.Group(func(r chi.Router) {
			r.Use(mw.Write...)
			r.Post("/movies", si.CreateMovie)
			r.Put("/movies/{movie_id}", w.withMovieID(si.UpdateMovie))
			r.Delete("/movies/{movie_id}", w.withMovieID(si.DeleteMovie))
			r.Post("/maintenance/sweep", si.RunSweep)
			r.Post("/imports/validate", si.ValidateFile)

			r.With(mw.Import...).Post("/imports", w.importFile)
		})
	})
}

type wrapper struct {
	si ServerInterface
}

func invalidParam(w http.ResponseWriter, name string, err error) {
	apierrors.ValidationError(w, fmt.Sprintf("Некорректный параметр %s: %v", name, err))
}

func (wr *wrapper) withMovieID(fn func(http.ResponseWriter, *http.Request, int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var movieID int
		err := runtime.BindStyledParameterWithOptions("simple", "movie_id", chi.URLParam(r, "movie_id"), &movieID,
			runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
		if err != nil {
			invalidParam(w, "movie_id", err)
			return
		}
		if movieID <= 0 {
			apierrors.ValidationError(w, "Некорректный параметр movie_id: должен быть больше 0")
			return
		}
		fn(w, r, movieID)
	}
}

func bindPage(w http.ResponseWriter, r *http.Request, p *PageParams) bool {
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &p.Limit); err != nil {
		invalidParam(w, "limit", err)
		return false
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", q, &p.Offset); err != nil {
		invalidParam(w, "offset", err)
		return false
	}
	return true
}

func (wr *wrapper) listMovies(w http.ResponseWriter, r *http.Request) {
	var params ListMoviesParams
	if !bindPage(w, r, &params.PageParams) {
		return
	}

	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "genre", q, &params.Genre); err != nil {
		invalidParam(w, "genre", err)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "studio", q, &params.Studio); err != nil {
		invalidParam(w, "studio", err)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "year", q, &params.Year); err != nil {
		invalidParam(w, "year", err)
		return
	}

	wr.si.ListMovies(w, r, params)
}

func (wr *wrapper) listImports(w http.ResponseWriter, r *http.Request) {
	var params PageParams
	if !bindPage(w, r, &params) {
		return
	}
	wr.si.ListImports(w, r, params)
}

func (wr *wrapper) importFile(w http.ResponseWriter, r *http.Request) {
	var params ImportFileParams
	if err := runtime.BindQueryParameter("form", true, false, "file_name", r.URL.Query(), &params.FileName); err != nil {
		invalidParam(w, "file_name", err)
		return
	}
	wr.si.ImportFile(w, r, params)
}
