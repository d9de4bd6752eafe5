// openapi.go — проверка запросов по встроенному OpenAPI документу.
package middleware

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"

	apierrors "github.com/bigkaa/goartstore/catalog-module/internal/api/errors"
)

// OpenAPIValidator возвращает middleware, проверяющий параметры и JSON-тела
// запросов по документу. Тела CSV (multipart, text/csv) не проверяются.
func OpenAPIValidator(doc *openapi3.T) (func(http.Handler) http.Handler, error) {
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Маршрута нет в документе — 404/405 отдаст chi
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
					ExcludeRequestBody: !isJSONBody(r),
					MultiError:         false,
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				apierrors.ValidationError(w, validationMessage(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func isJSONBody(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return r.ContentLength != 0
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}

// validationMessage сокращает ошибку kin-openapi до одной строки.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.Reason
		if reqErr.Parameter != nil {
			msg = "параметр " + reqErr.Parameter.Name + ": " + msg
		}
		if reqErr.Err != nil {
			var schemaErr *openapi3.SchemaError
			if errors.As(reqErr.Err, &schemaErr) {
				field := strings.Join(schemaErr.JSONPointer(), ".")
				if field != "" {
					return field + ": " + schemaErr.Reason
				}
				return schemaErr.Reason
			}
			if msg == "" {
				msg = reqErr.Err.Error()
			}
		}
		if msg != "" {
			return msg
		}
	}
	first, _, _ := strings.Cut(err.Error(), "\n")
	return first
}
