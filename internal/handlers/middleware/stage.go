package middleware

import (
	"net/http"

	"github.com/nkiryanov/vidtube/internal/handlers/render"
)

// Stage of request processing
// Returns request to continue with (its context may be augmented) or error to stop processing
type Stage func(r *http.Request) (*http.Request, error)

// Run stages in the given order before the handler
// The first failed stage short-circuits the request and its error is rendered
func Stages(stages ...Stage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, stage := range stages {
				var err error
				if r, err = stage(r); err != nil {
					render.AppError(w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
