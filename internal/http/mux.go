package http

import (
	"context"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"net/http"
)

type RainbowContextKey string

const queriesContextKey = RainbowContextKey("queries")

func storeQueryKeys(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, request *http.Request) {
		var queries []string
		for key := range request.URL.Query() {
			queries = append(queries, key)
		}

		ctx := context.WithValue(request.Context(), queriesContextKey, queries)
		r := request.Clone(ctx)

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

func getQueryKeys(request *http.Request) ([]string, bool) {
	ctx := request.Context()
	queries, ok := ctx.Value(queriesContextKey).([]string)
	return queries, ok
}

func hasQuery(request *http.Request, name string) bool {
	queries, _ := getQueryKeys(request)
	for _, q := range queries {
		if q == name {
			return true
		}
	}

	return false
}

func NewChiMux(h S3Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger, storeQueryKeys, rejectUnsupportedQueries)

	// list buckets
	r.Get("/", h.ListBuckets)

	r.Route("/{bucket}", func(r chi.Router) {
		r.Head("/", h.HeadBucket)
		r.Get("/", h.GetBucket)
		r.Put("/", h.CreateBucket)
		r.Delete("/", h.DeleteBucket)

		r.Head("/*", h.HeadObject)
		r.Get("/*", h.GetObject)
		r.Put("/*", h.PutObject)
		r.Post("/*", h.PostObject)
		r.Delete("/*", h.DeleteObject)
	})

	return r
}
