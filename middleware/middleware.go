package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Log tags every request with a log_id and injects the request logger
// into the context.
func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger := log.Ctx(r.Context()).With().
			Str("log_id", uuid.New().String()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		ctx := logger.WithContext(r.Context())

		next.ServeHTTP(w, r.WithContext(ctx))

		logger.Debug().Msgf("request done in %v", time.Since(start))
	})
}

func Cors(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(next)
}
