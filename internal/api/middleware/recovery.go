package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// Recovery перехватывает панику в handler'е: один плохой запрос
// не должен ронять процесс с открытыми позициями
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in http handler",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path))
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
