// Package api - HTTP-срез бота: состояние, позиции, метрики.
// Только чтение; торговлей по HTTP управлять нельзя.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fundingbot/internal/api/handlers"
	"fundingbot/internal/api/middleware"
)

// SetupRoutes настраивает HTTP маршруты приложения
//
// Структура маршрутов:
//
//	/health                 - проверка живости
//	/metrics                - Prometheus метрики
//	/api/v1/
//	  ├── GET /status        - статистика бота и состояние фидов
//	  ├── GET /positions     - живые позиции и история
//	  └── GET /opportunities - текущие оценки по символам
func SetupRoutes(bot handlers.BotReporter, logger *zap.Logger) http.Handler {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))

	status := handlers.NewStatusHandler(bot)

	router.HandleFunc("/health", status.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", status.Status).Methods(http.MethodGet)
	v1.HandleFunc("/positions", status.Positions).Methods(http.MethodGet)
	v1.HandleFunc("/opportunities", status.Opportunities).Methods(http.MethodGet)

	return router
}
