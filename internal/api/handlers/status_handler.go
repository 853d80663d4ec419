package handlers

import (
	"net/http"

	"fundingbot/internal/feed"
	"fundingbot/internal/models"
)

// BotReporter - то, что движок отдаёт наружу для отчётности
type BotReporter interface {
	Stats() models.BotStats
	FeedStates() []feed.ConnectionState
	Opportunities() []models.Opportunity
	Positions() (active, history []models.Position)
}

// StatusHandler отдаёт состояние бота по HTTP
type StatusHandler struct {
	bot BotReporter
}

// NewStatusHandler создаёт handler поверх движка
func NewStatusHandler(bot BotReporter) *StatusHandler {
	return &StatusHandler{bot: bot}
}

// Health - GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status - GET /api/v1/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats": h.bot.Stats(),
		"feeds": h.bot.FeedStates(),
	})
}

// Positions - GET /api/v1/positions
func (h *StatusHandler) Positions(w http.ResponseWriter, r *http.Request) {
	active, history := h.bot.Positions()
	if active == nil {
		active = []models.Position{}
	}
	if history == nil {
		history = []models.Position{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":  active,
		"history": history,
	})
}

// Opportunities - GET /api/v1/opportunities
func (h *StatusHandler) Opportunities(w http.ResponseWriter, r *http.Request) {
	opps := h.bot.Opportunities()
	if opps == nil {
		opps = []models.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"opportunities": opps})
}
