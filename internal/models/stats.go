package models

import "time"

// BotStats - агрегированная статистика бота для отчётности
type BotStats struct {
	Running         bool      `json:"running"`
	ActivePositions int       `json:"active_positions"`
	TotalTrades     int64     `json:"total_trades"`
	FailedTrades    int64     `json:"failed_trades"`
	RiskRejected    int64     `json:"risk_rejected"`
	StartedAt       time.Time `json:"started_at"`
	UptimeSeconds   float64   `json:"uptime_seconds"`

	// Balance - последний баланс из пользовательского потока,
	// nil пока обновлений не было
	Balance *float64 `json:"balance,omitempty"`
}
