package models

import "time"

// Opportunity представляет найденную арбитражную возможность:
// положительная ставка финансирования при спреде фьючерс/спот
// внутри допустимого коридора
type Opportunity struct {
	Symbol               string    `json:"symbol"`
	FundingRate          float64   `json:"funding_rate"`           // % за интервал выплаты
	SpotPrice            float64   `json:"spot_price"`             // лучший ask спота
	FuturesPrice         float64   `json:"futures_price"`          // лучший bid фьючерса
	SpreadPercent        float64   `json:"spread_percent"`         // (futures - spot) / spot * 100
	ExpectedAnnualReturn float64   `json:"expected_annual_return"` // funding_rate * интервалов в год
	ComputedAt           time.Time `json:"computed_at"`
}
