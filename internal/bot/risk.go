package bot

import (
	"fmt"

	"fundingbot/internal/marketdata"
)

// Причины отклонения входа
const (
	RejectSlippage    = "slippage"
	RejectPositionCap = "position_cap"
	RejectStaleData   = "stale_data"
)

// RiskConfig - пороги риск-проверок при входе
type RiskConfig struct {
	MaxSlippagePercent float64 // максимальный спред bid/ask на любой ноге, %
	MaxOpenPositions   int
}

// RiskGate проверяет возможность перед размещением ордеров.
// Детектор отвечает на вопрос "выгодно ли", гейт - "безопасно ли".
type RiskGate struct {
	cfg RiskConfig
}

// NewRiskGate создаёт гейт с заданными порогами
func NewRiskGate(cfg RiskConfig) *RiskGate {
	return &RiskGate{cfg: cfg}
}

// CheckEntry возвращает nil, если вход допустим, иначе причину отказа.
// activePositions - текущее число живых позиций.
func (g *RiskGate) CheckEntry(st marketdata.MarketState, activePositions int) error {
	if activePositions >= g.cfg.MaxOpenPositions {
		RecordRiskRejection(RejectPositionCap)
		return fmt.Errorf("position cap reached: %d of %d", activePositions, g.cfg.MaxOpenPositions)
	}

	if st.Spot == nil || st.Futures == nil {
		RecordRiskRejection(RejectStaleData)
		return fmt.Errorf("market state incomplete for %s", st.Symbol)
	}

	for _, leg := range []struct {
		name  string
		quote *marketdata.Quote
	}{
		{"spot", st.Spot},
		{"futures", st.Futures},
	} {
		slip, err := bidAskSpreadPercent(leg.quote)
		if err != nil {
			RecordRiskRejection(RejectStaleData)
			return fmt.Errorf("%s leg: %w", leg.name, err)
		}
		if slip > g.cfg.MaxSlippagePercent {
			RecordRiskRejection(RejectSlippage)
			return fmt.Errorf("%s leg slippage %.4f%% exceeds limit %.4f%%",
				leg.name, slip, g.cfg.MaxSlippagePercent)
		}
	}

	return nil
}

// bidAskSpreadPercent - ширина стакана как оценка проскальзывания
func bidAskSpreadPercent(q *marketdata.Quote) (float64, error) {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0, fmt.Errorf("invalid quote: bid=%f ask=%f", q.Bid, q.Ask)
	}
	return (q.Ask - q.Bid) / q.Bid * 100, nil
}
