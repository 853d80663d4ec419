package exchange

import (
	"fmt"
	"strings"
)

// Режимы исполнения
const (
	ModeSimulated = "simulated"
	ModeLive      = "live"
)

// NewExchange создаёт реализацию Exchange по имени режима.
// Выбор делается один раз на старте процесса.
func NewExchange(mode, apiKey, secretKey string, simBalance float64) (Exchange, error) {
	switch strings.ToLower(mode) {
	case ModeSimulated:
		return NewSimulated(simBalance), nil
	case ModeLive:
		if apiKey == "" || secretKey == "" {
			return nil, fmt.Errorf("live mode requires api key and secret key")
		}
		return NewCoinSwitch(apiKey, secretKey)
	default:
		return nil, fmt.Errorf("unknown exchange mode: %s (want %s or %s)", mode, ModeSimulated, ModeLive)
	}
}
