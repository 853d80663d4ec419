package bot

import "fundingbot/internal/models"

// ValidTransitions определяет допустимые переходы между состояниями позиции
var ValidTransitions = map[string][]string{
	models.PositionStatePending:    {models.PositionStateOpen, models.PositionStateFailed},
	models.PositionStateOpen:       {models.PositionStateMonitoring, models.PositionStateClosing, models.PositionStateFailed},
	models.PositionStateMonitoring: {models.PositionStateClosing, models.PositionStateFailed},
	models.PositionStateClosing:    {models.PositionStateClosed, models.PositionStateFailed},
	models.PositionStateClosed:     {}, // терминальное
	models.PositionStateFailed:     {}, // терминальное
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для отчётности
func StateInfo(s string) string {
	switch s {
	case models.PositionStatePending:
		return "Ноги отправлены, ожидание исполнения"
	case models.PositionStateOpen:
		return "Обе ноги исполнены"
	case models.PositionStateMonitoring:
		return "Позиция под наблюдением"
	case models.PositionStateClosing:
		return "Закрытие позиции..."
	case models.PositionStateClosed:
		return "Позиция закрыта"
	case models.PositionStateFailed:
		return "Ошибка! Остаточный риск, требуется вмешательство"
	default:
		return "Неизвестное состояние"
	}
}

// IsLive возвращает true, если позиция несёт рыночный риск
func IsLive(s string) bool {
	return s == models.PositionStatePending || s == models.PositionStateOpen ||
		s == models.PositionStateMonitoring || s == models.PositionStateClosing
}
