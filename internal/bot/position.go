package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"fundingbot/internal/marketdata"
	"fundingbot/internal/models"
)

// PositionStore сохраняет позиции. Реализуется репозиторием;
// nil-store допустим (режим без персистентности).
type PositionStore interface {
	SavePosition(ctx context.Context, pos *models.Position) error
}

// positionHistoryLimit - сколько завершённых позиций держится в памяти
const positionHistoryLimit = 100

// Manager ведёт жизненный цикл открытых позиций: периодически
// проверяет условия закрытия и запускает закрытие через координатор.
// Переходы состояний идут только по таблице ValidTransitions.
type Manager struct {
	coordinator *Coordinator
	cache       *marketdata.Cache
	store       PositionStore
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.RWMutex
	active  map[string]*models.Position
	history []models.Position

	monitorRunning atomic.Bool
}

// NewManager создаёт менеджер позиций
func NewManager(coordinator *Coordinator, cache *marketdata.Cache, store PositionStore, logger *zap.Logger) *Manager {
	return &Manager{
		coordinator: coordinator,
		cache:       cache,
		store:       store,
		logger:      logger,
		now:         time.Now,
		active:      make(map[string]*models.Position),
	}
}

// Register ставит позицию под наблюдение. Терминальные позиции
// уходят сразу в историю.
func (m *Manager) Register(ctx context.Context, pos *models.Position) {
	m.persist(ctx, pos)

	m.mu.Lock()
	defer m.mu.Unlock()

	if pos.IsTerminal() {
		m.appendHistoryLocked(*pos)
		return
	}
	m.active[pos.ID] = pos
	ActivePositions.Set(float64(len(m.active)))
}

// ActiveCount возвращает число живых позиций
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Active возвращает копии живых позиций
func (m *Manager) Active() []models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Position, 0, len(m.active))
	for _, p := range m.active {
		out = append(out, *p)
	}
	return out
}

// History возвращает копии завершённых позиций (новые в конце)
func (m *Manager) History() []models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Position(nil), m.history...)
}

// Run проверяет позиции каждые interval до отмены контекста.
// Пропущенный тик (предыдущая проверка ещё идёт) не накапливается.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.monitorRunning.CompareAndSwap(false, true) {
				ScanSkipped.WithLabelValues("monitor").Inc()
				m.logger.Debug("monitor tick skipped, previous run in progress")
				continue
			}
			go func() {
				defer m.monitorRunning.Store(false)
				m.MonitorOnce(ctx)
			}()
		}
	}
}

// MonitorOnce выполняет одну проверку всех живых позиций
func (m *Manager) MonitorOnce(ctx context.Context) {
	for _, pos := range m.Active() {
		if ctx.Err() != nil {
			return
		}
		m.checkPosition(ctx, pos.ID)
	}
}

// checkPosition проверяет условия закрытия одной позиции
func (m *Manager) checkPosition(ctx context.Context, id string) {
	m.mu.Lock()
	pos, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return
	}

	// свежезарегистрированная позиция переводится под наблюдение
	if pos.State == models.PositionStateOpen {
		m.transitionLocked(pos, models.PositionStateMonitoring)
	}

	if pos.State != models.PositionStateMonitoring {
		m.mu.Unlock()
		return
	}

	reason := m.closeReason(pos)
	if reason == "" {
		m.mu.Unlock()
		return
	}

	m.transitionLocked(pos, models.PositionStateClosing)

	// закрытие идёт вне мьютекса: сетевые вызовы под блокировкой
	// остановили бы регистрацию и чтение позиций. Координатор
	// работает с копией, иначе его записи гонялись бы с читателями
	// Active(), копирующими позиции под RLock.
	closing := *pos
	m.mu.Unlock()

	m.logger.Info("close trigger fired",
		zap.String("position_id", closing.ID),
		zap.String("reason", reason))

	if err := m.coordinator.ClosePosition(ctx, &closing, reason); err != nil {
		m.logger.Error("position close failed",
			zap.String("position_id", closing.ID),
			zap.Error(err))
	}

	// исход закрытия возвращается в зарегистрированную позицию
	// только под мьютексом
	m.mu.Lock()
	pos.State = closing.State
	pos.CloseReason = closing.CloseReason
	pos.Compensation = closing.Compensation
	pos.ClosedAt = closing.ClosedAt
	if pos.IsTerminal() {
		delete(m.active, pos.ID)
		ActivePositions.Set(float64(len(m.active)))
		m.appendHistoryLocked(*pos)
	}
	m.mu.Unlock()

	m.persist(ctx, &closing)
}

// closeReason возвращает причину закрытия или пустую строку
func (m *Manager) closeReason(pos *models.Position) string {
	if !m.now().Before(pos.ScheduledCloseAt) {
		return models.CloseReasonHoldingElapsed
	}

	st := m.cache.Snapshot(pos.Symbol)
	if st.Funding != nil && st.Funding.Rate <= 0 {
		return models.CloseReasonFundingFlipped
	}

	return ""
}

// MarkShutdown помечает все живые позиции неопределённым исходом.
// Вызывается при остановке процесса: позиции остаются открытыми
// на бирже, оператор должен разобраться после рестарта.
func (m *Manager) MarkShutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pos := range m.active {
		pos.Compensation = models.CompensationUnknown
		m.logger.Warn("position left open at shutdown",
			zap.String("position_id", pos.ID),
			zap.String("state", pos.State))
		m.persist(ctx, pos)
	}
}

// transitionLocked переводит позицию в новое состояние по таблице.
// Вызывается только под m.mu.
func (m *Manager) transitionLocked(pos *models.Position, to string) {
	if !CanTransition(pos.State, to) {
		m.logger.Error("invalid position state transition",
			zap.String("position_id", pos.ID),
			zap.String("from", pos.State),
			zap.String("to", to))
		return
	}
	pos.State = to
}

func (m *Manager) appendHistoryLocked(pos models.Position) {
	m.history = append(m.history, pos)
	if len(m.history) > positionHistoryLimit {
		m.history = m.history[len(m.history)-positionHistoryLimit:]
	}
}

// persist сохраняет позицию, не прерывая торговый поток при ошибке
func (m *Manager) persist(ctx context.Context, pos *models.Position) {
	if m.store == nil {
		return
	}
	if err := m.store.SavePosition(context.WithoutCancel(ctx), pos); err != nil {
		m.logger.Error("failed to persist position",
			zap.String("position_id", pos.ID),
			zap.Error(err))
	}
}
