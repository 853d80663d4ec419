package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fundingbot/pkg/retry"
)

// Conn - минимальный интерфейс соединения, нужный циклу фида.
// Выделен для подмены в тестах.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Ping(deadline time.Time) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Transport устанавливает соединение с потоковым API
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Config - настройки одного потокового соединения
type Config struct {
	Name             string   // имя фида для логов и метрик: spot, futures
	URL              string   // wss://... включая namespace
	Symbols          []string // пары для подписки, канонический вид BASE/QUOTE
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	MaxRetries       int // 0 = без лимита
	JitterFactor     float64
	ConnectTimeout   time.Duration
	SubscribeTimeout time.Duration // ожидание подтверждений подписки
	PingInterval     time.Duration
	ReadTimeout      time.Duration

	// AuthHeaders вычисляет заголовки аутентификации перед каждым
	// подключением. nil для публичных потоков.
	AuthHeaders func() http.Header
}

// Feed - одно потоковое соединение с автоматическим переподключением.
// Каждый классифицированный кадр передаётся в Handler. После
// переподключения подписки восстанавливаются заново.
type Feed struct {
	cfg       Config
	transport Transport
	tracker   *stateTracker
	handler   func(Message)
	logger    *zap.Logger

	reconnects    atomic.Int64
	droppedFrames atomic.Int64
}

// New создаёт фид. transport=nil даёт websocket-транспорт по умолчанию.
func New(cfg Config, transport Transport, handler func(Message), logger *zap.Logger) *Feed {
	if transport == nil {
		transport = &wsTransport{connectTimeout: cfg.ConnectTimeout, headers: cfg.AuthHeaders}
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 10 * time.Second
	}
	return &Feed{
		cfg:       cfg,
		transport: transport,
		tracker:   newStateTracker(),
		handler:   handler,
		logger:    logger.With(zap.String("feed", cfg.Name)),
	}
}

// State возвращает снимок наблюдаемого состояния соединения
func (f *Feed) State() ConnectionState {
	return f.tracker.snapshot(f.cfg.Name)
}

// Status возвращает текущее состояние
func (f *Feed) Status() Status {
	return f.tracker.current()
}

// Reconnects возвращает число переподключений с момента старта
func (f *Feed) Reconnects() int64 {
	return f.reconnects.Load()
}

// DroppedFrames возвращает число отброшенных нераспознанных кадров
func (f *Feed) DroppedFrames() int64 {
	return f.droppedFrames.Load()
}

// Run держит соединение открытым до отмены контекста.
// Возвращает ошибку только при терминальном отказе: исчерпаны
// попытки переподключения. Отмена контекста даёт ctx.Err().
func (f *Feed) Run(ctx context.Context) error {
	backoff := retry.Config{
		InitialDelay: f.cfg.InitialDelay,
		MaxDelay:     f.cfg.MaxDelay,
		Multiplier:   2.0,
		JitterFactor: f.cfg.JitterFactor,
	}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			f.tracker.transition(StatusDisconnected)
			return ctx.Err()
		}

		if f.cfg.MaxRetries > 0 && attempt >= f.cfg.MaxRetries {
			f.tracker.transition(StatusFailed)
			f.logger.Error("feed permanently failed, retry budget exhausted",
				zap.Int("attempts", attempt))
			return fmt.Errorf("feed %s: %d connection attempts exhausted", f.cfg.Name, attempt)
		}

		f.tracker.setAttempt(attempt)
		f.tracker.transition(StatusConnecting)

		err := f.runSession(ctx)
		if ctx.Err() != nil {
			f.tracker.transition(StatusDisconnected)
			return ctx.Err()
		}

		// сессия, дошедшая до streaming, сбрасывает счётчик попыток:
		// лимит относится к подряд идущим неудачам, не ко всей жизни фида
		if f.tracker.current() == StatusStreaming {
			attempt = -1
		}

		f.tracker.setError(err)
		f.tracker.transition(StatusReconnecting)
		f.reconnects.Add(1)

		delay := backoff.Delay(attempt)
		f.logger.Warn("feed session ended, reconnecting",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			f.tracker.transition(StatusDisconnected)
			return ctx.Err()
		}
	}
}

// runSession выполняет один жизненный цикл соединения:
// подключение, подписка, чтение до первой ошибки
func (f *Feed) runSession(ctx context.Context) error {
	dialCtx := ctx
	if f.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, f.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := f.transport.Dial(dialCtx, f.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	f.tracker.transition(StatusSubscribing)

	for _, symbol := range f.cfg.Symbols {
		payload := map[string]string{"event": "subscribe", "pair": symbol}
		if err := conn.WriteJSON(payload); err != nil {
			return fmt.Errorf("subscribe %s: %w", symbol, err)
		}
	}

	// закрытие соединения при отмене контекста выбивает блокирующий Read
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// ping поддерживает соединение; писать в сокет после этой точки
	// может только ping-горутина и больше никто
	if f.cfg.PingInterval > 0 {
		go f.pingPump(conn, done)
	}

	return f.readLoop(conn)
}

// pingPump периодически шлёт ping до закрытия сессии
func (f *Feed) pingPump(conn Conn, done <-chan struct{}) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(time.Now().Add(5 * time.Second)); err != nil {
				conn.Close() // выбиваем readLoop
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop читает кадры до ошибки. Подтверждения подписки
// собираются до дедлайна; частичная подписка допустима, нулевая -
// причина переподключения.
func (f *Feed) readLoop(conn Conn) error {
	acked := make(map[string]bool)
	ackDeadline := time.Now().Add(f.cfg.SubscribeTimeout)

	for {
		if f.cfg.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout)); err != nil {
				return fmt.Errorf("set read deadline: %w", err)
			}
		}

		raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		now := time.Now()
		f.tracker.touch(now)
		msg := Classify(raw, now)

		if f.tracker.current() == StatusSubscribing {
			if msg.Kind == KindAck && msg.Symbol != "" {
				acked[msg.Symbol] = true
			}
			if done, err := f.checkSubscriptions(acked, now.After(ackDeadline)); err != nil {
				return err
			} else if done {
				f.tracker.transition(StatusStreaming)
			}
		}

		switch msg.Kind {
		case KindUnrecognized:
			f.droppedFrames.Add(1)
			f.logger.Debug("dropped unrecognized frame")
		case KindAck:
			// учтено выше
		default:
			if f.handler != nil {
				f.handler(msg)
			}
		}
	}
}

// checkSubscriptions решает, завершена ли фаза подписки.
// done=true - переходить в streaming, err!=nil - переподключаться.
func (f *Feed) checkSubscriptions(acked map[string]bool, deadlineHit bool) (bool, error) {
	if len(acked) == len(f.cfg.Symbols) {
		f.tracker.setSubscribed(ackedList(acked))
		f.logger.Info("all subscriptions confirmed", zap.Int("count", len(acked)))
		return true, nil
	}

	if !deadlineHit {
		return false, nil
	}

	if len(acked) == 0 {
		return false, fmt.Errorf("no subscriptions confirmed within %v", f.cfg.SubscribeTimeout)
	}

	// частичная подписка: работаем с тем, что подтвердилось
	f.tracker.setSubscribed(ackedList(acked))
	f.logger.Warn("partial subscription confirmation",
		zap.Int("confirmed", len(acked)),
		zap.Int("requested", len(f.cfg.Symbols)))
	return true, nil
}

func ackedList(acked map[string]bool) []string {
	out := make([]string, 0, len(acked))
	for s := range acked {
		out = append(out, s)
	}
	return out
}

// wsTransport - транспорт по умолчанию поверх gorilla/websocket
type wsTransport struct {
	connectTimeout time.Duration
	headers        func() http.Header
}

func (t *wsTransport) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: t.connectTimeout,
	}
	var hdr http.Header
	if t.headers != nil {
		hdr = t.headers()
	}
	conn, _, err := dialer.DialContext(ctx, url, hdr)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// wsConn адаптирует *websocket.Conn под интерфейс Conn
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v interface{}) error {
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Ping(deadline time.Time) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
