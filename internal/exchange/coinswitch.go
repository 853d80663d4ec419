package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fundingbot/pkg/ratelimit"
)

const defaultBaseURL = "https://coinswitch.co"

// Лимиты REST API: ведро на 10 запросов/сек с burst 20 покрывает
// параллельное размещение ног и фоновые опросы ордеров
const (
	requestRate  = 10
	requestBurst = 20
)

// Эндпоинты торгового API
const (
	pathSpotOrder    = "/trade/api/v2/order"
	pathFuturesOrder = "/trade/api/v2/futures/order"
	pathPortfolio    = "/trade/api/v2/user/portfolio"
)

// CoinSwitch - live-реализация Exchange поверх REST API CoinSwitch PRO.
// Все запросы подписываются Ed25519-подписью через Signer.
type CoinSwitch struct {
	baseURL string
	signer  *Signer
	client  *http.Client
	limiter *ratelimit.Limiter
}

// NewCoinSwitch создаёт live-клиент биржи
func NewCoinSwitch(apiKey, secretKey string) (*CoinSwitch, error) {
	signer, err := NewSigner(apiKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	return &CoinSwitch{
		baseURL: defaultBaseURL,
		signer:  signer,
		client:  sharedHTTPClient(),
		limiter: ratelimit.New(requestRate, requestBurst),
	}, nil
}

// Name возвращает имя биржи
func (c *CoinSwitch) Name() string {
	return "coinswitch"
}

// Connect проверяет учётные данные запросом портфеля.
// Любая auth-ошибка здесь фатальна для запуска бота.
func (c *CoinSwitch) Connect(ctx context.Context) error {
	_, err := c.GetBalance(ctx)
	return err
}

// PlaceOrder размещает ордер на соответствующем сегменте
func (c *CoinSwitch) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	path, err := orderPath(req.Market)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"quantity": req.Quantity,
		"exchange": "coinswitchx",
	}
	if req.Market == MarketFutures {
		payload["exchange"] = "csx_futures"
	}
	if req.Price > 0 {
		payload["type"] = "limit"
		payload["price"] = req.Price
	} else {
		payload["type"] = "market"
	}

	var resp struct {
		Data struct {
			OrderID      string  `json:"order_id"`
			Symbol       string  `json:"symbol"`
			Side         string  `json:"side"`
			OrderQty     float64 `json:"orderqty"`
			ExecQty      float64 `json:"exec_qty"`
			AvgExecPrice float64 `json:"avg_exec_price"`
			Status       string  `json:"status"`
			CreatedTime  int64   `json:"created_time"`
		} `json:"data"`
	}

	if err := c.doRequest(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}

	return &Order{
		ID:           resp.Data.OrderID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Market:       req.Market,
		Quantity:     req.Quantity,
		FilledQty:    resp.Data.ExecQty,
		AvgFillPrice: resp.Data.AvgExecPrice,
		Status:       mapOrderStatus(resp.Data.Status),
		CreatedAt:    time.UnixMilli(resp.Data.CreatedTime),
	}, nil
}

// GetOrder запрашивает состояние ордера по ID
func (c *CoinSwitch) GetOrder(ctx context.Context, market, orderID string) (*Order, error) {
	path, err := orderPath(market)
	if err != nil {
		return nil, err
	}
	path = path + "?order_id=" + orderID

	var resp struct {
		Data struct {
			OrderID      string  `json:"order_id"`
			Symbol       string  `json:"symbol"`
			Side         string  `json:"side"`
			OrderQty     float64 `json:"orderqty"`
			ExecQty      float64 `json:"exec_qty"`
			AvgExecPrice float64 `json:"avg_exec_price"`
			Status       string  `json:"status"`
			CreatedTime  int64   `json:"created_time"`
		} `json:"data"`
	}

	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	return &Order{
		ID:           resp.Data.OrderID,
		Symbol:       resp.Data.Symbol,
		Side:         resp.Data.Side,
		Market:       market,
		Quantity:     resp.Data.OrderQty,
		FilledQty:    resp.Data.ExecQty,
		AvgFillPrice: resp.Data.AvgExecPrice,
		Status:       mapOrderStatus(resp.Data.Status),
		CreatedAt:    time.UnixMilli(resp.Data.CreatedTime),
	}, nil
}

// CancelOrder отменяет неисполненный ордер
func (c *CoinSwitch) CancelOrder(ctx context.Context, market, orderID string) error {
	path, err := orderPath(market)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{"order_id": orderID}
	return c.doRequest(ctx, http.MethodDelete, path, payload, nil)
}

// GetBalance возвращает доступный баланс INR из портфеля
func (c *CoinSwitch) GetBalance(ctx context.Context) (float64, error) {
	var resp struct {
		Data []struct {
			Currency string  `json:"currency"`
			MainBal  float64 `json:"main_balance,string"`
		} `json:"data"`
	}

	if err := c.doRequest(ctx, http.MethodGet, pathPortfolio, nil, &resp); err != nil {
		return 0, err
	}

	for _, b := range resp.Data {
		if b.Currency == "INR" {
			return b.MainBal, nil
		}
	}
	return 0, nil
}

// Close освобождает ресурсы. HTTP-клиент общий, закрывать нечего.
func (c *CoinSwitch) Close() error {
	return nil
}

// doRequest выполняет подписанный запрос и разбирает ответ в out.
// Перед отправкой запрос проходит через локальный rate limiter,
// чтобы не упираться в 429 на стороне биржи.
func (c *CoinSwitch) doRequest(ctx context.Context, method, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Exchange: c.Name(), Kind: KindTransient, Message: "rate limit wait", Original: err}
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return &Error{Exchange: c.Name(), Kind: KindMalformed, Message: "marshal request", Original: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Exchange: c.Name(), Kind: KindMalformed, Message: "build request", Original: err}
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.signer.Headers(method, path, string(body)) {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Exchange: c.Name(), Kind: KindTransient, Message: "request failed", Original: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Exchange: c.Name(), Kind: KindTransient, Message: "read response", Original: err}
	}

	if resp.StatusCode != http.StatusOK {
		return c.classifyHTTPError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Exchange: c.Name(), Kind: KindMalformed, Message: "decode response", Original: err}
		}
	}
	return nil
}

// classifyHTTPError сопоставляет HTTP-статус классу ошибки
func (c *CoinSwitch) classifyHTTPError(status int, raw []byte) error {
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	// тело может быть не-JSON, тогда остаётся только статус
	_ = json.Unmarshal(raw, &apiErr)

	msg := apiErr.Message
	if msg == "" {
		msg = fmt.Sprintf("http %d", status)
	}

	kind := KindTransient
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = KindRejected
	case status == http.StatusTooManyRequests:
		kind = KindTransient
	case status >= 500:
		kind = KindTransient
	}

	return &Error{Exchange: c.Name(), Kind: kind, Code: apiErr.Code, Message: msg}
}

func orderPath(market string) (string, error) {
	switch market {
	case MarketSpot:
		return pathSpotOrder, nil
	case MarketFutures:
		return pathFuturesOrder, nil
	default:
		return "", fmt.Errorf("unknown market: %s", market)
	}
}

// mapOrderStatus приводит статус биржи к внутреннему
func mapOrderStatus(s string) string {
	switch s {
	case "EXECUTED", "FILLED":
		return OrderStatusFilled
	case "CANCELLED", "EXPIRED":
		return OrderStatusCancelled
	case "REJECTED", "FAILED":
		return OrderStatusRejected
	case "OPEN", "PARTIALLY_EXECUTED", "NEW":
		return OrderStatusPending
	default:
		return OrderStatusPending
	}
}
