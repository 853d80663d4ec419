package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/ed25519"
)

// Signer подписывает REST-запросы по схеме Ed25519.
// Канонический вид подписываемой строки: METHOD + path + epoch + body,
// где epoch - миллисекунды Unix. Подпись передаётся hex-строкой.
type Signer struct {
	apiKey string
	secret string // исходное hex-представление, ключ HMAC потокового API
	priv   ed25519.PrivateKey
	now    func() time.Time
}

// NewSigner создаёт подписанта из hex-представления секретного ключа.
// Принимается как 32-байтовый seed, так и полный 64-байтовый ключ.
func NewSigner(apiKey, secretHex string) (*Signer, error) {
	raw, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	default:
		return nil, fmt.Errorf("secret key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}

	return &Signer{
		apiKey: apiKey,
		secret: secretHex,
		priv:   priv,
		now:    time.Now,
	}, nil
}

// Sign возвращает hex-подпись для запроса с заданным epoch
func (s *Signer) Sign(method, path, epoch, body string) string {
	msg := method + path + epoch + body
	sig := ed25519.Sign(s.priv, []byte(msg))
	return hex.EncodeToString(sig)
}

// Headers возвращает аутентификационные заголовки для запроса.
// Epoch фиксируется в момент вызова, один на подпись и заголовок.
func (s *Signer) Headers(method, path, body string) map[string]string {
	epoch := strconv.FormatInt(s.now().UnixMilli(), 10)
	return map[string]string{
		"X-AUTH-SIGNATURE": s.Sign(method, path, epoch, body),
		"X-AUTH-EPOCH":     epoch,
		"X-AUTH-APIKEY":    s.apiKey,
	}
}

// StreamAuthHeaders возвращает заголовки аутентификации потокового
// соединения. Потоковый API подписывает apiKey+timestamp через
// HMAC-SHA256, ключом служит секрет в его hex-виде.
func (s *Signer) StreamAuthHeaders() http.Header {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(s.apiKey + ts))

	h := http.Header{}
	h.Set("X-AUTH-APIKEY", s.apiKey)
	h.Set("X-AUTH-SIGNATURE", hex.EncodeToString(mac.Sum(nil)))
	h.Set("X-AUTH-TIMESTAMP", ts)
	return h
}
