package exchange

import (
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	sharedClient     *http.Client
	sharedClientOnce sync.Once
)

// sharedHTTPClient возвращает общий HTTP-клиент с пулом соединений.
// Один клиент на процесс: повторное использование TCP-соединений
// заметно снижает латентность размещения ордеров.
func sharedHTTPClient() *http.Client {
	sharedClientOnce.Do(func() {
		transport := &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		}

		sharedClient = &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		}
	})

	return sharedClient
}
