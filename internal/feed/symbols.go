package feed

import "strings"

// Известные котируемые валюты для разбора слитной записи (BTCINR).
// Порядок важен: более длинные суффиксы проверяются первыми.
var knownQuotes = []string{"USDT", "USDC", "INR", "BTC", "ETH"}

// NormalizeSymbol приводит обозначение пары к каноническому виду
// BASE/QUOTE в верхнем регистре. Принимаются разделители "/", "-",
// "_" и слитная запись с известной котируемой валютой.
// Неразборчивый вход возвращается как есть (в верхнем регистре) -
// такой символ просто не совпадёт ни с одной подпиской.
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return s
	}

	for _, sep := range []string{"/", "-", "_"} {
		if strings.Contains(s, sep) {
			parts := strings.SplitN(s, sep, 2)
			if parts[0] != "" && parts[1] != "" {
				return parts[0] + "/" + parts[1]
			}
			return s
		}
	}

	for _, q := range knownQuotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)] + "/" + q
		}
	}

	return s
}
