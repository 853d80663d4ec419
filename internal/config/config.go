package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Mode     string // simulated | live
	Server   ServerConfig
	Database DatabaseConfig
	Exchange ExchangeConfig
	Trading  TradingConfig
	Feed     FeedConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера (статус и метрики)
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig - настройки подключения к БД.
// Enabled=false переводит бота в режим без персистентности
// (история позиций только в памяти).
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// ExchangeConfig - учётные данные биржи
type ExchangeConfig struct {
	APIKey           string
	SecretKey        string // hex-представление ключа Ed25519
	SimulatedBalance float64
}

// TradingConfig - торговые параметры стратегии
type TradingConfig struct {
	Symbols                 []string      // торгуемые пары, BTC/INR
	MinFundingRate          float64       // минимальная ставка финансирования для входа, %
	MinSpreadPercent        float64       // нижняя граница спреда фьючерс/спот, %
	MaxSpreadPercent        float64       // верхняя граница спреда, %
	PositionNotional        float64       // размер позиции в котируемой валюте
	MaxOpenPositions        int           // лимит одновременных позиций
	MaxSlippagePercent      float64       // максимально допустимый спред bid/ask при входе, %
	HoldingDuration         time.Duration // срок удержания позиции
	FundingIntervalsPerYear float64       // для годовой доходности (8-часовые выплаты: 1095)
	MaxQuoteAge             time.Duration // старше - котировка считается протухшей
	ScanInterval            time.Duration // период поиска возможностей
	MonitorInterval         time.Duration // период проверки открытых позиций
	OpportunityTTL          time.Duration // срок жизни мемоизированной оценки
}

// FeedConfig - настройки потоковых соединений
type FeedConfig struct {
	SpotURL        string
	FuturesURL     string
	UserURL        string // аутентифицированный пользовательский поток (live)
	InitialDelay   time.Duration // стартовая задержка переподключения
	MaxDelay       time.Duration // потолок задержки переподключения
	MaxRetries     int           // 0 = без лимита
	JitterFactor   float64       // доля случайного разброса задержки
	ConnectTimeout time.Duration
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	ReadyTimeout   time.Duration // сколько ждать первых данных перед стартом торговли
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Mode: getEnv("BOT_MODE", "simulated"),
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "fundingbot"),
			User:     getEnv("DB_USER", "fundingbot"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Exchange: ExchangeConfig{
			APIKey:           getEnv("COINSWITCH_API_KEY", ""),
			SecretKey:        getEnv("COINSWITCH_SECRET_KEY", ""),
			SimulatedBalance: getEnvAsFloat("SIMULATED_BALANCE", 1000000),
		},
		Trading: TradingConfig{
			Symbols:                 getEnvAsList("TRADING_SYMBOLS", []string{"BTC/INR", "ETH/INR"}),
			MinFundingRate:          getEnvAsFloat("MIN_FUNDING_RATE", 0.01),
			MinSpreadPercent:        getEnvAsFloat("MIN_SPREAD_PERCENT", -0.5),
			MaxSpreadPercent:        getEnvAsFloat("MAX_SPREAD_PERCENT", 1.0),
			PositionNotional:        getEnvAsFloat("POSITION_NOTIONAL", 10000),
			MaxOpenPositions:        getEnvAsInt("MAX_OPEN_POSITIONS", 3),
			MaxSlippagePercent:      getEnvAsFloat("MAX_SLIPPAGE_PERCENT", 0.3),
			HoldingDuration:         getEnvAsDuration("HOLDING_DURATION", 8*time.Hour),
			FundingIntervalsPerYear: getEnvAsFloat("FUNDING_INTERVALS_PER_YEAR", 1095),
			MaxQuoteAge:             getEnvAsDuration("MAX_QUOTE_AGE", 30*time.Second),
			ScanInterval:            getEnvAsDuration("SCAN_INTERVAL", 30*time.Second),
			MonitorInterval:         getEnvAsDuration("MONITOR_INTERVAL", 60*time.Second),
			OpportunityTTL:          getEnvAsDuration("OPPORTUNITY_TTL", 10*time.Second),
		},
		Feed: FeedConfig{
			SpotURL:        getEnv("FEED_SPOT_URL", "wss://ws.coinswitch.co/coinswitchx"),
			FuturesURL:     getEnv("FEED_FUTURES_URL", "wss://ws.coinswitch.co/csx-futures"),
			UserURL:        getEnv("FEED_USER_URL", "wss://ws.coinswitch.co/csx-account"),
			InitialDelay:   getEnvAsDuration("FEED_INITIAL_DELAY", 1*time.Second),
			MaxDelay:       getEnvAsDuration("FEED_MAX_DELAY", 30*time.Second),
			MaxRetries:     getEnvAsInt("FEED_MAX_RETRIES", 0),
			JitterFactor:   getEnvAsFloat("FEED_JITTER_FACTOR", 0.2),
			ConnectTimeout: getEnvAsDuration("FEED_CONNECT_TIMEOUT", 10*time.Second),
			PingInterval:   getEnvAsDuration("FEED_PING_INTERVAL", 15*time.Second),
			ReadTimeout:    getEnvAsDuration("FEED_READ_TIMEOUT", 60*time.Second),
			ReadyTimeout:   getEnvAsDuration("FEED_READY_TIMEOUT", 2*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateMode(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateMode проверяет режим и учётные данные для live
func (c *Config) validateMode() error {
	switch strings.ToLower(c.Mode) {
	case "simulated":
		return nil
	case "live":
		if c.Exchange.APIKey == "" {
			return fmt.Errorf("COINSWITCH_API_KEY is required in live mode")
		}
		if c.Exchange.SecretKey == "" {
			return fmt.Errorf("COINSWITCH_SECRET_KEY is required in live mode")
		}
		return nil
	default:
		return fmt.Errorf("BOT_MODE must be simulated or live, got %q", c.Mode)
	}
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Enabled && (c.Database.Port < 1 || c.Database.Port > 65535) {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("TRADING_SYMBOLS must list at least one pair")
	}

	if c.Trading.PositionNotional <= 0 {
		return fmt.Errorf("POSITION_NOTIONAL must be positive, got %v", c.Trading.PositionNotional)
	}

	if c.Trading.MaxOpenPositions < 1 {
		return fmt.Errorf("MAX_OPEN_POSITIONS must be at least 1, got %d", c.Trading.MaxOpenPositions)
	}

	if c.Trading.MinSpreadPercent >= c.Trading.MaxSpreadPercent {
		return fmt.Errorf("MIN_SPREAD_PERCENT (%v) must be less than MAX_SPREAD_PERCENT (%v)",
			c.Trading.MinSpreadPercent, c.Trading.MaxSpreadPercent)
	}

	if c.Trading.MaxSlippagePercent <= 0 {
		return fmt.Errorf("MAX_SLIPPAGE_PERCENT must be positive, got %v", c.Trading.MaxSlippagePercent)
	}

	if c.Trading.HoldingDuration <= 0 || c.Trading.HoldingDuration > 24*time.Hour {
		return fmt.Errorf("HOLDING_DURATION must be in (0, 24h], got %v", c.Trading.HoldingDuration)
	}

	if c.Trading.FundingIntervalsPerYear <= 0 {
		return fmt.Errorf("FUNDING_INTERVALS_PER_YEAR must be positive, got %v", c.Trading.FundingIntervalsPerYear)
	}

	if c.Trading.ScanInterval <= 0 || c.Trading.MonitorInterval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL and MONITOR_INTERVAL must be positive")
	}

	if c.Trading.OpportunityTTL <= 0 {
		return fmt.Errorf("OPPORTUNITY_TTL must be positive, got %v", c.Trading.OpportunityTTL)
	}

	if c.Trading.MaxQuoteAge <= 0 {
		return fmt.Errorf("MAX_QUOTE_AGE must be positive, got %v", c.Trading.MaxQuoteAge)
	}

	if c.Feed.InitialDelay <= 0 {
		return fmt.Errorf("FEED_INITIAL_DELAY must be positive, got %v", c.Feed.InitialDelay)
	}

	if c.Feed.MaxDelay < c.Feed.InitialDelay {
		return fmt.Errorf("FEED_MAX_DELAY (%v) must be >= FEED_INITIAL_DELAY (%v)",
			c.Feed.MaxDelay, c.Feed.InitialDelay)
	}

	if c.Feed.MaxRetries < 0 {
		return fmt.Errorf("FEED_MAX_RETRIES cannot be negative, got %d", c.Feed.MaxRetries)
	}

	if c.Feed.JitterFactor < 0 || c.Feed.JitterFactor > 1 {
		return fmt.Errorf("FEED_JITTER_FACTOR must be in [0, 1], got %v", c.Feed.JitterFactor)
	}

	if c.Feed.ReadTimeout <= 0 {
		return fmt.Errorf("FEED_READ_TIMEOUT must be positive, got %v", c.Feed.ReadTimeout)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
