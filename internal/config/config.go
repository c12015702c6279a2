package config

import (
	"flag"
	"os"
	"time"

	"github.com/agamariel/editmart/internal/models"
	"github.com/shopspring/decimal"
)

// Config содержит конфигурацию приложения.
type Config struct {
	RunAddress      string
	DatabaseURI     string
	GatewayAddress  string
	GatewaySecret   string
	JWTSecret       string
	TokenExpiration time.Duration

	Marketplace MarketplaceConfig
}

// MarketplaceConfig собирает бизнес-константы маркетплейса в одном месте,
// чтобы лимиты и суммы не дублировались по сервисам.
type MarketplaceConfig struct {
	ActiveJobLimit     int
	RevisionLimit      int
	DepositSlashAmount decimal.Decimal
	GhostRefundPercent int64
	PlatformFeePercent int64

	DepositDeadline    time.Duration
	UnassignedTimeout  time.Duration
	NotStartedTimeout  time.Duration
	GhostEditorTimeout time.Duration
	CommunicationGap   time.Duration
	FileRetention      time.Duration

	SweepInterval      time.Duration
	CleanupInterval    time.Duration
	InactivityInterval time.Duration

	TierDeposits map[models.EditingTier]decimal.Decimal
}

// Load загружает конфигурацию из флагов командной строки и переменных окружения.
// Приоритет: переменные окружения > флаги > значения по умолчанию.
func Load() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "адрес и порт запуска сервиса")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "строка подключения к PostgreSQL")
	flag.StringVar(&cfg.GatewayAddress, "g", "", "адрес платёжного шлюза")
	flag.Parse()

	if envRunAddr := os.Getenv("RUN_ADDRESS"); envRunAddr != "" {
		cfg.RunAddress = envRunAddr
	}
	if envDBURI := os.Getenv("DATABASE_URI"); envDBURI != "" {
		cfg.DatabaseURI = envDBURI
	}
	if envGateway := os.Getenv("GATEWAY_ADDRESS"); envGateway != "" {
		cfg.GatewayAddress = envGateway
	}

	cfg.GatewaySecret = os.Getenv("GATEWAY_SECRET")

	// JWT секрет
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "default-secret-change-in-production"
	}

	// Время жизни токена
	cfg.TokenExpiration = 24 * time.Hour

	cfg.Marketplace = DefaultMarketplace()

	return cfg
}

// DefaultMarketplace возвращает бизнес-константы по умолчанию.
func DefaultMarketplace() MarketplaceConfig {
	return MarketplaceConfig{
		ActiveJobLimit:     2,
		RevisionLimit:      2,
		DepositSlashAmount: decimal.NewFromInt(500),
		GhostRefundPercent: 50,
		PlatformFeePercent: 10,

		DepositDeadline:    24 * time.Hour,
		UnassignedTimeout:  72 * time.Hour,
		NotStartedTimeout:  24 * time.Hour,
		GhostEditorTimeout: 7 * 24 * time.Hour,
		CommunicationGap:   48 * time.Hour,
		FileRetention:      14 * 24 * time.Hour,

		SweepInterval:      time.Hour,
		CleanupInterval:    6 * time.Hour,
		InactivityInterval: 12 * time.Hour,

		TierDeposits: map[models.EditingTier]decimal.Decimal{
			models.TierBasic:        decimal.NewFromInt(199),
			models.TierProfessional: decimal.NewFromInt(499),
			models.TierPremium:      decimal.NewFromInt(1499),
		},
	}
}

// DepositForTier возвращает сумму депозита для тарифа.
// Для неизвестного тарифа используется депозит базового тарифа.
func (m MarketplaceConfig) DepositForTier(tier models.EditingTier) decimal.Decimal {
	if d, ok := m.TierDeposits[tier]; ok {
		return d
	}
	return m.TierDeposits[models.TierBasic]
}
