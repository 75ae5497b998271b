// Package config loads and validates the bot configuration from a YAML
// file, once at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"

	"solana-copy-trader/internal/domain"
)

// Config is the validated runtime configuration.
type Config struct {
	// Wallet is the operator wallet address.
	Wallet string
	// DryRun simulates swap execution and logs notifications instead of
	// sending them.
	DryRun bool
	// CanBuy and CanSell are global switches checked before any policy.
	CanBuy  bool
	CanSell bool

	RPCURL string
	WSURL  string

	PostgresDSN   string
	ClickhouseDSN string

	MetadataURL string
	PriceURL    string
	GatewayURL  string

	TelegramBotKey string
	TelegramChatID string

	MetricsAddr string

	ClassifyInterval time.Duration
	TradeInterval    time.Duration
	AlertInterval    time.Duration

	Policies []*domain.FollowPolicy
}

type rawConfig struct {
	Wallet  string `yaml:"wallet"`
	DryRun  bool   `yaml:"dry_run"`
	CanBuy  *bool  `yaml:"can_buy"`
	CanSell *bool  `yaml:"can_sell"`

	RPCURL string `yaml:"rpc_url"`
	WSURL  string `yaml:"ws_url"`

	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`

	MetadataURL string `yaml:"metadata_url"`
	PriceURL    string `yaml:"price_url"`
	GatewayURL  string `yaml:"gateway_url"`

	TelegramBotKey string `yaml:"telegram_bot_key"`
	TelegramChatID string `yaml:"telegram_chat_id"`

	MetricsAddr string `yaml:"metrics_addr"`

	ClassifyInterval time.Duration `yaml:"classify_interval"`
	TradeInterval    time.Duration `yaml:"trade_interval"`
	AlertInterval    time.Duration `yaml:"alert_interval"`

	Policies []rawPolicy `yaml:"policies"`
}

type rawPolicy struct {
	Wallet          string  `yaml:"wallet"`
	Note            string  `yaml:"note"`
	FollowBuy       bool    `yaml:"follow_buy"`
	FollowSell      bool    `yaml:"follow_sell"`
	MinBuyingAmount float64 `yaml:"min_buying_amount"`
	MaxMarketValue  float64 `yaml:"max_market_value"`
	FollowPercent   float64 `yaml:"follow_percent"`
	FollowAmount    float64 `yaml:"follow_amount"`
	MaxFollowAmount float64 `yaml:"max_follow_amount"`
	DelaySeconds    int     `yaml:"delay_seconds"`
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := ValidateAddress(raw.Wallet); err != nil {
		return nil, fmt.Errorf("invalid 'wallet': %w", err)
	}
	if raw.RPCURL == "" {
		return nil, fmt.Errorf("'rpc_url' is required")
	}
	if raw.WSURL == "" {
		return nil, fmt.Errorf("'ws_url' is required")
	}
	if raw.PostgresDSN == "" {
		return nil, fmt.Errorf("'postgres_dsn' is required")
	}
	if !raw.DryRun {
		if raw.GatewayURL == "" {
			return nil, fmt.Errorf("'gateway_url' is required unless dry_run is set")
		}
		if raw.TelegramBotKey == "" || raw.TelegramChatID == "" {
			return nil, fmt.Errorf("'telegram_bot_key' and 'telegram_chat_id' are required unless dry_run is set")
		}
	}
	if len(raw.Policies) == 0 {
		return nil, fmt.Errorf("at least one policy is required")
	}

	cfg := &Config{
		Wallet:           raw.Wallet,
		DryRun:           raw.DryRun,
		CanBuy:           boolOr(raw.CanBuy, true),
		CanSell:          boolOr(raw.CanSell, true),
		RPCURL:           raw.RPCURL,
		WSURL:            raw.WSURL,
		PostgresDSN:      raw.PostgresDSN,
		ClickhouseDSN:    raw.ClickhouseDSN,
		MetadataURL:      raw.MetadataURL,
		PriceURL:         raw.PriceURL,
		GatewayURL:       raw.GatewayURL,
		TelegramBotKey:   raw.TelegramBotKey,
		TelegramChatID:   raw.TelegramChatID,
		MetricsAddr:      raw.MetricsAddr,
		ClassifyInterval: raw.ClassifyInterval,
		TradeInterval:    raw.TradeInterval,
		AlertInterval:    raw.AlertInterval,
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}

	seen := make(map[string]bool, len(raw.Policies))
	for i, p := range raw.Policies {
		if err := ValidateAddress(p.Wallet); err != nil {
			return nil, fmt.Errorf("policy %d: invalid 'wallet': %w", i, err)
		}
		if seen[p.Wallet] {
			return nil, fmt.Errorf("policy %d: duplicate wallet %s", i, p.Wallet)
		}
		seen[p.Wallet] = true

		if p.FollowPercent < 0 || p.FollowPercent > 1 {
			return nil, fmt.Errorf("policy %d: 'follow_percent' must be within [0, 1]", i)
		}
		if p.FollowAmount < 0 || p.MaxFollowAmount < 0 || p.MinBuyingAmount < 0 || p.MaxMarketValue < 0 {
			return nil, fmt.Errorf("policy %d: amounts must not be negative", i)
		}
		if p.DelaySeconds < 0 {
			return nil, fmt.Errorf("policy %d: 'delay_seconds' must not be negative", i)
		}

		cfg.Policies = append(cfg.Policies, &domain.FollowPolicy{
			Wallet:          p.Wallet,
			Note:            p.Note,
			FollowBuy:       p.FollowBuy,
			FollowSell:      p.FollowSell,
			MinBuyingAmount: p.MinBuyingAmount,
			MaxMarketValue:  p.MaxMarketValue,
			FollowPercent:   p.FollowPercent,
			FollowAmount:    p.FollowAmount,
			MaxFollowAmount: p.MaxFollowAmount,
			DelaySeconds:    p.DelaySeconds,
		})
	}

	return cfg, nil
}

// ValidateAddress checks that the address is a base58-encoded ed25519
// public key on the curve. Wallet addresses are always on-curve, unlike
// program-derived addresses.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address is empty")
	}
	decoded, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("address must decode to 32 bytes, got %d", len(decoded))
	}
	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		return fmt.Errorf("address is not on the ed25519 curve")
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
