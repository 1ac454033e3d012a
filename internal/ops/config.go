// Package ops loads and validates the JSON runtime configuration: the
// counterparty endpoint, the optional trade-history store and the account
// activation records.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
	"main/internal/session"
	"main/internal/signal"
	pkgconn "main/pkg/conn"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Endpoint EndpointConfig  `json:"endpoint"`
	Store    StoreConfig     `json:"store"`
	Engine   EngineConfig    `json:"engine"`
	Accounts []AccountConfig `json:"accounts"`
}

// EndpointConfig locates the counterparty websocket API.
type EndpointConfig struct {
	URL string `json:"url"`
}

// StoreConfig describes the optional postgres trade-history store.
type StoreConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// EngineConfig captures optional engine tuning knobs.
type EngineConfig struct {
	EventQueueSize        int `json:"eventQueueSize"`
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`
	MonitorTimeoutSeconds int `json:"monitorTimeoutSeconds"`
	Attempts              int `json:"attempts"`
}

// AccountConfig is one account activation record. Monetary amounts are
// decimal strings so the file never carries float artifacts.
type AccountConfig struct {
	ID             string         `json:"id"`
	Token          string         `json:"token"`
	Currency       string         `json:"currency"`
	Symbol         string         `json:"symbol"`
	BaseStake      string         `json:"baseStake"`
	Profile        string         `json:"profile"`
	DailyTarget    string         `json:"dailyTarget"`
	DailyLossLimit string         `json:"dailyLossLimit"`
	TrailingStop   bool           `json:"trailingStop"`
	Provider       string         `json:"provider"`
	DurationTicks  int            `json:"durationTicks"`
	PipDigits      int            `json:"pipDigits"`
	Recovery       RecoveryConfig `json:"recovery"`
}

// RecoveryConfig selects the instrument recovery wagers switch to.
type RecoveryConfig struct {
	Contract string `json:"contract"`
	Barrier  string `json:"barrier"`
	Payout   string `json:"payout"`
}

// Engine holds the resolved engine knobs.
type Engine struct {
	EventQueueSize int
	RequestTimeout time.Duration
	MonitorTimeout time.Duration
	Attempts       int
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	EndpointURL string
	Store       *pkgconn.Option
	Engine      Engine
	Accounts    []session.Config
	// Symbols is the deduplicated set of symbols the accounts trade.
	Symbols []string
}

// Load reads a JSON config file and resolves every account record.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}

	if cfg.Endpoint.URL == "" {
		return Loaded{}, fmt.Errorf("endpoint url is empty")
	}
	if len(cfg.Accounts) == 0 {
		return Loaded{}, fmt.Errorf("no accounts configured")
	}

	loaded := Loaded{
		EndpointURL: cfg.Endpoint.URL,
		Engine:      resolveEngine(cfg.Engine),
	}

	seen := make(map[string]struct{}, len(cfg.Accounts))
	symbols := make(map[string]struct{})
	for _, acc := range cfg.Accounts {
		resolved, err := resolveAccount(acc)
		if err != nil {
			return Loaded{}, fmt.Errorf("account %s: %w", acc.ID, err)
		}
		if _, dup := seen[resolved.AccountID]; dup {
			return Loaded{}, fmt.Errorf("duplicate account id: %s", resolved.AccountID)
		}
		seen[resolved.AccountID] = struct{}{}
		symbols[resolved.Symbol] = struct{}{}
		loaded.Accounts = append(loaded.Accounts, resolved)
	}
	for s := range symbols {
		loaded.Symbols = append(loaded.Symbols, s)
	}

	if cfg.Store.Enabled {
		loaded.Store = &pkgconn.Option{
			Host:     cfg.Store.Host,
			Port:     cfg.Store.Port,
			User:     cfg.Store.User,
			Password: cfg.Store.Password,
			Database: cfg.Store.Database,
			SSLMode:  cfg.Store.SSLMode,
		}
	}
	return loaded, nil
}

func resolveEngine(cfg EngineConfig) Engine {
	eng := Engine{
		EventQueueSize: 256,
		RequestTimeout: 60 * time.Second,
		MonitorTimeout: 90 * time.Second,
		Attempts:       3,
	}
	if cfg.EventQueueSize > 0 {
		eng.EventQueueSize = cfg.EventQueueSize
	}
	if cfg.RequestTimeoutSeconds > 0 {
		eng.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	if cfg.MonitorTimeoutSeconds > 0 {
		eng.MonitorTimeout = time.Duration(cfg.MonitorTimeoutSeconds) * time.Second
	}
	if cfg.Attempts > 0 {
		eng.Attempts = cfg.Attempts
	}
	return eng
}

func resolveAccount(acc AccountConfig) (session.Config, error) {
	if acc.ID == "" {
		return session.Config{}, fmt.Errorf("account id is empty")
	}
	if acc.Token == "" {
		return session.Config{}, fmt.Errorf("token is empty")
	}
	if acc.Symbol == "" {
		return session.Config{}, fmt.Errorf("symbol is empty")
	}

	baseStake, err := decimal.NewFromString(acc.BaseStake)
	if err != nil || !baseStake.IsPositive() {
		return session.Config{}, fmt.Errorf("baseStake must be a positive decimal, got %q", acc.BaseStake)
	}
	target, err := decimal.NewFromString(acc.DailyTarget)
	if err != nil || !target.IsPositive() {
		return session.Config{}, fmt.Errorf("dailyTarget must be a positive decimal, got %q", acc.DailyTarget)
	}
	lossLimit, err := decimal.NewFromString(acc.DailyLossLimit)
	if err != nil || !lossLimit.IsPositive() {
		return session.Config{}, fmt.Errorf("dailyLossLimit must be a positive decimal, got %q", acc.DailyLossLimit)
	}

	profile := acc.Profile
	if profile == "" {
		profile = "conservative"
	}
	kind, ok := enum.ParseRiskProfileKind(profile)
	if !ok {
		return session.Config{}, fmt.Errorf("unknown profile: %s", profile)
	}
	if _, err := signal.For(acc.Provider); err != nil {
		return session.Config{}, fmt.Errorf("provider %q: %w", acc.Provider, err)
	}

	// The recovery instrument is optional: without one, recovery wagers
	// stay on the base instrument and its typical payout rate.
	var recoveryContract enum.ContractType
	recoveryPayout := decimal.NewFromFloat(0.85)
	if acc.Recovery.Contract != "" {
		recoveryContract, ok = enum.ParseContractType(acc.Recovery.Contract)
		if !ok {
			return session.Config{}, fmt.Errorf("unknown recovery contract: %s", acc.Recovery.Contract)
		}
		recoveryPayout, err = decimal.NewFromString(acc.Recovery.Payout)
		if err != nil || !recoveryPayout.IsPositive() {
			return session.Config{}, fmt.Errorf("recovery payout must be a positive decimal, got %q", acc.Recovery.Payout)
		}
	}

	durationTicks := acc.DurationTicks
	if durationTicks <= 0 {
		durationTicks = 5
	}
	pipDigits := acc.PipDigits
	if pipDigits <= 0 {
		pipDigits = 2
	}

	currency := acc.Currency
	if currency == "" {
		currency = "USD"
	}

	return session.Config{
		AccountID:        acc.ID,
		Token:            acc.Token,
		Currency:         currency,
		Symbol:           acc.Symbol,
		BaseStake:        baseStake,
		ProfileKind:      kind,
		DailyTarget:      target,
		DailyLossLimit:   lossLimit,
		TrailingStop:     acc.TrailingStop,
		Provider:         acc.Provider,
		DurationTicks:    durationTicks,
		PipDigits:        pipDigits,
		RecoveryContract: recoveryContract,
		RecoveryBarrier:  acc.Recovery.Barrier,
		RecoveryPayout:   recoveryPayout,
	}, nil
}
