// Package config defines all configuration for the surveillance engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via SURV_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	ClobRateLimits RateLimitsConfig `mapstructure:"clob_rate_limits"`
	Signals  SignalsConfig  `mapstructure:"signals"`
	Whale    WhaleConfig    `mapstructure:"whale"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Status   StatusConfig   `mapstructure:"status"`
}

// RealtimeConfig controls whether the stream processor runs at all, and the
// subscription client's reconnect/heartbeat timing.
type RealtimeConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelayMs  int           `mapstructure:"reconnect_delay_ms"`
	HeartbeatIntervalMs int         `mapstructure:"heartbeat_interval_ms"`
	WorkerPoolSize    int           `mapstructure:"worker_pool_size"`
}

// PolymarketConfig holds the feed and REST endpoints.
type PolymarketConfig struct {
	WSURL   string `mapstructure:"ws_url"`
	CLOBURL string `mapstructure:"clob_url"`
	BaseURL string `mapstructure:"base_url"`
}

// BucketConfig is one named token-bucket pool's (maxTokens, windowMs) pair.
type BucketConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
	WindowMs  int `mapstructure:"window_ms"`
}

// RateLimitsConfig names the three REST token-bucket pools.
type RateLimitsConfig struct {
	General BucketConfig `mapstructure:"general"`
	Book    BucketConfig `mapstructure:"book"`
	Trades  BucketConfig `mapstructure:"trades"`
}

// FreshWalletConfig tunes the fresh-wallet detector.
type FreshWalletConfig struct {
	Weight      float64 `mapstructure:"weight"`
	MaxAgeDays  float64 `mapstructure:"max_age_days"`
	MaxTrades   int     `mapstructure:"max_trades"`
	MinTradeSize float64 `mapstructure:"min_trade_size"`
}

// LiquidityImpactConfig tunes the liquidity-impact detector.
type LiquidityImpactConfig struct {
	Weight    float64 `mapstructure:"weight"`
	Threshold float64 `mapstructure:"threshold"`
}

// WalletAccuracyConfig tunes the wallet-accuracy detector.
type WalletAccuracyConfig struct {
	Weight              float64 `mapstructure:"weight"`
	MinWinRate          float64 `mapstructure:"min_win_rate"`
	MinResolvedPositions int    `mapstructure:"min_resolved_positions"`
}

// TimingPatternConfig tunes the timing-pattern detector.
type TimingPatternConfig struct {
	Weight                float64 `mapstructure:"weight"`
	WindowHours           float64 `mapstructure:"window_hours"`
	ConcentrationThreshold float64 `mapstructure:"concentration_threshold"`
}

// SniperClusterConfig tunes the sniper-cluster detector.
type SniperClusterConfig struct {
	Weight        float64 `mapstructure:"weight"`
	WindowMinutes float64 `mapstructure:"window_minutes"`
	MinWallets    int     `mapstructure:"min_wallets"`
}

// VolumeSpikeConfig tunes the auxiliary volume-spike market processor.
type VolumeSpikeConfig struct {
	Weight              float64 `mapstructure:"weight"`
	VolumeLiquidityRatio float64 `mapstructure:"volume_liquidity_ratio"`
}

// ProbabilityExtremeConfig tunes the auxiliary probability-extreme processor.
type ProbabilityExtremeConfig struct {
	Weight    float64 `mapstructure:"weight"`
	Threshold float64 `mapstructure:"threshold"`
}

// HighLiquidityConfig tunes the auxiliary high-liquidity processor.
type HighLiquidityConfig struct {
	Weight    float64 `mapstructure:"weight"`
	Threshold float64 `mapstructure:"threshold"`
}

// SignalsConfig groups every detector's tunables.
type SignalsConfig struct {
	FreshWallet        FreshWalletConfig        `mapstructure:"fresh_wallet"`
	LiquidityImpact    LiquidityImpactConfig    `mapstructure:"liquidity_impact"`
	WalletAccuracy     WalletAccuracyConfig     `mapstructure:"wallet_accuracy"`
	TimingPattern      TimingPatternConfig      `mapstructure:"timing_pattern"`
	SniperCluster      SniperClusterConfig      `mapstructure:"sniper_cluster"`
	VolumeSpike        VolumeSpikeConfig        `mapstructure:"volume_spike"`
	ProbabilityExtreme ProbabilityExtremeConfig `mapstructure:"probability_extreme"`
	HighLiquidity      HighLiquidityConfig      `mapstructure:"high_liquidity"`
}

// WhaleConfig tunes whale-trade detection and the probability adjuster's
// signal decay.
type WhaleConfig struct {
	MinNotionalUSD       float64 `mapstructure:"min_notional_usd"`
	DepthThresholdPercent float64 `mapstructure:"depth_threshold_percent"`
	Weight               float64 `mapstructure:"weight"`
	DecayHalfLifeMs      int64   `mapstructure:"decay_half_life_ms"`
	MaxSignalAgeMs       int64   `mapstructure:"max_signal_age_ms"`
}

// WalletConfig tunes the wallet tracker's bookkeeping limits.
type WalletConfig struct {
	ProfileRefreshIntervalMs int `mapstructure:"profile_refresh_interval_ms"`
	HistoryLookbackDays      int `mapstructure:"history_lookback_days"`
	MaxTrackedWallets        int `mapstructure:"max_tracked_wallets"`
}

// StoreConfig sets where durable artifacts (detected patterns, whale
// trades) are persisted as JSON files.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StatusConfig controls the minimal read-only status HTTP surface.
type StatusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Default returns the configuration with every spec §6 default applied.
func Default() Config {
	return Config{
		Realtime: RealtimeConfig{
			Enabled:           true,
			ReconnectAttempts: 10,
			ReconnectDelayMs:  5000,
			HeartbeatIntervalMs: 30000,
			WorkerPoolSize:    8,
		},
		Polymarket: PolymarketConfig{
			WSURL:   "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			CLOBURL: "https://clob.polymarket.com",
			BaseURL: "https://clob.polymarket.com",
		},
		ClobRateLimits: RateLimitsConfig{
			General: BucketConfig{MaxTokens: 9000, WindowMs: 10000},
			Book:    BucketConfig{MaxTokens: 1500, WindowMs: 10000},
			Trades:  BucketConfig{MaxTokens: 200, WindowMs: 10000},
		},
		Signals: SignalsConfig{
			FreshWallet: FreshWalletConfig{
				Weight: 0.15, MaxAgeDays: 7, MaxTrades: 10, MinTradeSize: 0.02,
			},
			LiquidityImpact: LiquidityImpactConfig{Weight: 0.12, Threshold: 0.02},
			WalletAccuracy: WalletAccuracyConfig{
				Weight: 0.18, MinWinRate: 0.7, MinResolvedPositions: 20,
			},
			TimingPattern: TimingPatternConfig{
				Weight: 0.14, WindowHours: 48, ConcentrationThreshold: 2,
			},
			SniperCluster: SniperClusterConfig{
				Weight: 0.16, WindowMinutes: 5, MinWallets: 3,
			},
			VolumeSpike:        VolumeSpikeConfig{Weight: 0.08, VolumeLiquidityRatio: 3},
			ProbabilityExtreme: ProbabilityExtremeConfig{Weight: 0.06, Threshold: 0.05},
			HighLiquidity:      HighLiquidityConfig{Weight: 0.05, Threshold: 100000},
		},
		Whale: WhaleConfig{
			MinNotionalUSD:        1000,
			DepthThresholdPercent: 5,
			Weight:                0.15,
			DecayHalfLifeMs:       300_000,
			MaxSignalAgeMs:        1_800_000,
		},
		Wallet: WalletConfig{
			ProfileRefreshIntervalMs: 3_600_000,
			HistoryLookbackDays:      90,
			MaxTrackedWallets:        10000,
		},
		Store: StoreConfig{DataDir: "data"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Status:  StatusConfig{Enabled: true, Port: 8090},
	}
}

// Load reads config from a YAML file, layered on top of Default(), with
// env var overrides for sensitive/deployment-specific fields.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SURV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if url := os.Getenv("SURV_WS_URL"); url != "" {
		cfg.Polymarket.WSURL = url
	}
	if url := os.Getenv("SURV_CLOB_URL"); url != "" {
		cfg.Polymarket.CLOBURL = url
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Polymarket.CLOBURL == "" {
		return fmt.Errorf("polymarket.clob_url is required")
	}
	if c.Realtime.Enabled && c.Polymarket.WSURL == "" {
		return fmt.Errorf("polymarket.ws_url is required when realtime.enabled")
	}
	if c.ClobRateLimits.General.MaxTokens <= 0 || c.ClobRateLimits.Book.MaxTokens <= 0 || c.ClobRateLimits.Trades.MaxTokens <= 0 {
		return fmt.Errorf("clob_rate_limits: every pool must have max_tokens > 0")
	}
	if c.Signals.FreshWallet.MaxTrades <= 0 {
		return fmt.Errorf("signals.fresh_wallet.max_trades must be > 0")
	}
	return nil
}
