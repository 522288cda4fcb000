// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/stakepool-price/internal/depeg"
)

// StakePool describes one tracked pool.
type StakePool struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	Type    string `mapstructure:"type"`
}

type Config struct {
	RPCList        []string    `mapstructure:"rpc_list"`
	StakePools     []StakePool `mapstructure:"stake_pools"`
	Precision      string      `mapstructure:"precision"`
	PollIntervalMs int         `mapstructure:"poll_interval_ms"`
	PriceDelay     int         `mapstructure:"price_delay"`
	RPCTimeoutMs   int         `mapstructure:"rpc_timeout_ms"`
	Retries        int         `mapstructure:"retries"`
	VerifyOwner    bool        `mapstructure:"verify_owner"`
	DebugLogging   bool        `mapstructure:"debug_logging"`
	LogFile        string      `mapstructure:"log_file"`
	MetricsAddr    string      `mapstructure:"metrics_addr"`
	PostgresURL    string      `mapstructure:"postgres_url"`
	HistorySize    int         `mapstructure:"history_size"`

	// programs allowed to own a pool account when verify_owner is set
	StakePoolPrograms []string `mapstructure:"stake_pool_programs"`
}

const (
	DefaultPollInterval = 5000
	DefaultPriceDelay   = 500
	DefaultRPCTimeout   = 5000
	DefaultRetries      = 3
	DefaultHistorySize  = 1000
	DefaultLogFile      = "logs/vprice.log"

	SplStakePoolProgram = "SPoo1Ku8WFXoNDMHPsrGSTSG1Y47rzgn41SLUNakuHy"

	envPrefix = "SVP"
)

// LoadConfig reads the JSON config at path and applies SVP_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"precision":        fmt.Sprintf("%d", depeg.DefaultPrecision),
		"poll_interval_ms": DefaultPollInterval,
		"price_delay":      DefaultPriceDelay,
		"rpc_timeout_ms":   DefaultRPCTimeout,
		"retries":          DefaultRetries,
		"verify_owner":     true,
		"log_file":         DefaultLogFile,
		"history_size":     DefaultHistorySize,

		"stake_pool_programs": []string{SplStakePoolProgram},
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if envRPCList := v.GetString("RPC_LIST"); envRPCList != "" {
		if rpcs := splitList(envRPCList); len(rpcs) > 0 {
			cfg.RPCList = rpcs
		}
	}

	for i := range cfg.StakePools {
		if cfg.StakePools[i].Type == "" {
			cfg.StakePools[i].Type = string(depeg.TypeSplStake)
		}
	}

	return &cfg, validateConfig(&cfg)
}

// PrecisionValue returns the parsed fixed-point scale.
func (c *Config) PrecisionValue() (*uint256.Int, error) {
	return depeg.ParsePrecision(c.Precision)
}

// AllowedOwners returns the parsed stake_pool_programs list.
func (c *Config) AllowedOwners() ([]solana.PublicKey, error) {
	owners := make([]solana.PublicKey, 0, len(c.StakePoolPrograms))
	for _, p := range c.StakePoolPrograms {
		key, err := solana.PublicKeyFromBase58(p)
		if err != nil {
			return nil, fmt.Errorf("invalid stake pool program %q: %w", p, err)
		}
		owners = append(owners, key)
	}
	return owners, nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) PriceThrottle() time.Duration {
	return time.Duration(c.PriceDelay) * time.Millisecond
}

func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.RPCTimeoutMs) * time.Millisecond
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if err := validatePools(cfg.StakePools); err != nil {
		return err
	}
	if _, err := cfg.PrecisionValue(); err != nil {
		return err
	}
	if _, err := cfg.AllowedOwners(); err != nil {
		return err
	}
	return validateNumericParams(cfg)
}

func validatePools(pools []StakePool) error {
	if len(pools) == 0 {
		return errors.New("stake_pools is empty")
	}
	seen := make(map[string]struct{}, len(pools))
	for _, p := range pools {
		if p.Name == "" {
			return fmt.Errorf("stake pool %s has no name", p.Address)
		}
		if _, err := solana.PublicKeyFromBase58(p.Address); err != nil {
			return fmt.Errorf("stake pool %s: invalid address: %w", p.Name, err)
		}
		if _, err := depeg.ParseType(p.Type); err != nil {
			return fmt.Errorf("stake pool %s: %w", p.Name, err)
		}
		if _, dup := seen[p.Address]; dup {
			return fmt.Errorf("stake pool %s listed twice", p.Address)
		}
		seen[p.Address] = struct{}{}
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.PollIntervalMs <= 0 {
		return errors.New("invalid poll_interval_ms")
	}
	if cfg.PriceDelay < 0 {
		return errors.New("invalid price_delay")
	}
	if cfg.RPCTimeoutMs <= 0 {
		return errors.New("invalid rpc_timeout_ms")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.HistorySize <= 0 {
		return errors.New("invalid history_size")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys that have a default, so bind the rest explicitly
	for _, key := range []string{"rpc_list", "postgres_url", "metrics_addr"} {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if clean := strings.TrimSpace(part); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
