// Package config loads the client configuration from a TOML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/validator"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AA_"

// Default addresses.
var (
	DefaultEntryPoint     = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	DefaultECDSAValidator = common.HexToAddress("0xd9AB5096a832b9ce79914329DAEE236f8Eea0390")
)

// Configuration errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

type ChainConfig struct {
	ID     uint64 `toml:"id" env:"ID"`
	RPCURL string `toml:"rpc_url" env:"RPC_URL"`
}

type BundlerConfig struct {
	// URLs are tried in order.
	URLs []string `toml:"urls" env:"URLS" envSeparator:","`
}

type PaymasterConfig struct {
	URL string `toml:"url" env:"URL"`
}

type AccountConfig struct {
	Address    common.Address `toml:"address" env:"ADDRESS"`
	EntryPoint common.Address `toml:"entry_point" env:"ENTRY_POINT"`
	Factory    common.Address `toml:"factory" env:"FACTORY"`
	Index      uint64         `toml:"index" env:"INDEX"`
}

type ValidatorConfig struct {
	Address    common.Address `toml:"address" env:"ADDRESS"`
	Mode       string         `toml:"mode" env:"MODE"`
	Executor   common.Address `toml:"executor" env:"EXECUTOR"`
	ValidUntil uint64         `toml:"valid_until" env:"VALID_UNTIL"`
	ValidAfter uint64         `toml:"valid_after" env:"VALID_AFTER"`
}

type SendConfig struct {
	MaxRetries    int           `toml:"max_retries" env:"MAX_RETRIES"`
	RetryInterval time.Duration `toml:"retry_interval" env:"RETRY_INTERVAL"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

type MetricsConfig struct {
	Addr string `toml:"addr" env:"ADDR"`
}

// Config is the full client configuration.
type Config struct {
	Chain     ChainConfig     `toml:"chain" envPrefix:"CHAIN_"`
	Bundler   BundlerConfig   `toml:"bundler" envPrefix:"BUNDLER_"`
	Paymaster PaymasterConfig `toml:"paymaster" envPrefix:"PAYMASTER_"`
	Account   AccountConfig   `toml:"account" envPrefix:"ACCOUNT_"`
	Validator ValidatorConfig `toml:"validator" envPrefix:"VALIDATOR_"`
	Send      SendConfig      `toml:"send" envPrefix:"SEND_"`
	Log       LogConfig       `toml:"log" envPrefix:"LOG_"`
	Metrics   MetricsConfig   `toml:"metrics" envPrefix:"METRICS_"`

	// ConfigFile is the path the configuration was read from.
	ConfigFile string `toml:"-" env:"-"`
}

// Default returns the configuration used for unset fields.
func Default() *Config {
	return &Config{
		Account: AccountConfig{EntryPoint: DefaultEntryPoint},
		Validator: ValidatorConfig{
			Address: DefaultECDSAValidator,
			Mode:    "sudo",
		},
		Send: SendConfig{
			MaxRetries:    3,
			RetryInterval: 180 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrConfigFileNotFound
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		cfg.ConfigFile = path
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with AA_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ValidatorMode returns the parsed configured mode.
func (c *Config) ValidatorMode() (validator.Mode, error) {
	return validator.ParseMode(c.Validator.Mode)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if c.Chain.ID == 0 {
		return fmt.Errorf("%w: chain.id is required", ErrInvalidConfig)
	}
	if err := checkURL("chain.rpc_url", c.Chain.RPCURL); err != nil {
		return err
	}
	if len(c.Bundler.URLs) == 0 {
		return fmt.Errorf("%w: at least one bundler url is required", ErrInvalidConfig)
	}
	for i, u := range c.Bundler.URLs {
		if err := checkURL(fmt.Sprintf("bundler.urls[%d]", i), u); err != nil {
			return err
		}
	}
	if c.Paymaster.URL != "" {
		if err := checkURL("paymaster.url", c.Paymaster.URL); err != nil {
			return err
		}
	}
	if c.Account.Address == (common.Address{}) {
		return fmt.Errorf("%w: account.address is required", ErrInvalidConfig)
	}
	if c.Account.EntryPoint == (common.Address{}) {
		return fmt.Errorf("%w: account.entry_point is required", ErrInvalidConfig)
	}
	if c.Validator.Address == (common.Address{}) {
		return fmt.Errorf("%w: validator.address is required", ErrInvalidConfig)
	}
	if _, err := c.ValidatorMode(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Validator.ValidUntil > validator.MaxTimestamp || c.Validator.ValidAfter > validator.MaxTimestamp {
		return fmt.Errorf("%w: validator validity bounds exceed 48 bits", ErrInvalidConfig)
	}
	if c.Validator.ValidUntil != 0 && c.Validator.ValidAfter > c.Validator.ValidUntil {
		return fmt.Errorf("%w: validator.valid_after %d is after valid_until %d",
			ErrInvalidConfig, c.Validator.ValidAfter, c.Validator.ValidUntil)
	}
	if c.Send.MaxRetries < 0 {
		return fmt.Errorf("%w: send.max_retries must not be negative", ErrInvalidConfig)
	}
	if c.Send.RetryInterval < 0 {
		return fmt.Errorf("%w: send.retry_interval must not be negative", ErrInvalidConfig)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log.format must be json or text, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

func checkURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %s %q is not an absolute url", ErrInvalidConfig, field, raw)
	}
	return nil
}
