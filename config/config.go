/*
Package config provides voting-client configuration.

Configuration is assembled in the following order, later sources override
earlier ones: profile defaults, YAML file, VOTING_* environment variables.
Command line flags are applied by the application on top of the result.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/voting-client/bootstrap"
	"github.com/nspcc-dev/voting-client/gateway"
	"github.com/nspcc-dev/voting-client/rpc/nns"
	"github.com/nspcc-dev/voting-client/session"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Supported profiles.
const (
	ProfileProduction  = "production"
	ProfileDevelopment = "development"
)

// EnvPrefix prefixes names of all environment variables read by Load.
const EnvPrefix = "VOTING_"

// Config is the voting-client configuration.
type Config struct {
	Profile               string   `yaml:"profile"`
	RPC                   RPC      `yaml:"rpc"`
	Fallback              Fallback `yaml:"fallback"`
	AllowInsecureFallback bool     `yaml:"allow_insecure_fallback"`
	Wallet                Wallet   `yaml:"wallet"`
	Contract              Contract `yaml:"contract"`
	Log                   Log      `yaml:"log"`

	CostCeiling       int64         `yaml:"cost_ceiling"`
	VoteTimeout       time.Duration `yaml:"vote_timeout"`
	SyncTimeout       time.Duration `yaml:"sync_timeout"`
	RosterConcurrency int           `yaml:"roster_concurrency"`
}

// RPC configures connection to the Neo RPC node.
type RPC struct {
	Endpoint       string        `yaml:"endpoint"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Fallback configures the local development node.
type Fallback struct {
	Endpoint string `yaml:"endpoint"`
	// WIF of the development account. Random account is used if empty.
	WIF string `yaml:"wif"`
}

// Wallet configures the NEP-6 wallet Identity Provider.
type Wallet struct {
	Path    string `yaml:"path"`
	Address string `yaml:"address"`
	// Password is better passed via the environment. If empty, it is
	// prompted for.
	Password string `yaml:"password"`
}

// Contract configures the Voting contract address. Hash takes precedence
// over NNS resolution.
type Contract struct {
	Hash    string `yaml:"hash"`
	NNSName string `yaml:"nns_name"`
	NNSHash string `yaml:"nns_hash"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns production configuration with defaults. RPC endpoint and
// the wallet are left empty.
func Default() Config {
	return Config{
		Profile: ProfileProduction,
		RPC: RPC{
			DialTimeout:    5 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Fallback: Fallback{
			Endpoint: bootstrap.DefaultFallbackEndpoint,
		},
		Contract: Contract{
			NNSName: nns.DefaultVotingName,
		},
		Log: Log{
			Level: zapcore.InfoLevel.String(),
		},
		CostCeiling:       gateway.DefaultCostCeiling,
		VoteTimeout:       session.DefaultVoteTimeout,
		SyncTimeout:       session.DefaultSyncTimeout,
		RosterConcurrency: gateway.DefaultRosterConcurrency,
	}
}

// Development returns configuration for the local development node: the
// insecure fallback is allowed and the primary endpoint is the local node.
func Development() Config {
	c := Default()
	c.Profile = ProfileDevelopment
	c.RPC.Endpoint = bootstrap.DefaultFallbackEndpoint
	c.AllowInsecureFallback = true
	c.Log.Level = zapcore.DebugLevel.String()
	return c
}

// ForProfile returns defaults of the named profile. Empty name means
// production.
func ForProfile(name string) (Config, error) {
	switch name {
	case "", ProfileProduction:
		return Default(), nil
	case ProfileDevelopment:
		return Development(), nil
	default:
		return Config{}, fmt.Errorf("unknown profile '%s'", name)
	}
}

// Load reads configuration from the YAML file at path (optional) and the
// environment, and validates the result.
func Load(path string) (Config, error) {
	c, err := Read(path)
	if err != nil {
		return Config{}, err
	}

	err = c.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

// Read is Load without validation. It is used when more overrides are to be
// applied, Validate must be called afterwards.
func Read(path string) (Config, error) {
	var data []byte

	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var probe struct {
		Profile string `yaml:"profile"`
	}

	err := yaml.Unmarshal(data, &probe)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	if v, ok := os.LookupEnv(EnvPrefix + "PROFILE"); ok {
		probe.Profile = v
	}

	c, err := ForProfile(probe.Profile)
	if err != nil {
		return Config{}, err
	}

	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	err = c.applyEnv()
	if err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c *Config) applyEnv() error {
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	dur := func(dst *time.Duration) func(string) error {
		return func(v string) (err error) { *dst, err = time.ParseDuration(v); return }
	}

	vars := []struct {
		name string
		set  func(string) error
	}{
		{"PROFILE", str(&c.Profile)},
		{"RPC_ENDPOINT", str(&c.RPC.Endpoint)},
		{"RPC_DIAL_TIMEOUT", dur(&c.RPC.DialTimeout)},
		{"RPC_REQUEST_TIMEOUT", dur(&c.RPC.RequestTimeout)},
		{"FALLBACK_ENDPOINT", str(&c.Fallback.Endpoint)},
		{"FALLBACK_WIF", str(&c.Fallback.WIF)},
		{"ALLOW_INSECURE_FALLBACK", func(v string) (err error) {
			c.AllowInsecureFallback, err = strconv.ParseBool(v)
			return
		}},
		{"WALLET_PATH", str(&c.Wallet.Path)},
		{"WALLET_ADDRESS", str(&c.Wallet.Address)},
		{"WALLET_PASSWORD", str(&c.Wallet.Password)},
		{"CONTRACT_HASH", str(&c.Contract.Hash)},
		{"CONTRACT_NNS_NAME", str(&c.Contract.NNSName)},
		{"CONTRACT_NNS_HASH", str(&c.Contract.NNSHash)},
		{"LOG_LEVEL", str(&c.Log.Level)},
		{"COST_CEILING", func(v string) (err error) {
			c.CostCeiling, err = strconv.ParseInt(v, 10, 64)
			return
		}},
		{"VOTE_TIMEOUT", dur(&c.VoteTimeout)},
		{"SYNC_TIMEOUT", dur(&c.SyncTimeout)},
		{"ROSTER_CONCURRENCY", func(v string) (err error) {
			c.RosterConcurrency, err = strconv.Atoi(v)
			return
		}},
	}

	for _, v := range vars {
		val, ok := os.LookupEnv(EnvPrefix + v.name)
		if !ok {
			continue
		}

		err := v.set(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, v.name, err)
		}
	}

	return nil
}

// Validate checks the configuration consistency.
func (c Config) Validate() error {
	if _, err := ForProfile(c.Profile); err != nil {
		return err
	}

	if c.AllowInsecureFallback && c.Profile != ProfileDevelopment {
		return errors.New("insecure fallback is allowed in development profile only")
	}

	if c.RPC.Endpoint == "" && !c.AllowInsecureFallback {
		return errors.New("missing RPC endpoint")
	}

	if c.AllowInsecureFallback && c.Fallback.Endpoint == "" {
		return errors.New("missing fallback endpoint")
	}

	switch {
	case c.CostCeiling <= 0:
		return fmt.Errorf("non-positive cost ceiling %d", c.CostCeiling)
	case c.VoteTimeout <= 0:
		return fmt.Errorf("non-positive vote timeout %s", c.VoteTimeout)
	case c.SyncTimeout <= 0:
		return fmt.Errorf("non-positive sync timeout %s", c.SyncTimeout)
	case c.RosterConcurrency <= 0:
		return fmt.Errorf("non-positive roster concurrency %d", c.RosterConcurrency)
	case c.RPC.DialTimeout < 0 || c.RPC.RequestTimeout < 0:
		return errors.New("negative RPC timeout")
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	if _, err := c.ContractHash(); err != nil {
		return err
	}

	if c.Contract.Hash == "" && c.Contract.NNSName == "" {
		return errors.New("either contract hash or NNS name must be set")
	}

	if _, err := c.NNSHash(); err != nil {
		return err
	}

	if c.Wallet.Address != "" {
		if _, err := address.StringToUint160(c.Wallet.Address); err != nil {
			return fmt.Errorf("invalid wallet address '%s': %w", c.Wallet.Address, err)
		}
	}

	if _, err := c.FallbackAccount(); err != nil {
		return err
	}

	return nil
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return lvl, fmt.Errorf("invalid log level: %w", err)
	}
	return lvl, nil
}

// ContractHash parses Contract.Hash. Zero is returned if it is not set.
func (c Config) ContractHash() (util.Uint160, error) {
	h, err := parseHash(c.Contract.Hash)
	if err != nil {
		return h, fmt.Errorf("invalid contract hash: %w", err)
	}
	return h, nil
}

// NNSHash parses Contract.NNSHash. Zero is returned if it is not set.
func (c Config) NNSHash() (util.Uint160, error) {
	h, err := parseHash(c.Contract.NNSHash)
	if err != nil {
		return h, fmt.Errorf("invalid NNS contract hash: %w", err)
	}
	return h, nil
}

// FallbackAccount decodes Fallback.WIF. Nil is returned if it is not set.
func (c Config) FallbackAccount() (*wallet.Account, error) {
	if c.Fallback.WIF == "" {
		return nil, nil
	}

	acc, err := wallet.NewAccountFromWIF(c.Fallback.WIF)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback account WIF: %w", err)
	}

	return acc, nil
}

// parseHash accepts little-endian hex script hash with optional 0x prefix or
// Neo address.
func parseHash(s string) (util.Uint160, error) {
	if s == "" {
		return util.Uint160{}, nil
	}

	h, err := util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
	if err == nil {
		return h, nil
	}

	h, err = address.StringToUint160(s)
	if err != nil {
		return h, fmt.Errorf("'%s' is neither script hash nor address", s)
	}

	return h, nil
}
