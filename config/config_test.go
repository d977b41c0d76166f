package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/voting-client/gateway"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{
		"PROFILE", "RPC_ENDPOINT", "RPC_DIAL_TIMEOUT", "RPC_REQUEST_TIMEOUT",
		"FALLBACK_ENDPOINT", "FALLBACK_WIF", "ALLOW_INSECURE_FALLBACK",
		"WALLET_PATH", "WALLET_ADDRESS", "WALLET_PASSWORD",
		"CONTRACT_HASH", "CONTRACT_NNS_NAME", "CONTRACT_NNS_HASH", "LOG_LEVEL",
		"COST_CEILING", "VOTE_TIMEOUT", "SYNC_TIMEOUT", "ROSTER_CONCURRENCY",
	} {
		t.Setenv(EnvPrefix+name, "")
		require.NoError(t, os.Unsetenv(EnvPrefix+name))
	}
}

func writeFile(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.Equal(t, ProfileProduction, c.Profile)
	require.False(t, c.AllowInsecureFallback)
	require.Equal(t, "http://127.0.0.1:20332", c.Fallback.Endpoint)
	require.EqualValues(t, gateway.DefaultCostCeiling, c.CostCeiling)
	require.Equal(t, 2*time.Minute, c.VoteTimeout)
	require.Equal(t, 30*time.Second, c.SyncTimeout)
	require.Equal(t, 4, c.RosterConcurrency)

	// endpoint is required in production
	require.Error(t, c.Validate())
	c.RPC.Endpoint = "https://rpc.example.org:30333"
	require.NoError(t, c.Validate())

	d := Development()
	require.True(t, d.AllowInsecureFallback)
	require.NoError(t, d.Validate())

	lvl, err := d.LogLevel()
	require.NoError(t, err)
	require.Equal(t, zapcore.DebugLevel, lvl)
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	t.Run("no file", func(t *testing.T) {
		_, err := Load("")
		require.Error(t, err)

		t.Setenv(EnvPrefix+"PROFILE", ProfileDevelopment)
		c, err := Load("")
		require.NoError(t, err)
		require.Equal(t, Development(), c)
	})

	t.Run("read without validation", func(t *testing.T) {
		c, err := Read("")
		require.NoError(t, err)
		require.Equal(t, Default(), c)
		require.Error(t, c.Validate())

		c.RPC.Endpoint = "https://rpc.example.org:30333"
		require.NoError(t, c.Validate())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "none.yml"))
		require.Error(t, err)
	})

	t.Run("file", func(t *testing.T) {
		contract := util.Uint160{1, 2, 3}

		c, err := Load(writeFile(t, `
rpc:
  endpoint: https://rpc.example.org:30333
  request_timeout: 1m
wallet:
  path: /etc/voting/wallet.json
contract:
  hash: "0x`+contract.StringLE()+`"
vote_timeout: 90s
roster_concurrency: 8
log:
  level: warn
`))
		require.NoError(t, err)
		require.Equal(t, "https://rpc.example.org:30333", c.RPC.Endpoint)
		require.Equal(t, time.Minute, c.RPC.RequestTimeout)
		require.Equal(t, Default().RPC.DialTimeout, c.RPC.DialTimeout)
		require.Equal(t, "/etc/voting/wallet.json", c.Wallet.Path)
		require.Equal(t, 90*time.Second, c.VoteTimeout)
		require.Equal(t, 8, c.RosterConcurrency)
		require.Equal(t, Default().SyncTimeout, c.SyncTimeout)

		h, err := c.ContractHash()
		require.NoError(t, err)
		require.Equal(t, contract, h)
	})

	t.Run("development file", func(t *testing.T) {
		c, err := Load(writeFile(t, "profile: development\ncost_ceiling: 100\n"))
		require.NoError(t, err)
		require.True(t, c.AllowInsecureFallback)
		require.EqualValues(t, 100, c.CostCeiling)
	})

	t.Run("insecure fallback in production", func(t *testing.T) {
		_, err := Load(writeFile(t, `
rpc:
  endpoint: https://rpc.example.org:30333
allow_insecure_fallback: true
`))
		require.Error(t, err)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, data := range []string{
			"rpc: [",
			"profile: staging",
			"rpc:\n  endpoint: x\ncost_ceiling: 0",
			"rpc:\n  endpoint: x\nlog:\n  level: loud",
			"rpc:\n  endpoint: x\ncontract:\n  hash: nope",
			"rpc:\n  endpoint: x\ncontract:\n  nns_name: ''",
			"rpc:\n  endpoint: x\nwallet:\n  address: nope",
			"rpc:\n  endpoint: x\nvote_timeout: soon",
		} {
			_, err := Load(writeFile(t, data))
			require.Error(t, err, data)
		}
	})
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)

	acc, err := wallet.NewAccount()
	require.NoError(t, err)

	path := writeFile(t, `
rpc:
  endpoint: https://rpc.example.org:30333
vote_timeout: 90s
`)

	t.Setenv(EnvPrefix+"RPC_ENDPOINT", "https://other.example.org:30333")
	t.Setenv(EnvPrefix+"VOTE_TIMEOUT", "3m")
	t.Setenv(EnvPrefix+"COST_CEILING", "1000")
	t.Setenv(EnvPrefix+"WALLET_PASSWORD", "secret")
	t.Setenv(EnvPrefix+"CONTRACT_HASH", acc.Address)
	t.Setenv(EnvPrefix+"ROSTER_CONCURRENCY", "2")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://other.example.org:30333", c.RPC.Endpoint)
	require.Equal(t, 3*time.Minute, c.VoteTimeout)
	require.EqualValues(t, 1000, c.CostCeiling)
	require.Equal(t, "secret", c.Wallet.Password)
	require.Equal(t, 2, c.RosterConcurrency)

	h, err := c.ContractHash()
	require.NoError(t, err)
	require.Equal(t, acc.ScriptHash(), h)

	t.Setenv(EnvPrefix+"ROSTER_CONCURRENCY", "many")
	_, err = Load(path)
	require.ErrorContains(t, err, EnvPrefix+"ROSTER_CONCURRENCY")

	t.Setenv(EnvPrefix+"ROSTER_CONCURRENCY", "2")
	t.Setenv(EnvPrefix+"ALLOW_INSECURE_FALLBACK", "true")
	_, err = Load(path)
	require.Error(t, err)

	t.Setenv(EnvPrefix+"PROFILE", ProfileDevelopment)
	t.Setenv(EnvPrefix+"FALLBACK_WIF", acc.PrivateKey().WIF())
	c, err = Load(path)
	require.NoError(t, err)

	dev, err := c.FallbackAccount()
	require.NoError(t, err)
	require.Equal(t, acc.Address, dev.Address)
}
