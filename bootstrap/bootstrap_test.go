package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/config/netmode"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testClient struct {
	actor.RPCActor

	nnsHash util.Uint160
	records []string

	closed bool
}

func (c *testClient) GetVersion() (*result.Version, error) {
	return &result.Version{
		Protocol: result.Protocol{
			Network:              netmode.UnitTestNet,
			MillisecondsPerBlock: 1000,
		},
	}, nil
}

func (c *testClient) GetContractStateByID(id int32) (*state.Contract, error) {
	if c.nnsHash.Equals(util.Uint160{}) {
		return nil, errors.New("unknown contract")
	}
	return &state.Contract{ContractBase: state.ContractBase{ID: id, Hash: c.nnsHash}}, nil
}

func (c *testClient) InvokeFunction(contract util.Uint160, operation string, _ []smartcontract.Parameter, _ []transaction.Signer) (*result.Invoke, error) {
	if !contract.Equals(c.nnsHash) || operation != "resolve" {
		return nil, errors.New("unexpected call")
	}

	items := make([]stackitem.Item, len(c.records))
	for i := range c.records {
		items[i] = stackitem.Make(c.records[i])
	}

	return &result.Invoke{State: "HALT", Stack: []stackitem.Item{stackitem.Make(items)}}, nil
}

func (c *testClient) Close() { c.closed = true }

type testDialer struct {
	reachable map[string]*testClient
	dialed    []string
}

func (d *testDialer) dial(_ context.Context, endpoint string) (Client, error) {
	d.dialed = append(d.dialed, endpoint)
	c, ok := d.reachable[endpoint]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return c, nil
}

type failingProvider struct{ err error }

func (p failingProvider) Authorize(context.Context) ([]*wallet.Account, error) {
	return nil, p.err
}

func newAccount(t *testing.T) *wallet.Account {
	acc, err := wallet.NewAccount()
	require.NoError(t, err)
	return acc
}

func TestConnect_NoIdentity(t *testing.T) {
	ctx := context.Background()
	d := &testDialer{reachable: map[string]*testClient{"primary": new(testClient)}}

	t.Run("no provider", func(t *testing.T) {
		_, err := Connect(ctx, Prm{Logger: zaptest.NewLogger(t), Endpoint: "primary", Dial: d.dial})
		require.ErrorIs(t, err, ErrNoIdentity)
		require.ErrorIs(t, err, ErrProviderNotFound)
	})

	t.Run("empty static provider", func(t *testing.T) {
		_, err := Connect(ctx, Prm{Provider: StaticProvider(nil), Endpoint: "primary", Dial: d.dial})
		require.ErrorIs(t, err, ErrNoIdentity)
	})

	t.Run("consent denied", func(t *testing.T) {
		_, err := Connect(ctx, Prm{
			Provider:              failingProvider{ErrConsentDenied},
			Endpoint:              "primary",
			AllowInsecureFallback: true,
			Dial:                  d.dial,
		})
		require.ErrorIs(t, err, ErrNoIdentity)
		require.ErrorIs(t, err, ErrConsentDenied)

		var cErr *ConnectionError
		require.ErrorAs(t, err, &cErr)
		require.Equal(t, NoIdentity, cErr.Kind)
	})

	require.Empty(t, d.dialed)
}

func TestConnect_NoGateway(t *testing.T) {
	d := new(testDialer)

	_, err := Connect(context.Background(), Prm{
		Logger:                zaptest.NewLogger(t),
		Provider:              StaticProvider{newAccount(t)},
		Endpoint:              "primary",
		AllowInsecureFallback: true,
		Contract:              util.Uint160{1},
		Dial:                  d.dial,
	})
	require.ErrorIs(t, err, ErrNoGateway)
	require.NotErrorIs(t, err, ErrNoIdentity)
	require.Equal(t, []string{"primary", DefaultFallbackEndpoint}, d.dialed)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	contract := util.Uint160{1, 2, 3}

	t.Run("primary", func(t *testing.T) {
		c := new(testClient)
		d := &testDialer{reachable: map[string]*testClient{"primary": c}}
		acc := newAccount(t)

		s, err := Connect(ctx, Prm{
			Logger:                zaptest.NewLogger(t),
			Provider:              StaticProvider{acc},
			Endpoint:              "primary",
			AllowInsecureFallback: true,
			Contract:              contract,
			Dial:                  d.dial,
		})
		require.NoError(t, err)
		require.Equal(t, []string{"primary"}, d.dialed)
		require.Equal(t, "primary", s.Endpoint)
		require.Equal(t, acc, s.Account)
		require.Equal(t, contract, s.Contract)
		require.False(t, s.Insecure)
		require.NotNil(t, s.Gateway)

		s.Close()
		require.True(t, c.closed)
	})

	t.Run("fallback", func(t *testing.T) {
		d := &testDialer{reachable: map[string]*testClient{"local": new(testClient)}}
		dev := newAccount(t)

		s, err := Connect(ctx, Prm{
			Logger:                zaptest.NewLogger(t),
			Provider:              StaticProvider{newAccount(t)},
			Endpoint:              "primary",
			AllowInsecureFallback: true,
			FallbackEndpoint:      "local",
			FallbackAccount:       dev,
			Contract:              contract,
			Dial:                  d.dial,
		})
		require.NoError(t, err)
		require.Equal(t, []string{"primary", "local"}, d.dialed)
		require.Equal(t, "local", s.Endpoint)
		require.Equal(t, dev, s.Account)
		require.True(t, s.Insecure)
	})

	t.Run("fallback without provider", func(t *testing.T) {
		d := &testDialer{reachable: map[string]*testClient{DefaultFallbackEndpoint: new(testClient)}}

		s, err := Connect(ctx, Prm{
			AllowInsecureFallback: true,
			Contract:              contract,
			Dial:                  d.dial,
		})
		require.NoError(t, err)
		require.Equal(t, []string{DefaultFallbackEndpoint}, d.dialed)
		require.True(t, s.Insecure)
		require.NotNil(t, s.Account)
	})

	t.Run("sessions are independent", func(t *testing.T) {
		d := &testDialer{reachable: map[string]*testClient{"primary": new(testClient)}}
		prm := Prm{
			Provider: StaticProvider{newAccount(t)},
			Endpoint: "primary",
			Contract: contract,
			Dial:     d.dial,
		}

		s1, err := Connect(ctx, prm)
		require.NoError(t, err)
		s2, err := Connect(ctx, prm)
		require.NoError(t, err)
		require.NotEqual(t, s1.ID, s2.ID)
		require.NotSame(t, s1.Gateway, s2.Gateway)
	})
}

func TestConnect_NNS(t *testing.T) {
	ctx := context.Background()
	contract := util.Uint160{4, 5, 6}

	c := &testClient{
		nnsHash: util.Uint160{9},
		records: []string{"not an address", contract.StringLE()},
	}
	d := &testDialer{reachable: map[string]*testClient{"primary": c}}

	prm := Prm{
		Logger:   zaptest.NewLogger(t),
		Provider: StaticProvider{newAccount(t)},
		Endpoint: "primary",
		Dial:     d.dial,
	}

	s, err := Connect(ctx, prm)
	require.NoError(t, err)
	require.Equal(t, contract, s.Contract)

	c.records = nil
	_, err = Connect(ctx, prm)
	require.ErrorIs(t, err, ErrNoGateway)
	require.True(t, c.closed)
}

func TestWalletProvider(t *testing.T) {
	const pass = "secret"

	var (
		ctx        = context.Background()
		walletPath = filepath.Join(t.TempDir(), "wallet.json")
		wlt        = wallet.NewInMemoryWallet()
		watchOnly  = newAccount(t)
		first      = newAccount(t)
		second     = newAccount(t)
	)

	watchOnly.EncryptedWIF = ""
	for _, acc := range []*wallet.Account{first, second} {
		require.NoError(t, acc.Encrypt(pass, keys.NEP2ScryptParams()))
	}

	wlt.Accounts = append(wlt.Accounts, watchOnly, first, second)
	wlt.SetPath(walletPath)
	require.NoError(t, wlt.Save())

	consent := func(context.Context, string) (string, error) { return pass, nil }

	t.Run("missing", func(t *testing.T) {
		_, err := (&WalletProvider{}).Authorize(ctx)
		require.ErrorIs(t, err, ErrProviderNotFound)

		_, err = (&WalletProvider{Path: filepath.Join(t.TempDir(), "none.json"), Consent: consent}).Authorize(ctx)
		require.ErrorIs(t, err, ErrProviderNotFound)
	})

	t.Run("first with keys", func(t *testing.T) {
		accs, err := (&WalletProvider{Path: walletPath, Consent: consent}).Authorize(ctx)
		require.NoError(t, err)
		require.Len(t, accs, 1)
		require.Equal(t, first.Address, accs[0].Address)
		require.True(t, accs[0].CanSign())
	})

	t.Run("by address", func(t *testing.T) {
		accs, err := (&WalletProvider{Path: walletPath, Address: second.Address, Consent: consent}).Authorize(ctx)
		require.NoError(t, err)
		require.Equal(t, second.Address, accs[0].Address)

		_, err = (&WalletProvider{Path: walletPath, Address: newAccount(t).Address, Consent: consent}).Authorize(ctx)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrConsentDenied)
	})

	t.Run("denied", func(t *testing.T) {
		_, err := (&WalletProvider{Path: walletPath}).Authorize(ctx)
		require.ErrorIs(t, err, ErrConsentDenied)

		_, err = (&WalletProvider{Path: walletPath, Consent: func(context.Context, string) (string, error) {
			return "", errors.New("user closed the prompt")
		}}).Authorize(ctx)
		require.ErrorIs(t, err, ErrConsentDenied)

		_, err = (&WalletProvider{Path: walletPath, Consent: func(context.Context, string) (string, error) {
			return "wrong", nil
		}}).Authorize(ctx)
		require.ErrorIs(t, err, ErrConsentDenied)
	})
}
