/*
Package bootstrap establishes voting sessions: it obtains an authorized
account from an Identity Provider, connects to a Neo RPC node and binds the
Ledger Gateway to the Voting contract on behalf of that account.

Each successful Connect returns an independent Session. There is no
process-wide state.
*/
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/voting-client/gateway"
	"github.com/nspcc-dev/voting-client/rpc/nns"
	"go.uber.org/zap"
)

// DefaultFallbackEndpoint is the local development node address.
const DefaultFallbackEndpoint = "http://127.0.0.1:20332"

// Client groups Neo RPC services needed by the session.
type Client interface {
	actor.RPCActor
	nns.ContractStateGetter

	Close()
}

// DialFunc opens a connection to the RPC node at the given endpoint.
type DialFunc func(ctx context.Context, endpoint string) (Client, error)

// Prm groups parameters of Connect.
type Prm struct {
	// Writes progress into the log. Optional.
	Logger *zap.Logger

	// Source of the session account. Nil means no provider is available.
	Provider IdentityProvider

	// RPC endpoint used with accounts granted by Provider.
	Endpoint string

	// Allows to proceed with the FallbackEndpoint and the development
	// account if there is no Provider or the Endpoint is unreachable. Must
	// not be set in deployed configurations.
	AllowInsecureFallback bool

	// Local development node. Defaults to DefaultFallbackEndpoint.
	FallbackEndpoint string

	// Development account used with FallbackEndpoint. If nil, a new random
	// account is generated (it is only able to read).
	FallbackAccount *wallet.Account

	// Address of the Voting contract. If zero, the contract is resolved by
	// ContractName via NNS.
	Contract util.Uint160

	// NNS domain of the Voting contract. Defaults to nns.DefaultVotingName.
	ContractName string

	// NNS contract address. If zero, it is inferred from the network.
	NNSContract util.Uint160

	// Upper bound of the transaction system fee. Defaults to
	// gateway.DefaultCostCeiling.
	CostCeiling int64

	// Limits parallel candidate reads. See gateway.LedgerPrm.
	RosterConcurrency int

	// Opens RPC connections. Defaults to DialRPC with zero options.
	Dial DialFunc
}

// Session is an established connection of an authorized account to the
// Voting contract.
type Session struct {
	// ID correlates log entries of the session.
	ID uuid.UUID

	// Account signing session transactions.
	Account *wallet.Account

	// Endpoint of the connected RPC node.
	Endpoint string

	// Insecure is set when the session runs over the development fallback.
	Insecure bool

	// Contract is the address of the Voting contract.
	Contract util.Uint160

	// Gateway bound to Account and Contract.
	Gateway *gateway.Ledger

	client Client
}

// Close releases the RPC connection and wipes the account keys.
func (s *Session) Close() {
	s.client.Close()
	s.Account.Close()
}

// DialRPC returns DialFunc connecting to the RPC nodes over rpcclient.
func DialRPC(opts rpcclient.Options) DialFunc {
	return func(ctx context.Context, endpoint string) (Client, error) {
		c, err := rpcclient.New(ctx, endpoint, opts)
		if err != nil {
			return nil, fmt.Errorf("RPC client dial: %w", err)
		}

		err = c.Init()
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("RPC client init: %w", err)
		}

		return c, nil
	}
}

type candidateEndpoint struct {
	url      string
	acc      *wallet.Account
	insecure bool
}

// Connect establishes a new Session according to the given parameters.
//
// Connect authorizes the account via prm.Provider first and connects to
// prm.Endpoint with it. If there is no provider, or the endpoint can't be
// reached, and the insecure fallback is allowed, the development account is
// tried against prm.FallbackEndpoint.
//
// Returned errors are of *ConnectionError type: NoIdentity if no account was
// authorized, NoGateway if none of the endpoints was reachable.
func Connect(ctx context.Context, prm Prm) (*Session, error) {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	if prm.Dial == nil {
		prm.Dial = DialRPC(rpcclient.Options{})
	}

	if prm.FallbackEndpoint == "" {
		prm.FallbackEndpoint = DefaultFallbackEndpoint
	}

	if prm.CostCeiling <= 0 {
		prm.CostCeiling = gateway.DefaultCostCeiling
	}

	endpoints, err := collectEndpoints(ctx, prm)
	if err != nil {
		return nil, err
	}

	var dialErrs []error

	for _, ep := range endpoints {
		if ep.insecure {
			prm.Logger.Warn("using insecure development fallback, never do this in a deployed configuration",
				zap.String("endpoint", ep.url))
		}

		c, err := prm.Dial(ctx, ep.url)
		if err != nil {
			prm.Logger.Info("endpoint is unreachable", zap.String("endpoint", ep.url), zap.Error(err))
			dialErrs = append(dialErrs, fmt.Errorf("%s: %w", ep.url, err))
			continue
		}

		s, err := bind(prm, c, ep)
		if err != nil {
			c.Close()
			return nil, &ConnectionError{Kind: NoGateway, Err: err}
		}

		prm.Logger.Info("session established",
			zap.Stringer("session", s.ID),
			zap.String("account", s.Account.Address),
			zap.String("endpoint", s.Endpoint),
			zap.Stringer("contract", s.Contract),
			zap.Bool("insecure", s.Insecure))

		return s, nil
	}

	return nil, &ConnectionError{Kind: NoGateway, Err: errors.Join(dialErrs...)}
}

// collectEndpoints returns endpoints to try in order along with accounts to
// use with them.
func collectEndpoints(ctx context.Context, prm Prm) ([]candidateEndpoint, error) {
	var res []candidateEndpoint

	var provErr error = ErrProviderNotFound

	if prm.Provider != nil {
		prm.Logger.Info("requesting account authorization...")

		var accs []*wallet.Account
		accs, provErr = prm.Provider.Authorize(ctx)
		switch {
		case provErr == nil && len(accs) == 0:
			return nil, &ConnectionError{Kind: NoIdentity, Err: errors.New("no accounts authorized")}
		case provErr == nil:
			res = append(res, candidateEndpoint{url: prm.Endpoint, acc: accs[0]})
		case !errors.Is(provErr, ErrProviderNotFound):
			return nil, &ConnectionError{Kind: NoIdentity, Err: provErr}
		}
	}

	if !prm.AllowInsecureFallback {
		if len(res) == 0 {
			return nil, &ConnectionError{Kind: NoIdentity, Err: provErr}
		}
		return res, nil
	}

	acc := prm.FallbackAccount
	if acc == nil {
		var err error
		acc, err = wallet.NewAccount()
		if err != nil {
			return nil, &ConnectionError{Kind: NoIdentity, Err: fmt.Errorf("generate development account: %w", err)}
		}
	}

	if len(res) == 0 || res[0].url != prm.FallbackEndpoint {
		res = append(res, candidateEndpoint{url: prm.FallbackEndpoint, acc: acc, insecure: true})
	}

	return res, nil
}

// bind creates Session for the connected client.
func bind(prm Prm, c Client, ep candidateEndpoint) (*Session, error) {
	contract := prm.Contract
	if contract.Equals(util.Uint160{}) {
		var err error
		contract, err = resolveContract(prm, c)
		if err != nil {
			return nil, err
		}
	}

	act, err := actor.NewTuned(c, []actor.SignerAccount{{
		Signer: transaction.Signer{
			Account: ep.acc.ScriptHash(),
			Scopes:  transaction.CalledByEntry,
		},
		Account: ep.acc,
	}}, actor.Options{
		CheckerModifier: gateway.CostCeilingModifier(prm.CostCeiling),
	})
	if err != nil {
		return nil, fmt.Errorf("init transaction sender from account %s: %w", ep.acc.Address, err)
	}

	id := uuid.New()

	return &Session{
		ID:       id,
		Account:  ep.acc,
		Endpoint: ep.url,
		Insecure: ep.insecure,
		Contract: contract,
		Gateway: gateway.NewLedger(gateway.LedgerPrm{
			Logger:            prm.Logger.With(zap.Stringer("session", id)),
			Actor:             act,
			Contract:          contract,
			RosterConcurrency: prm.RosterConcurrency,
		}),
		client: c,
	}, nil
}

func resolveContract(prm Prm, c Client) (util.Uint160, error) {
	name := prm.ContractName
	if name == "" {
		name = nns.DefaultVotingName
	}

	nnsHash := prm.NNSContract
	if nnsHash.Equals(util.Uint160{}) {
		var err error
		nnsHash, err = nns.InferHash(c)
		if err != nil {
			return util.Uint160{}, fmt.Errorf("infer NNS contract address: %w", err)
		}
	}

	h, err := nns.Resolve(invoker.New(c, nil), nnsHash, name)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("resolve Voting contract address: %w", err)
	}

	prm.Logger.Info("Voting contract resolved via NNS", zap.String("name", name), zap.Stringer("address", h))

	return h, nil
}
