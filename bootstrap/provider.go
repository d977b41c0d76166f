package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
)

var (
	// ErrProviderNotFound is returned by IdentityProvider when it is not
	// available in the current environment.
	ErrProviderNotFound = errors.New("identity provider not found")

	// ErrConsentDenied is returned by IdentityProvider when the user refuses
	// to authorize access to the account.
	ErrConsentDenied = errors.New("consent denied")
)

// IdentityProvider grants accounts able to sign session transactions.
type IdentityProvider interface {
	// Authorize requests access to the accounts. It may block awaiting user
	// consent. The first returned account becomes the session sender and
	// must be unlocked.
	//
	// Authorize returns ErrProviderNotFound if the provider is unavailable
	// and ErrConsentDenied if access was refused.
	Authorize(ctx context.Context) ([]*wallet.Account, error)
}

// ConsentFunc asks the user to unlock the account with the given address
// and returns the passphrase.
type ConsentFunc func(ctx context.Context, address string) (string, error)

// WalletProvider is IdentityProvider backed by NEP-6 wallet file.
type WalletProvider struct {
	// Path to the wallet file.
	Path string

	// Address of the account to use. If empty, the default account of the
	// wallet is used, or the first one if there is no default.
	Address string

	// Consent is asked for the account passphrase.
	Consent ConsentFunc
}

// Authorize implements IdentityProvider.
func (p *WalletProvider) Authorize(ctx context.Context) ([]*wallet.Account, error) {
	if p.Path == "" {
		return nil, ErrProviderNotFound
	}

	if _, err := os.Stat(p.Path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: wallet file '%s' does not exist", ErrProviderNotFound, p.Path)
	}

	w, err := wallet.NewWalletFromFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}

	// w is not closed: closing wipes keys of the accounts including the
	// returned one, Session.Close does it instead.

	acc, err := p.pickAccount(w)
	if err != nil {
		return nil, err
	}

	if p.Consent == nil {
		return nil, fmt.Errorf("%w: no way to ask for the passphrase", ErrConsentDenied)
	}

	pass, err := p.Consent(ctx, acc.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConsentDenied, err)
	}

	err = acc.Decrypt(pass, w.Scrypt)
	if err != nil {
		return nil, fmt.Errorf("%w: unlock account %s: %w", ErrConsentDenied, acc.Address, err)
	}

	return []*wallet.Account{acc}, nil
}

func (p *WalletProvider) pickAccount(w *wallet.Wallet) (*wallet.Account, error) {
	if p.Address != "" {
		h, err := address.StringToUint160(p.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid account address '%s': %w", p.Address, err)
		}

		acc := w.GetAccount(h)
		if acc == nil {
			return nil, fmt.Errorf("account %s is missing in the wallet", p.Address)
		}

		return acc, nil
	}

	var first *wallet.Account

	for _, acc := range w.Accounts {
		if acc.EncryptedWIF == "" {
			continue // watch-only
		}
		if acc.Default {
			return acc, nil
		}
		if first == nil {
			first = acc
		}
	}

	if first == nil {
		return nil, errors.New("wallet has no accounts with keys")
	}

	return first, nil
}

// StaticProvider is IdentityProvider returning already unlocked accounts.
type StaticProvider []*wallet.Account

// Authorize implements IdentityProvider.
func (p StaticProvider) Authorize(context.Context) ([]*wallet.Account, error) {
	if len(p) == 0 {
		return nil, ErrProviderNotFound
	}
	return p, nil
}
