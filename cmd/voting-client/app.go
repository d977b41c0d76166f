package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/voting-client/bootstrap"
	"github.com/nspcc-dev/voting-client/config"
	"github.com/nspcc-dev/voting-client/session"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// env groups components of the established voting session.
type env struct {
	cfg  config.Config
	log  *zap.Logger
	sess *bootstrap.Session
	ctrl *session.Controller
}

// withSession wraps command action: it loads configuration, connects to the
// network, synchronizes the session and passes it to f. The session is
// closed when f returns.
func withSession(ctx context.Context, f func(context.Context, *cli.Context, *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		e, err := connect(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer e.sess.Close()

		if e.sess.Insecure {
			fmt.Fprintln(os.Stderr, "WARNING: connected to the local development node with the development account")
		}

		_, err = e.ctrl.Synchronize(ctx)
		if err != nil {
			// rendered as the snapshot notice, commands decide themselves
			log.Debug("initial synchronization failed", zap.Error(err))
		}

		return f(ctx, c, e)
	}
}

// loadConfig reads configuration and applies global command line flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Read(c.GlobalString("config"))
	if err != nil {
		return cfg, err
	}

	if v := c.GlobalString("rpc"); v != "" {
		cfg.RPC.Endpoint = v
	}
	if v := c.GlobalString("wallet"); v != "" {
		cfg.Wallet.Path = v
	}
	if v := c.GlobalString("address"); v != "" {
		cfg.Wallet.Address = v
	}
	if v := c.GlobalString("contract"); v != "" {
		cfg.Contract.Hash = v
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	lvl, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	c.Sampling = nil

	log, err := c.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return log, nil
}

func connect(ctx context.Context, cfg config.Config, log *zap.Logger) (*env, error) {
	contract, err := cfg.ContractHash()
	if err != nil {
		return nil, err
	}

	nnsHash, err := cfg.NNSHash()
	if err != nil {
		return nil, err
	}

	devAcc, err := cfg.FallbackAccount()
	if err != nil {
		return nil, err
	}

	prm := bootstrap.Prm{
		Logger:                log,
		Endpoint:              cfg.RPC.Endpoint,
		AllowInsecureFallback: cfg.AllowInsecureFallback,
		FallbackEndpoint:      cfg.Fallback.Endpoint,
		FallbackAccount:       devAcc,
		Contract:              contract,
		ContractName:          cfg.Contract.NNSName,
		NNSContract:           nnsHash,
		CostCeiling:           cfg.CostCeiling,
		RosterConcurrency:     cfg.RosterConcurrency,
		Dial: bootstrap.DialRPC(rpcclient.Options{
			DialTimeout:    cfg.RPC.DialTimeout,
			RequestTimeout: cfg.RPC.RequestTimeout,
		}),
	}

	if cfg.Wallet.Path != "" {
		prm.Provider = &bootstrap.WalletProvider{
			Path:    cfg.Wallet.Path,
			Address: cfg.Wallet.Address,
			Consent: consent(cfg.Wallet.Password),
		}
	}

	s, err := bootstrap.Connect(ctx, prm)
	if err != nil {
		return nil, err
	}

	sLog := log.With(zap.Stringer("session", s.ID))

	return &env{
		cfg:  cfg,
		log:  sLog,
		sess: s,
		ctrl: session.New(session.Opts{
			Logger:      sLog,
			Gateway:     s.Gateway,
			Account:     s.Account.ScriptHash(),
			VoteTimeout: cfg.VoteTimeout,
			SyncTimeout: cfg.SyncTimeout,
		}),
	}, nil
}

// consent returns bootstrap.ConsentFunc providing the configured password or
// asking for it in the terminal.
func consent(password string) bootstrap.ConsentFunc {
	return func(ctx context.Context, address string) (string, error) {
		if password != "" {
			return password, nil
		}

		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("no terminal to ask for the password of %s", address)
		}

		type res struct {
			pass []byte
			err  error
		}

		ch := make(chan res, 1)

		fmt.Fprintf(os.Stderr, "Enter password for %s > ", address)

		go func() {
			pass, err := term.ReadPassword(fd)
			ch <- res{pass, err}
		}()

		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr)
			return "", ctx.Err()
		case r := <-ch:
			fmt.Fprintln(os.Stderr)
			if r.err != nil {
				return "", fmt.Errorf("read password: %w", r.err)
			}
			return string(r.pass), nil
		}
	}
}
