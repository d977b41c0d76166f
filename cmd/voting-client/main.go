package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
)

// Version is the application version, set at build time.
var Version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newApp(ctx).Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func newApp(ctx context.Context) *cli.App {
	app := cli.NewApp()
	app.Name = "voting-client"
	app.Usage = "Vote via the Voting contract deployed in Neo N3 network"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "Path to the YAML configuration file",
			EnvVar: "VOTING_CONFIG",
		},
		cli.StringFlag{
			Name:  "rpc, r",
			Usage: "Network address of the Neo RPC server (overrides config)",
		},
		cli.StringFlag{
			Name:  "wallet, w",
			Usage: "Path to the NEP-6 wallet file (overrides config)",
		},
		cli.StringFlag{
			Name:  "address, a",
			Usage: "Address of the wallet account to use (overrides config)",
		},
		cli.StringFlag{
			Name:  "contract",
			Usage: "Voting contract script hash or address (overrides config)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "status",
			Usage:  "Show voting dates, candidates and vote status of the account",
			Action: withSession(ctx, status),
		},
		{
			Name:      "vote",
			Usage:     "Vote for the candidate",
			UsageText: "voting-client vote --candidate <ID>",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "candidate, id", Usage: "Candidate ID"},
			},
			Action: withSession(ctx, vote),
		},
		{
			Name:      "add-candidate",
			Usage:     "Register new candidate",
			UsageText: "voting-client add-candidate --name <name> [--party <party>]",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "name", Usage: "Candidate name"},
				cli.StringFlag{Name: "party", Usage: "Candidate affiliation"},
			},
			Action: withSession(ctx, addCandidate),
		},
		{
			Name:      "set-dates",
			Usage:     "Set voting dates",
			UsageText: "voting-client set-dates --start <date> --end <date>",
			Description: "Dates are accepted in RFC 3339 format or as YYYY-MM-DD meaning the midnight of\n" +
				"   the local time zone. Voting is open from start (inclusive) to end (exclusive).",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "start", Usage: "Voting start date"},
				cli.StringFlag{Name: "end", Usage: "Voting end date"},
			},
			Action: withSession(ctx, setDates),
		},
		{
			Name:  "watch",
			Usage: "Periodically refresh and show the session state",
			Flags: []cli.Flag{
				cli.DurationFlag{Name: "interval, i", Value: defaultWatchInterval, Usage: "Refresh interval"},
			},
			Action: withSession(ctx, watch),
		},
		{
			Name:      "export",
			Usage:     "Export tallies confirmed by the ledger to files",
			UsageText: "voting-client export --dir <dir> --label <label> | --list",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "dir, d", Value: "tallies", Usage: "Export directory"},
				cli.StringFlag{Name: "label, l", Usage: "Label of the export (e.g. 'testnet')"},
				cli.BoolFlag{Name: "list", Usage: "List existing exports instead"},
			},
			Action: exportTallies(ctx),
		},
	}

	return app
}
