package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime/debug"
	"slices"
	"time"

	"cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/stableunit/policyd/internal/lib/boardroom"
	"github.com/stableunit/policyd/internal/lib/chrono"
	"github.com/stableunit/policyd/internal/lib/events"
	"github.com/stableunit/policyd/internal/lib/misc"
	"github.com/stableunit/policyd/internal/lib/oracle"
	"github.com/stableunit/policyd/internal/lib/registry"
	"github.com/stableunit/policyd/internal/lib/token"
	"github.com/stableunit/policyd/internal/lib/treasury"
)

var logLevel = new(slog.LevelVar) // Info by default

func initApp() *PolicyApp {
	log.SetFlags(0)
	var logger *slog.Logger
	if term.IsTerminal(int(os.Stdout.Fd())) {
		// tty output - assume we're run interactively, not as a daemon
		logger = slog.New(misc.NewMinimalHandler(os.Stdout,
			misc.MinimalHandlerOptions{SlogOpts: slog.HandlerOptions{Level: logLevel, AddSource: true}}))
	} else {
		// not on console - output json with key names google logging expects
		opts := &slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.MessageKey {
					a.Key = "message"
				} else if a.Key == slog.LevelKey && len(groups) == 0 {
					a.Key = "severity"
				}
				return a
			},
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings()

	appConfig := &PolicyApp{logger: logger}

	appConfig.cliCmd = &cli.Command{
		Name:    "policyd",
		Usage:   "Monetary-policy engine and epoch daemon for the stable-dollar protocol",
		Version: getVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			// further bootstrap within cli context so flags are resolved
			return appConfig.initProtocol(ctx, cmd)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "env file to load",
				Sources: cli.EnvVars("POLICYD_ENVFILE"),
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Deployment network whose .env overrides to load",
				Aliases: []string{"n"},
				Sources: cli.EnvVars("POLICYD_NETWORK"),
			},
			&cli.DurationFlag{
				Name:    "period",
				Usage:   "Epoch period",
				Value:   6 * time.Hour,
				Sources: cli.EnvVars("POLICYD_PERIOD"),
			},
			&cli.StringFlag{
				Name:    "genesis",
				Usage:   "Epoch genesis instant, RFC3339.  Defaults to process start.",
				Sources: cli.EnvVars("POLICYD_GENESIS"),
			},
			&cli.StringFlag{
				Name:    "operator",
				Usage:   "Operator account for privileged operations",
				Value:   "operator",
				Sources: cli.EnvVars("POLICYD_OPERATOR"),
			},
			&cli.StringFlag{
				Name:    "devfund",
				Usage:   "Account receiving the dev cut of expansion seigniorage",
				Value:   "devfund",
				Sources: cli.EnvVars("POLICYD_DEVFUND"),
			},
			&cli.UintFlag{
				Name:    "sharelimit",
				Usage:   "Lifetime share-mint limit granted to the treasury, whole tokens",
				Value:   10_000_000,
				Sources: cli.EnvVars("POLICYD_SHARELIMIT"),
			},
		},
		Commands: []*cli.Command{
			GetDaemonCmdOpts(),
		},
	}
	return appConfig
}

type PolicyApp struct {
	cliCmd   *cli.Command
	logger   *slog.Logger
	recorder *events.Recorder

	clock     *chrono.Clock
	dollar    *token.Dollar
	bond      *token.Ledger
	share     *token.Share
	oracle    *oracle.Posted
	registry  *registry.Registry
	treasury  *treasury.Treasury
	boardroom *boardroom.Boardroom

	operator token.Address
	devFund  token.Address
}

// Core account names; the treasury and boardroom addresses double as their
// accounts on the token ledgers.
const (
	treasuryAddr  = token.Address("treasury")
	boardroomAddr = token.Address("boardroom")
)

// initProtocol wires the whole protocol in-process: token ledgers, oracle,
// epoch clock, registry, treasury and the share boardroom.
func (ac *PolicyApp) initProtocol(ctx context.Context, cmd *cli.Command) error {
	if envfile := cmd.String("envfile"); envfile != "" {
		misc.Infof(ac.logger, "loading env file:%s", envfile)
		if err := godotenv.Load(envfile); err != nil {
			return err
		}
	}
	if network := cmd.String("network"); network != "" {
		misc.LoadEnvForNetwork(network)
	}

	genesis := time.Now()
	if g := cmd.String("genesis"); g != "" {
		parsed, err := time.Parse(time.RFC3339, g)
		if err != nil {
			return fmt.Errorf("invalid genesis %q: %w", g, err)
		}
		genesis = parsed
	}

	ac.operator = token.Address(cmd.String("operator"))
	ac.devFund = token.Address(cmd.String("devfund"))
	ac.recorder = events.NewRecorder(ac.logger)
	ac.clock = chrono.New(cmd.Duration("period"), genesis)

	ac.dollar = token.NewDollar("SUD")
	ac.bond = token.NewLedger("SUB")
	ac.share = token.NewShare("SUS")
	ac.share.SetMinterLimit(treasuryAddr, math.NewIntWithDecimal(int64(cmd.Uint("sharelimit")), 18))

	// Protocol-held balances neither rebase nor count toward the
	// contraction base.
	ac.dollar.SetRebaseExempt(treasuryAddr, true)
	ac.dollar.SetRebaseExempt(boardroomAddr, true)

	ac.oracle = oracle.NewPosted()
	// Seed the feed at peg so the first epoch can consult before the price
	// feed's first POST lands.
	ac.oracle.Post(ac.dollar.Address(), oracle.One)
	ac.registry = registry.New(ac.operator)

	ac.treasury = treasury.New(ac.logger, ac.recorder, treasuryAddr, ac.operator,
		ac.clock, ac.dollar, ac.bond, ac.share, ac.oracle, ac.registry)
	if err := ac.treasury.Initialize(ac.operator, ac.devFund); err != nil {
		return err
	}

	tick := func() uint64 { return uint64(time.Now().Unix()) }
	ac.boardroom = boardroom.New(ac.logger, ac.recorder, boardroomAddr, treasuryAddr,
		ac.share, ac.dollar, ac.share, ac.treasury, tick)
	return ac.registry.Add(ac.operator, boardroomAddr, ac.boardroom,
		math.NewInt(100), math.NewInt(100))
}

// Version is replaced at build time during docker builds w/ 'release' version
// If not defined, we just return the git rev.
var Version string

func getVersionInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "The version information could not be determined"
	}
	var vcsRev = "(unknown)"
	if fnd := slices.IndexFunc(info.Settings, func(v debug.BuildSetting) bool { return v.Key == "vcs.revision" }); fnd != -1 {
		vcsRev = info.Settings[fnd].Value[0:7]
	}
	if Version != "" {
		return fmt.Sprintf("%s [%s]", Version, vcsRev)
	}
	return vcsRev
}
