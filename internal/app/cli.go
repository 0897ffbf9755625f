package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shandysiswandi/goledger/internal/ledger"
	"github.com/shandysiswandi/goledger/internal/ledger/report"
	"github.com/shandysiswandi/goledger/internal/ledger/usecase"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/goledger/internal/pkg/pkglog"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// RunCLI replays a single transactions file and writes the final snapshot to
// stdout. Diagnostics are written to stderr as JSON logs. The return value is
// the process exit code.
func RunCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("goledger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "optional YAML config file")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: goledger [-config path] <transactions.csv>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	pkglog.InitLogging(stderr, slog.LevelInfo)

	opts := []pkgconfig.Option{pkgconfig.WithDefaults(defaults())}
	if *configPath == "" {
		opts = append(opts, pkgconfig.Optional())
	}
	cfg, err := pkgconfig.NewViper(*configPath, opts...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to init config", "error", err)
		return exitFail
	}
	defer func() { _ = cfg.Close() }()

	pkglog.InitLogging(stderr, pkglog.ParseLevel(cfg.GetString("log.level")))

	policy, err := ledger.PolicyFromConfig(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "invalid ledger policy", "error", err)
		return exitFail
	}

	input := fs.Arg(0)
	f, err := os.Open(input)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open input", "path", input, "error", err)
		return exitFail
	}
	defer func() { _ = f.Close() }()

	uc := usecase.New(usecase.Dependency{Policy: policy})

	res, err := uc.Replay(ctx, f)
	if err != nil {
		slog.ErrorContext(ctx, "replay aborted", "path", input, "line_count", res.TotalLines, "error", err)
		return exitFail
	}

	sink := report.CSV{Precision: ledger.Precision(cfg)}
	if err := sink.WriteAccounts(stdout, res.Accounts); err != nil {
		slog.ErrorContext(ctx, "failed to write snapshot", "error", err)
		return exitFail
	}

	slog.InfoContext(ctx, "replay finished",
		"path", input,
		"policy_withdrawal_boundary", policy.WithdrawalBoundary.String(),
		"policy_locked_accounts", policy.LockedAccounts.String(),
		"lines", res.TotalLines,
		"parsed_ok", res.ParsedOK,
		"parse_err", res.ParseErr,
		"applied", res.Applied,
		"rejected", res.Rejected,
		"accounts", len(res.Accounts),
	)

	return exitOK
}
