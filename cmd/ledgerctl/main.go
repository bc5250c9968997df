// Command ledgerctl inspects a ledger store directly.
//
//	ledgerctl verify -case C1
//	ledgerctl timeline -case C1
//
// It reads the same configuration as the API. verify exits 2 when the chain
// is broken.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Veysel440/go-ledger/internal/app"
	"github.com/Veysel440/go-ledger/internal/config"
)

const (
	exitOK     = 0
	exitErr    = 1
	exitBroken = 2
)

var errBroken = errors.New("chain broken")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: ledgerctl <verify|timeline> -case <id>")
		return exitErr
	}
	cmd := args[0]
	if cmd != "verify" && cmd != "timeline" {
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return exitErr
	}
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	caseID := fs.String("case", "", "case id")
	timeout := fs.Duration("timeout", 30*time.Second, "overall timeout")
	if err := fs.Parse(args[1:]); err != nil {
		return exitErr
	}
	if *caseID == "" {
		fmt.Fprintln(stderr, "-case is required")
		return exitErr
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitErr
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ledger, err := app.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitErr
	}
	defer ledger.Close(context.Background())

	switch cmd {
	case "verify":
		err = verify(ctx, ledger, *caseID, stdout)
	case "timeline":
		err = timeline(ctx, ledger, *caseID, stdout)
	}
	switch {
	case errors.Is(err, errBroken):
		return exitBroken
	case err != nil:
		fmt.Fprintln(stderr, err)
		return exitErr
	}
	return exitOK
}

func verify(ctx context.Context, l *app.Ledger, caseID string, out io.Writer) error {
	res, err := l.Service.VerifyChain(ctx, caseID)
	if err != nil {
		return err
	}
	if err := printJSON(out, res); err != nil {
		return err
	}
	if !res.OK {
		return errBroken
	}
	return nil
}

func timeline(ctx context.Context, l *app.Ledger, caseID string, out io.Writer) error {
	tl, err := l.Service.BuildTimeline(ctx, caseID)
	if err != nil {
		return err
	}
	return printJSON(out, tl)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
