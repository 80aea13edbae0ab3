// Command ingest はインジェストを1回だけ実行するCLIです。
//
//	ingest reference
//	ingest quarter --year 2024 --quarter 1
//	ingest ratios --year 2024 --quarter 1
//	ingest token --subject ops
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"astock_backend/internal/platform/logging"
)

func main() {
	_ = godotenv.Load()

	// 標準出力はレポートのJSON用。ログは標準エラーに出します
	logCfg := logging.LoadConfig()
	logger, closer := logging.NewLogger(logCfg)
	if logCfg.File == "" {
		logger = logging.New(os.Stderr, logCfg)
	}
	defer func() { _ = closer.Close() }()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		slog.Error("ingest failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "sync A-share reference data and quarterly income statements",
		Commands: []*cli.Command{
			referenceCommand(out),
			quarterCommand(out),
			ratiosCommand(out),
			tokenCommand(out),
		},
	}
}
