package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"

	"astock_backend/internal/app/di"
	"astock_backend/internal/feature/ingest/adapters"
	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/normalizer"
	"astock_backend/internal/feature/ingest/transport/http/dto"
	"astock_backend/internal/feature/ingest/usecase"
	"astock_backend/internal/platform/db"
	"astock_backend/internal/platform/externalapi/akshare"
	jwtmw "astock_backend/internal/platform/jwt"
	infraredis "astock_backend/internal/platform/redis"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errRunAborted は実行が Aborted で終了したことを示します。レポートは出力済みです。
var errRunAborted = errors.New("run aborted")

func yearQuarterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "year", Usage: "report `YEAR` (1993 or later)", Required: true},
		&cli.IntFlag{Name: "quarter", Usage: "`QUARTER` 1-4", Required: true},
	}
}

func referenceCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "reference",
		Usage: "insert reference profiles for symbols not yet stored",
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, cleanup, err := newUsecase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := uc.RunReferenceSync(ctx)
			return printReport(out, report, err)
		},
	}
}

func quarterCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "quarter",
		Usage: "replace the income statement slice of one quarter",
		Flags: yearQuarterFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, cleanup, err := newUsecase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := uc.RunQuarterSync(ctx, int(c.Int("year")), int(c.Int("quarter")))
			return printReport(out, report, err)
		},
	}
}

// ratioRow は ratios サブコマンドの出力行です。
type ratioRow struct {
	Symbol                string           `json:"symbol"`
	Name                  string           `json:"name"`
	GrossMargin           *decimal.Decimal `json:"gross_margin"`
	ExpenseRatio          *decimal.Decimal `json:"expense_ratio"`
	OperatingProfitMargin *decimal.Decimal `json:"operating_profit_margin"`
}

func ratiosCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "ratios",
		Usage: "print derived margins of a stored quarter slice",
		Flags: yearQuarterFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			gdb, err := db.OpenDB(db.LoadConfigFromEnv(), adapters.Models()...)
			if err != nil {
				return err
			}
			defer closeDB(gdb)

			rows, err := adapters.NewEquityStore(gdb).FindQuarter(ctx, int(c.Int("year")), int(c.Int("quarter")))
			if err != nil {
				return err
			}
			return json.NewEncoder(out).Encode(ratioRows(rows))
		},
	}
}

func ratioRows(rows []entity.QuarterlyIncomeStatement) []ratioRow {
	out := make([]ratioRow, 0, len(rows))
	for _, r := range rows {
		ratios := normalizer.DeriveRatios(r)
		out = append(out, ratioRow{
			Symbol:                r.Symbol,
			Name:                  r.Name,
			GrossMargin:           ratios.GrossMargin,
			ExpenseRatio:          ratios.ExpenseRatio,
			OperatingProfitMargin: ratios.OperatingProfitMargin,
		})
	}
	return out
}

func tokenCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue an operator token for the trigger endpoints (signed with JWT_SECRET)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Usage: "operator `NAME`", Value: "ops"},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: 24 * time.Hour},
			&cli.StringFlag{Name: "secret", Usage: "signing secret", Sources: cli.EnvVars(jwtmw.EnvKeyJWTSecret)},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			secret := c.String("secret")
			if secret == "" {
				return fmt.Errorf("%s is not set", jwtmw.EnvKeyJWTSecret)
			}
			token, err := jwtmw.NewGenerator(secret, c.Duration("ttl")).GenerateToken(c.String("subject"), jwtmw.ScopeIngest)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, token)
			return err
		},
	}
}

// newUsecase はサーバーと同じ構成で IngestUsecase を組み立てます。
func newUsecase(ctx context.Context) (*usecase.IngestUsecase, func(), error) {
	gdb, err := db.OpenDB(db.LoadConfigFromEnv(), adapters.Models()...)
	if err != nil {
		return nil, nil, err
	}

	var rdb *redisv9.Client
	if rcfg := infraredis.LoadConfig(); rcfg.Enabled() {
		rdb, err = infraredis.NewRedisClient(ctx, rcfg)
		if err != nil {
			closeDB(gdb)
			return nil, nil, fmt.Errorf("redis configured but unreachable: %w", err)
		}
	}

	upstream := akshare.LoadConfig()
	uc := di.NewIngestUsecase(gdb, rdb, di.NewMarketSource(upstream), di.LoadIngestConfig(upstream))
	cleanup := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		closeDB(gdb)
	}
	return uc, cleanup, nil
}

// printReport はレポートをJSONで出力します。実行が開始されなかった場合はエラーだけを返します。
func printReport(out io.Writer, report *entity.IngestRunReport, runErr error) error {
	if report == nil {
		return runErr
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dto.NewRunReport(report)); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("%w: %v", errRunAborted, runErr)
	}
	return nil
}

func closeDB(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
