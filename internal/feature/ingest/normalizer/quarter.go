package normalizer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"astock_backend/internal/feature/ingest/domain/entity"
)

// QuarterColumns is the rename table from upstream income-statement labels to internal field names.
var QuarterColumns = map[string]string{
	"股票代码":        "symbol",
	"股票简称":        "name",
	"净利润":         "net_profit",
	"净利润同比":       "net_profit_yoy",
	"营业总收入":       "total_operating_income",
	"营业总收入同比":     "total_operating_income_yoy",
	"营业总支出-营业支出":  "operating_expenses",
	"营业总支出-销售费用":  "sales_expenses",
	"营业总支出-管理费用":  "management_expenses",
	"营业总支出-财务费用":  "financial_expenses",
	"营业总支出-营业总支出": "total_operating_expenses",
	"营业利润":        "operating_profit",
	"利润总额":        "total_profit",
	"公告日期":        "announcement_date",
}

var quarterSuffixes = map[int]string{1: "0331", 2: "0630", 3: "0930", 4: "1231"}

// QuarterDate encodes (year, quarter) as the upstream report-date parameter, e.g. 2024Q2 -> "20240630".
func QuarterDate(year, quarter int) (string, error) {
	suffix, ok := quarterSuffixes[quarter]
	if !ok {
		return "", fmt.Errorf("quarter %d out of range", quarter)
	}
	return fmt.Sprintf("%04d%s", year, suffix), nil
}

// RenameColumns applies the rename table. Labels outside the table are dropped.
func RenameColumns(raw entity.RawRecord) map[string]any {
	out := make(map[string]any, len(QuarterColumns))
	for label, v := range raw {
		if field, ok := QuarterColumns[strings.TrimSpace(label)]; ok {
			out[field] = v
		}
	}
	return out
}

// NormalizeQuarterSnapshot maps a quarter snapshot into income-statement rows for (year, quarter).
// Missing numerics become zero. Rows without a symbol are dropped and repeated symbols keep
// their first row, so the result is keyed uniquely by symbol.
func NormalizeQuarterSnapshot(rows []entity.RawRecord, year, quarter int) []entity.QuarterlyIncomeStatement {
	out := make([]entity.QuarterlyIncomeStatement, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, raw := range rows {
		r := RenameColumns(raw)
		symbol, ok := textValue(r["symbol"])
		if !ok {
			continue
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}

		name, _ := textValue(r["name"])
		ex, _ := Classify(symbol)
		out = append(out, entity.QuarterlyIncomeStatement{
			Symbol:                  symbol,
			Name:                    name,
			Exchange:                ex,
			NetProfit:               amountOrZero(r["net_profit"]),
			NetProfitYoY:            amountOrZero(r["net_profit_yoy"]),
			TotalOperatingIncome:    amountOrZero(r["total_operating_income"]),
			TotalOperatingIncomeYoY: amountOrZero(r["total_operating_income_yoy"]),
			OperatingExpenses:       amountOrZero(r["operating_expenses"]),
			SalesExpenses:           amountOrZero(r["sales_expenses"]),
			ManagementExpenses:      amountOrZero(r["management_expenses"]),
			FinancialExpenses:       amountOrZero(r["financial_expenses"]),
			TotalOperatingExpenses:  amountOrZero(r["total_operating_expenses"]),
			OperatingProfit:         amountOrZero(r["operating_profit"]),
			TotalProfit:             amountOrZero(r["total_profit"]),
			AnnouncementDate:        dateValue(r["announcement_date"]),
			Year:                    year,
			Quarter:                 quarter,
		})
	}
	return out
}

// Ratios are the derived profitability ratios of one income row, in percent.
// All three are nil when total operating income is zero.
type Ratios struct {
	GrossMargin           *decimal.Decimal
	ExpenseRatio          *decimal.Decimal
	OperatingProfitMargin *decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// DeriveRatios computes gross margin, period-expense ratio and operating margin rounded to 2 decimals.
func DeriveRatios(s entity.QuarterlyIncomeStatement) Ratios {
	income := s.TotalOperatingIncome
	if income.IsZero() {
		return Ratios{}
	}
	pct := func(num decimal.Decimal) *decimal.Decimal {
		v := num.Mul(hundred).Div(income).Round(2)
		return &v
	}
	expenses := s.SalesExpenses.Add(s.ManagementExpenses).Add(s.FinancialExpenses)
	return Ratios{
		GrossMargin:           pct(income.Sub(s.OperatingExpenses)),
		ExpenseRatio:          pct(expenses),
		OperatingProfitMargin: pct(s.OperatingProfit),
	}
}
