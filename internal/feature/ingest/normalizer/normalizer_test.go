package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astock_backend/internal/feature/ingest/domain/entity"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol   string
		exchange entity.Exchange
		market   entity.Market
	}{
		{"600519", entity.ExchangeSH, entity.MarketSHMain},
		{"688981", entity.ExchangeSH, entity.MarketSHMain},
		{"000001", entity.ExchangeSZ, entity.MarketSZMain},
		{"300750", entity.ExchangeSZ, entity.MarketChiNext},
		{"430047", entity.ExchangeBJ, entity.MarketBJ},
		{"830799", entity.ExchangeBJ, entity.MarketBJ},
		{"900901", entity.ExchangeSH, entity.MarketSHBShare},
		{"200002", entity.ExchangeSZ, entity.MarketSZBShare},
		{"201872", entity.ExchangeUnknown, entity.MarketUnknown},
		{"123456", entity.ExchangeUnknown, entity.MarketUnknown},
		{"500001", entity.ExchangeUnknown, entity.MarketUnknown},
		{"700001", entity.ExchangeUnknown, entity.MarketUnknown},
		{"", entity.ExchangeUnknown, entity.MarketUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			t.Parallel()
			ex, market := Classify(tt.symbol)
			assert.Equal(t, tt.exchange, ex)
			assert.Equal(t, tt.market, market)
		})
	}
}

// TestClassify_TotalOnSixDigitSymbols checks every leading-three-digit prefix maps to a known row of the table.
func TestClassify_TotalOnSixDigitSymbols(t *testing.T) {
	t.Parallel()

	for p := 0; p < 1000; p++ {
		sym := fmt.Sprintf("%03d001", p)
		ex, market := Classify(sym)

		var wantEx entity.Exchange
		switch {
		case sym[:3] == "200":
			wantEx = entity.ExchangeSZ
		case sym[0] == '6' || sym[0] == '9':
			wantEx = entity.ExchangeSH
		case sym[0] == '0' || sym[0] == '3':
			wantEx = entity.ExchangeSZ
		case sym[0] == '4' || sym[0] == '8':
			wantEx = entity.ExchangeBJ
		default:
			wantEx = entity.ExchangeUnknown
		}
		require.Equal(t, wantEx, ex, sym)
		require.NotEmpty(t, market, sym)
	}
}

func TestFullSymbol(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SH600519", FullSymbol("600519"))
	assert.Equal(t, "SZ000001", FullSymbol(" 000001 "))
	assert.Equal(t, "BJ430047", FullSymbol("430047"))
	assert.Equal(t, "SZ200002", FullSymbol("200002"))
	assert.Equal(t, "123456", FullSymbol("123456"))
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2001, 8, 27, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		want  *time.Time
	}{
		{"dash", "2001-08-27", &want},
		{"slash", "2001/08/27", &want},
		{"compact", "20010827", &want},
		{"surrounding whitespace", "  2001-08-27\n", &want},
		{"inner whitespace", "2001 - 08 - 27", &want},
		{"dotted is rejected", "2001.08.27", nil},
		{"invalid month", "2001-13-01", nil},
		{"empty", "", nil},
		{"text", "unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseDate(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v", got)
		})
	}
}

func TestDateValue_Timestamps(t *testing.T) {
	t.Parallel()

	got := dateValue("2024-08-30T00:00:00.000")
	require.NotNil(t, got)
	assert.Equal(t, "2024-08-30", got.Format("2006-01-02"))

	assert.Nil(t, dateValue(nil))
	assert.Nil(t, dateValue(math.NaN()))
}

func TestSplitAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		address  string
		province string
		city     string
	}{
		{"province and city", "广东省深圳市福田区益田路5033号", "广东省", "深圳市"},
		{"municipality", "北京市海淀区中关村大街1号", "北京市", ""},
		{"autonomous region with long city", "内蒙古自治区呼和浩特市新城区", "内蒙古自治区", "呼和浩特市"},
		{"leading whitespace", "  上海市浦东新区", "上海市", ""},
		{"punctuation after province", "浙江省，杭州市西湖区", "浙江省", "杭州市"},
		{"three character city", "河北省石家庄市长安区", "河北省", "石家庄市"},
		{"prefecture", "甘肃省临夏回族自治州", "甘肃省", "临夏回"},
		{"league", "内蒙古自治区锡林郭勒盟二连浩特市", "内蒙古自治区", "锡林郭勒盟"},
		{"region suffix", "新疆维吾尔自治区阿克苏地区阿克苏市", "新疆维吾尔自治区", "阿克苏地区"},
		{"province not at start", "中国江苏省苏州市工业园区", "江苏省", "苏州市"},
		{"municipality not at start", "中国重庆市渝中区", "重庆市", ""},
		{"municipality mentioned after province", "江苏省苏州市工业园区上海市驻苏办事处", "江苏省", "苏州市"},
		{"earliest province wins", "中国浙江省杭州市江苏省商会", "浙江省", "杭州市"},
		{"no city suffix", "四川省成都高新区天府大道", "四川省", "成都高"},
		{"fallback on 省", "某某省某某市某某路", "某某省", "某某市"},
		{"fallback without 市", "某某省某某路", "某某省", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			province, city := SplitAddress(tt.address)
			require.NotNil(t, province)
			assert.Equal(t, tt.province, *province)
			if tt.city == "" {
				assert.Nil(t, city)
			} else {
				require.NotNil(t, city)
				assert.Equal(t, tt.city, *city)
			}
		})
	}
}

func TestSplitAddress_NoProvince(t *testing.T) {
	t.Parallel()

	for _, addr := range []string{"", "   ", "Grand Cayman KY1-1104", "深圳市南山区"} {
		province, city := SplitAddress(addr)
		assert.Nil(t, province, addr)
		assert.Nil(t, city, addr)
	}
}

func TestSplitAddress_Pure(t *testing.T) {
	t.Parallel()

	p1, c1 := SplitAddress("广东省深圳市福田区")
	p2, c2 := SplitAddress("广东省深圳市福田区")
	assert.Equal(t, *p1, *p2)
	assert.Equal(t, *c1, *c2)
}

func TestNormalizeProfile(t *testing.T) {
	t.Parallel()

	raw := entity.RawRecord{
		"公司名称": "贵州茅台酒股份有限公司",
		"英文名称": "Kweichow Moutai Co.,Ltd.",
		"上市日期": "2001-08-27",
		"成立日期": "19991120",
		"所属行业": "酒、饮料和精制茶制造业",
		"注册资金": "125619.78万元",
		"注册地址": "贵州省仁怀市茅台镇",
		"办公地址": "贵州省仁怀市茅台镇",
		"官方网站": "www.moutaichina.com",
		"电子邮箱": "mt600519@163.com",
		"联系电话": "0851-22386002",
		"传真":   "nan",
		"邮政编码": 564501,
		"主营业务": "茅台酒及系列酒的生产与销售",
		"未知字段": "ignored",
	}

	got := NormalizeProfile(entity.SymbolName{Symbol: "600519", Name: "贵州茅台"}, raw, "akshare")

	assert.Equal(t, "600519", got.Symbol)
	assert.Equal(t, "SH600519", got.SymbolFull)
	assert.Equal(t, "贵州茅台", got.Name)
	assert.Equal(t, entity.ExchangeSH, got.Exchange)
	assert.Equal(t, entity.MarketSHMain, got.Market)
	require.NotNil(t, got.ListingDate)
	assert.Equal(t, "2001-08-27", got.ListingDate.Format("2006-01-02"))
	require.NotNil(t, got.EstablishedDate)
	assert.Equal(t, "1999-11-20", got.EstablishedDate.Format("2006-01-02"))
	require.NotNil(t, got.Province)
	assert.Equal(t, "贵州省", *got.Province)
	require.NotNil(t, got.City)
	assert.Equal(t, "仁怀市", *got.City)
	require.NotNil(t, got.RegisteredCapital)
	assert.Equal(t, "125619.78万元", *got.RegisteredCapital)
	require.NotNil(t, got.PostalCode)
	assert.Equal(t, "564501", *got.PostalCode)
	assert.Nil(t, got.Fax)
	assert.Nil(t, got.BusinessScope)
	assert.Equal(t, "akshare", got.DataSource)
}

func TestNormalizeProfile_EmptyRecord(t *testing.T) {
	t.Parallel()

	got := NormalizeProfile(entity.SymbolName{Symbol: "430047", Name: "X"}, nil, "akshare")

	assert.Equal(t, "430047", got.Symbol)
	assert.Equal(t, "BJ430047", got.SymbolFull)
	assert.Equal(t, entity.ExchangeBJ, got.Exchange)
	assert.Nil(t, got.ListingDate)
	assert.Nil(t, got.Province)
	assert.Nil(t, got.City)
}

func TestNormalizeProfile_UnparsableDateDropped(t *testing.T) {
	t.Parallel()

	got := NormalizeProfile(entity.SymbolName{Symbol: "000001"}, entity.RawRecord{"上市日期": "1991年4月3日", "A股简称": "平安银行"}, "")
	assert.Nil(t, got.ListingDate)
	assert.Equal(t, "平安银行", got.Name)
}

func TestNormalizeSymbolList(t *testing.T) {
	t.Parallel()

	in := []entity.SymbolName{
		{Symbol: "600519", Name: "贵州茅台"},
		{Symbol: " 000001", Name: "平安银行 "},
		{Symbol: "600519", Name: "duplicate"},
		{Symbol: "", Name: "blank"},
		{Symbol: "430047", Name: "X"},
	}
	got := NormalizeSymbolList(in)
	assert.Equal(t, []entity.SymbolName{
		{Symbol: "600519", Name: "贵州茅台"},
		{Symbol: "000001", Name: "平安银行"},
		{Symbol: "430047", Name: "X"},
	}, got)
}

func TestQuarterDate(t *testing.T) {
	t.Parallel()

	for q, want := range map[int]string{1: "20240331", 2: "20240630", 3: "20240930", 4: "20241231"} {
		got, err := QuarterDate(2024, q)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := QuarterDate(2024, 5)
	assert.Error(t, err)
	_, err = QuarterDate(2024, 0)
	assert.Error(t, err)
}

func TestRenameColumns_Bijective(t *testing.T) {
	t.Parallel()

	seen := map[string]string{}
	for label, field := range QuarterColumns {
		prev, dup := seen[field]
		assert.False(t, dup, "field %s mapped from %s and %s", field, prev, label)
		seen[field] = label
	}
	assert.Len(t, QuarterColumns, 14)

	out := RenameColumns(entity.RawRecord{"股票代码": "600519", "序号": 1})
	assert.Equal(t, map[string]any{"symbol": "600519"}, out)
}

func TestNormalizeQuarterSnapshot(t *testing.T) {
	t.Parallel()

	rows := []entity.RawRecord{
		{
			"序号":          1,
			"股票代码":        "600519",
			"股票简称":        "贵州茅台",
			"净利润":         json.Number("41695874300.12"),
			"净利润同比":       json.Number("15.88"),
			"营业总收入":       json.Number("83451439045.5"),
			"营业总收入同比":     17.56,
			"营业总支出-营业支出":  json.Number("6528395000"),
			"营业总支出-销售费用":  "2518765432.10",
			"营业总支出-管理费用":  nil,
			"营业总支出-财务费用":  math.NaN(),
			"营业总支出-营业总支出": "--",
			"营业利润":        json.Number("57123456789"),
			"利润总额":        json.Number("57023456789"),
			"公告日期":        "2024-08-08T00:00:00",
		},
		{"股票代码": "000001", "股票简称": "平安银行"},
		{"股票代码": "600519", "股票简称": "duplicate"},
		{"股票简称": "no symbol"},
	}

	got := NormalizeQuarterSnapshot(rows, 2024, 2)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "600519", first.Symbol)
	assert.Equal(t, "贵州茅台", first.Name)
	assert.Equal(t, entity.ExchangeSH, first.Exchange)
	assert.Equal(t, "41695874300.12", first.NetProfit.String())
	assert.Equal(t, "15.88", first.NetProfitYoY.String())
	assert.Equal(t, "83451439045.5", first.TotalOperatingIncome.String())
	assert.Equal(t, "17.56", first.TotalOperatingIncomeYoY.String())
	assert.Equal(t, "2518765432.1", first.SalesExpenses.String())
	assert.True(t, first.ManagementExpenses.IsZero())
	assert.True(t, first.FinancialExpenses.IsZero())
	assert.True(t, first.TotalOperatingExpenses.IsZero())
	require.NotNil(t, first.AnnouncementDate)
	assert.Equal(t, "2024-08-08", first.AnnouncementDate.Format("2006-01-02"))
	assert.Equal(t, 2024, first.Year)
	assert.Equal(t, 2, first.Quarter)

	second := got[1]
	assert.Equal(t, "000001", second.Symbol)
	assert.Equal(t, entity.ExchangeSZ, second.Exchange)
	assert.True(t, second.NetProfit.IsZero())
	assert.Nil(t, second.AnnouncementDate)
}

func TestNormalizeQuarterSnapshot_Empty(t *testing.T) {
	t.Parallel()

	got := NormalizeQuarterSnapshot(nil, 2024, 2)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeriveRatios(t *testing.T) {
	t.Parallel()

	row := entity.QuarterlyIncomeStatement{
		TotalOperatingIncome: dec("1000"),
		OperatingExpenses:    dec("400"),
		SalesExpenses:        dec("50"),
		ManagementExpenses:   dec("30"),
		FinancialExpenses:    dec("-10"),
		OperatingProfit:      dec("200"),
	}

	r := DeriveRatios(row)
	require.NotNil(t, r.GrossMargin)
	require.NotNil(t, r.ExpenseRatio)
	require.NotNil(t, r.OperatingProfitMargin)
	assert.Equal(t, "60", r.GrossMargin.String())
	assert.Equal(t, "7", r.ExpenseRatio.String())
	assert.Equal(t, "20", r.OperatingProfitMargin.String())
	assert.Equal(t, "60.00", r.GrossMargin.StringFixed(2))
}

func TestDeriveRatios_Rounding(t *testing.T) {
	t.Parallel()

	row := entity.QuarterlyIncomeStatement{
		TotalOperatingIncome: dec("3"),
		OperatingExpenses:    dec("1"),
		SalesExpenses:        dec("1"),
		OperatingProfit:      dec("2"),
	}

	r := DeriveRatios(row)
	assert.Equal(t, "66.67", r.GrossMargin.StringFixed(2))
	assert.Equal(t, "33.33", r.ExpenseRatio.StringFixed(2))
	assert.Equal(t, "66.67", r.OperatingProfitMargin.StringFixed(2))
}

func TestDeriveRatios_ZeroIncome(t *testing.T) {
	t.Parallel()

	r := DeriveRatios(entity.QuarterlyIncomeStatement{OperatingProfit: dec("200")})
	assert.Nil(t, r.GrossMargin)
	assert.Nil(t, r.ExpenseRatio)
	assert.Nil(t, r.OperatingProfitMargin)
}
