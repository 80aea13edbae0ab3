package adapters

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"astock_backend/internal/feature/ingest/domain/entity"
)

// EquityModel は stock_basic_info テーブルの行です。
type EquityModel struct {
	ID         uint   `gorm:"primaryKey"`
	Symbol     string `gorm:"size:16;not null;uniqueIndex:uk_stock_symbol"`
	SymbolFull string `gorm:"size:24;not null;uniqueIndex:uk_stock_symbol_full"`
	Name       string `gorm:"size:64;not null;default:''"`
	Exchange   string `gorm:"size:8;not null;index:idx_stock_filter,priority:1"`
	Market     string `gorm:"size:16;not null"`

	CompanyName         *string    `gorm:"size:255"`
	EnglishName         *string    `gorm:"size:255"`
	FormerNames         *string    `gorm:"size:255"`
	ListingDate         *time.Time `gorm:"type:date;index:idx_stock_filter,priority:3"`
	EstablishedDate     *time.Time `gorm:"type:date"`
	Industry            *string    `gorm:"size:128;index:idx_stock_filter,priority:2"`
	Province            *string    `gorm:"size:32;index:idx_stock_filter,priority:4"`
	City                *string    `gorm:"size:32"`
	LegalRepresentative *string    `gorm:"size:64"`
	RegisteredCapital   *string    `gorm:"size:64"`
	Website             *string    `gorm:"size:255"`
	Email               *string    `gorm:"size:128"`
	Phone               *string    `gorm:"size:128"`
	Fax                 *string    `gorm:"size:128"`
	RegisteredAddress   *string    `gorm:"size:512"`
	OfficeAddress       *string    `gorm:"size:512"`
	PostalCode          *string    `gorm:"size:16"`
	MainBusiness        *string    `gorm:"type:text"`
	BusinessScope       *string    `gorm:"type:text"`
	CompanyProfile      *string    `gorm:"type:text"`
	DataSource          string     `gorm:"size:32;not null;default:''"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EquityModel) TableName() string {
	return "stock_basic_info"
}

func toEquityModel(e entity.EquityReference) EquityModel {
	return EquityModel{
		Symbol:              e.Symbol,
		SymbolFull:          e.SymbolFull,
		Name:                e.Name,
		Exchange:            string(e.Exchange),
		Market:              string(e.Market),
		CompanyName:         e.CompanyName,
		EnglishName:         e.EnglishName,
		FormerNames:         e.FormerNames,
		ListingDate:         e.ListingDate,
		EstablishedDate:     e.EstablishedDate,
		Industry:            e.Industry,
		Province:            e.Province,
		City:                e.City,
		LegalRepresentative: e.LegalRepresentative,
		RegisteredCapital:   e.RegisteredCapital,
		Website:             e.Website,
		Email:               e.Email,
		Phone:               e.Phone,
		Fax:                 e.Fax,
		RegisteredAddress:   e.RegisteredAddress,
		OfficeAddress:       e.OfficeAddress,
		PostalCode:          e.PostalCode,
		MainBusiness:        e.MainBusiness,
		BusinessScope:       e.BusinessScope,
		CompanyProfile:      e.CompanyProfile,
		DataSource:          e.DataSource,
	}
}

// IncomeStatementModel は report_income_statement テーブルの行です。金額は decimal(24,4) で保持します。
type IncomeStatementModel struct {
	ID        uint   `gorm:"primaryKey"`
	StockCode string `gorm:"column:stock_code;size:16;not null;uniqueIndex:uk_income_slice,priority:1;index:idx_income_lookup,priority:1"`
	Name      string `gorm:"size:64;not null;default:''"`
	Exchange  string `gorm:"size:8;not null"`

	NetProfit               decimal.Decimal `gorm:"type:decimal(24,4);not null;default:0"`
	NetProfitYoY            decimal.Decimal `gorm:"column:net_profit_yoy;type:decimal(24,8);not null;default:0;index:idx_income_lookup,priority:3"`
	TotalOperatingIncome    decimal.Decimal `gorm:"type:decimal(24,4);not null;default:0"`
	TotalOperatingIncomeYoY decimal.Decimal `gorm:"column:total_operating_income_yoy;type:decimal(24,8);not null;default:0"`
	OperatingExpenses       decimal.Decimal `gorm:"type:decimal(24,4);not null;default:0"`
	SalesExpenses           decimal.Decimal `gorm:"type:decimal(24,4);not null;default:0"`
	ManagementExpenses      decimal.Decimal `gorm:"type:decimal(24,4);not null;default:0"`
	FinancialExpenses       decimal.Decimal `gorm:"type:decimal(24,4);not null;default:0"`
	TotalOperatingExpenses  decimal.Decimal `gorm:"type:decimal(24,4);not null;default:0"`
	OperatingProfit         decimal.Decimal `gorm:"type:decimal(24,4);not null;default:0"`
	TotalProfit             decimal.Decimal `gorm:"type:decimal(24,4);not null;default:0"`

	AnnouncementDate *time.Time `gorm:"type:date;index:idx_income_lookup,priority:2"`
	Year             int        `gorm:"not null;uniqueIndex:uk_income_slice,priority:2;index:idx_income_period,priority:1"`
	Quarter          int        `gorm:"not null;uniqueIndex:uk_income_slice,priority:3;index:idx_income_period,priority:2"`

	CreatedAt time.Time
}

func (IncomeStatementModel) TableName() string {
	return "report_income_statement"
}

func toIncomeModel(e entity.QuarterlyIncomeStatement) IncomeStatementModel {
	return IncomeStatementModel{
		StockCode:               e.Symbol,
		Name:                    e.Name,
		Exchange:                string(e.Exchange),
		NetProfit:               e.NetProfit,
		NetProfitYoY:            e.NetProfitYoY,
		TotalOperatingIncome:    e.TotalOperatingIncome,
		TotalOperatingIncomeYoY: e.TotalOperatingIncomeYoY,
		OperatingExpenses:       e.OperatingExpenses,
		SalesExpenses:           e.SalesExpenses,
		ManagementExpenses:      e.ManagementExpenses,
		FinancialExpenses:       e.FinancialExpenses,
		TotalOperatingExpenses:  e.TotalOperatingExpenses,
		OperatingProfit:         e.OperatingProfit,
		TotalProfit:             e.TotalProfit,
		AnnouncementDate:        e.AnnouncementDate,
		Year:                    e.Year,
		Quarter:                 e.Quarter,
	}
}

func (m IncomeStatementModel) toEntity() entity.QuarterlyIncomeStatement {
	return entity.QuarterlyIncomeStatement{
		Symbol:                  m.StockCode,
		Name:                    m.Name,
		Exchange:                entity.Exchange(m.Exchange),
		NetProfit:               m.NetProfit,
		NetProfitYoY:            m.NetProfitYoY,
		TotalOperatingIncome:    m.TotalOperatingIncome,
		TotalOperatingIncomeYoY: m.TotalOperatingIncomeYoY,
		OperatingExpenses:       m.OperatingExpenses,
		SalesExpenses:           m.SalesExpenses,
		ManagementExpenses:      m.ManagementExpenses,
		FinancialExpenses:       m.FinancialExpenses,
		TotalOperatingExpenses:  m.TotalOperatingExpenses,
		OperatingProfit:         m.OperatingProfit,
		TotalProfit:             m.TotalProfit,
		AnnouncementDate:        m.AnnouncementDate,
		Year:                    m.Year,
		Quarter:                 m.Quarter,
	}
}

// IngestRunModel は ingest_run テーブルの行です。失敗一覧は JSON カラムに保存します。
type IngestRunModel struct {
	ID                string         `gorm:"primaryKey;size:64"`
	Kind              string         `gorm:"size:16;not null;index"`
	Year              int            `gorm:"not null;default:0"`
	Quarter           int            `gorm:"not null;default:0"`
	Attempted         int            `gorm:"not null;default:0"`
	SkippedExisting   int            `gorm:"not null;default:0"`
	Succeeded         int            `gorm:"not null;default:0"`
	Failed            int            `gorm:"not null;default:0"`
	Failures          datatypes.JSON `gorm:"type:json"`
	FailuresTruncated int            `gorm:"not null;default:0"`
	Status            string         `gorm:"size:32;not null;index"`
	Cancelled         bool           `gorm:"not null;default:false"`
	Error             string         `gorm:"type:text"`
	StartedAt         *time.Time
	EndedAt           *time.Time
	UpdatedAt         time.Time
}

func (IngestRunModel) TableName() string {
	return "ingest_run"
}

// Models はマイグレーション対象のモデル一覧です。
func Models() []any {
	return []any{&EquityModel{}, &IncomeStatementModel{}, &IngestRunModel{}}
}
