// Package entity defines the domain models for the ingest feature.
package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exchange is the two-letter venue code derived from a numeric symbol.
type Exchange string

const (
	ExchangeSH      Exchange = "SH"
	ExchangeSZ      Exchange = "SZ"
	ExchangeBJ      Exchange = "BJ"
	ExchangeUnknown Exchange = "UNKNOWN"
)

// Market is the board classification of a listed instrument.
type Market string

const (
	MarketSHMain   Market = "沪市A股"
	MarketSZMain   Market = "深市主板"
	MarketChiNext  Market = "创业板"
	MarketBJ       Market = "北交所"
	MarketSHBShare Market = "沪市B股"
	MarketSZBShare Market = "深市B股"
	MarketUnknown  Market = "未知"
)

// SymbolName is one entry of the upstream master list.
type SymbolName struct {
	Symbol string
	Name   string
}

// EquityReference is the normalized reference profile of one listed instrument.
// Optional attributes are nil when the upstream omitted them or they could not be parsed.
type EquityReference struct {
	Symbol              string
	SymbolFull          string
	Name                string
	Exchange            Exchange
	Market              Market
	CompanyName         *string
	EnglishName         *string
	FormerNames         *string
	ListingDate         *time.Time
	EstablishedDate     *time.Time
	Industry            *string
	Province            *string
	City                *string
	LegalRepresentative *string
	RegisteredCapital   *string
	Website             *string
	Email               *string
	Phone               *string
	Fax                 *string
	RegisteredAddress   *string
	OfficeAddress       *string
	PostalCode          *string
	MainBusiness        *string
	BusinessScope       *string
	CompanyProfile      *string
	DataSource          string
}

// QuarterlyIncomeStatement is one row of the income statement slice for (Year, Quarter).
// Monetary amounts keep the exact decimal text received from upstream.
type QuarterlyIncomeStatement struct {
	Symbol                  string
	Name                    string
	Exchange                Exchange
	NetProfit               decimal.Decimal
	NetProfitYoY            decimal.Decimal // stored as received; upstream mixes percentages and ratios
	TotalOperatingIncome    decimal.Decimal
	TotalOperatingIncomeYoY decimal.Decimal // stored as received; upstream mixes percentages and ratios
	OperatingExpenses       decimal.Decimal
	SalesExpenses           decimal.Decimal
	ManagementExpenses      decimal.Decimal
	FinancialExpenses       decimal.Decimal
	TotalOperatingExpenses  decimal.Decimal
	OperatingProfit         decimal.Decimal
	TotalProfit             decimal.Decimal
	AnnouncementDate        *time.Time
	Year                    int
	Quarter                 int
}

// RawRecord is an upstream record keyed by the source's own column labels.
// Only the normalizer interprets the labels.
type RawRecord map[string]any
