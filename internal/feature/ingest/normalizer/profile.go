package normalizer

import (
	"strings"
	"time"

	"astock_backend/internal/feature/ingest/domain/entity"
)

// profileField enumerates the optional attributes of an upstream company profile.
type profileField int

const (
	fieldListingDate profileField = iota
	fieldIndustry
	fieldWebsite
	fieldCompanyName
	fieldEnglishName
	fieldFormerNames
	fieldLegalRepresentative
	fieldRegisteredCapital
	fieldEstablishedDate
	fieldEmail
	fieldPhone
	fieldFax
	fieldRegisteredAddress
	fieldOfficeAddress
	fieldPostalCode
	fieldMainBusiness
	fieldBusinessScope
	fieldCompanyProfile
	fieldSymbol
	fieldName
)

// profileLabels maps upstream profile column labels to profile fields.
var profileLabels = map[string]profileField{
	"上市日期": fieldListingDate,
	"所属行业": fieldIndustry,
	"官方网站": fieldWebsite,
	"公司名称": fieldCompanyName,
	"英文名称": fieldEnglishName,
	"曾用简称": fieldFormerNames,
	"法人代表": fieldLegalRepresentative,
	"注册资金": fieldRegisteredCapital,
	"成立日期": fieldEstablishedDate,
	"电子邮箱": fieldEmail,
	"联系电话": fieldPhone,
	"传真":   fieldFax,
	"注册地址": fieldRegisteredAddress,
	"办公地址": fieldOfficeAddress,
	"邮政编码": fieldPostalCode,
	"主营业务": fieldMainBusiness,
	"经营范围": fieldBusinessScope,
	"机构简介": fieldCompanyProfile,
	"A股代码": fieldSymbol,
	"A股简称": fieldName,
}

// ProfileFields is the explicitly typed intermediate form of an upstream profile.
// Localized labels do not survive past this struct.
type ProfileFields struct {
	Symbol              *string
	Name                *string
	ListingDate         *time.Time
	EstablishedDate     *time.Time
	Industry            *string
	Website             *string
	CompanyName         *string
	EnglishName         *string
	FormerNames         *string
	LegalRepresentative *string
	RegisteredCapital   *string
	Email               *string
	Phone               *string
	Fax                 *string
	RegisteredAddress   *string
	OfficeAddress       *string
	PostalCode          *string
	MainBusiness        *string
	BusinessScope       *string
	CompanyProfile      *string
}

// DecodeProfile translates an upstream profile record through the label table.
// Unknown labels are ignored; unparsable dates become nil.
func DecodeProfile(raw entity.RawRecord) ProfileFields {
	var pf ProfileFields
	for label, v := range raw {
		f, ok := profileLabels[strings.TrimSpace(label)]
		if !ok {
			continue
		}
		switch f {
		case fieldListingDate:
			pf.ListingDate = dateValue(v)
		case fieldEstablishedDate:
			pf.EstablishedDate = dateValue(v)
		case fieldIndustry:
			pf.Industry = optionalText(v)
		case fieldWebsite:
			pf.Website = optionalText(v)
		case fieldCompanyName:
			pf.CompanyName = optionalText(v)
		case fieldEnglishName:
			pf.EnglishName = optionalText(v)
		case fieldFormerNames:
			pf.FormerNames = optionalText(v)
		case fieldLegalRepresentative:
			pf.LegalRepresentative = optionalText(v)
		case fieldRegisteredCapital:
			pf.RegisteredCapital = optionalText(v)
		case fieldEmail:
			pf.Email = optionalText(v)
		case fieldPhone:
			pf.Phone = optionalText(v)
		case fieldFax:
			pf.Fax = optionalText(v)
		case fieldRegisteredAddress:
			pf.RegisteredAddress = optionalText(v)
		case fieldOfficeAddress:
			pf.OfficeAddress = optionalText(v)
		case fieldPostalCode:
			pf.PostalCode = optionalText(v)
		case fieldMainBusiness:
			pf.MainBusiness = optionalText(v)
		case fieldBusinessScope:
			pf.BusinessScope = optionalText(v)
		case fieldCompanyProfile:
			pf.CompanyProfile = optionalText(v)
		case fieldSymbol:
			pf.Symbol = optionalText(v)
		case fieldName:
			pf.Name = optionalText(v)
		}
	}
	return pf
}

// NormalizeProfile builds the reference row for one master-list entry.
// An empty profile still yields a row carrying the symbol, name and derived exchange.
func NormalizeProfile(sym entity.SymbolName, raw entity.RawRecord, source string) entity.EquityReference {
	pf := DecodeProfile(raw)
	symbol := strings.TrimSpace(sym.Symbol)
	ex, market := Classify(symbol)

	name := strings.TrimSpace(sym.Name)
	if name == "" && pf.Name != nil {
		name = *pf.Name
	}

	addr := pf.RegisteredAddress
	if addr == nil {
		addr = pf.OfficeAddress
	}
	var province, city *string
	if addr != nil {
		province, city = SplitAddress(*addr)
	}

	return entity.EquityReference{
		Symbol:              symbol,
		SymbolFull:          FullSymbol(symbol),
		Name:                name,
		Exchange:            ex,
		Market:              market,
		CompanyName:         pf.CompanyName,
		EnglishName:         pf.EnglishName,
		FormerNames:         pf.FormerNames,
		ListingDate:         pf.ListingDate,
		EstablishedDate:     pf.EstablishedDate,
		Industry:            pf.Industry,
		Province:            province,
		City:                city,
		LegalRepresentative: pf.LegalRepresentative,
		RegisteredCapital:   pf.RegisteredCapital,
		Website:             pf.Website,
		Email:               pf.Email,
		Phone:               pf.Phone,
		Fax:                 pf.Fax,
		RegisteredAddress:   pf.RegisteredAddress,
		OfficeAddress:       pf.OfficeAddress,
		PostalCode:          pf.PostalCode,
		MainBusiness:        pf.MainBusiness,
		BusinessScope:       pf.BusinessScope,
		CompanyProfile:      pf.CompanyProfile,
		DataSource:          source,
	}
}

// NormalizeSymbolList trims, validates and de-duplicates the master list keeping
// the first occurrence of each symbol. Entries with an empty symbol are dropped.
func NormalizeSymbolList(in []entity.SymbolName) []entity.SymbolName {
	seen := make(map[string]struct{}, len(in))
	out := make([]entity.SymbolName, 0, len(in))
	for _, s := range in {
		sym := strings.TrimSpace(s.Symbol)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, entity.SymbolName{Symbol: sym, Name: strings.TrimSpace(s.Name)})
	}
	return out
}
