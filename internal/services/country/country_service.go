package country

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
)

// Default country/currency when a request carries neither
const (
	DefaultCountry  = "ZM"
	DefaultCurrency = "ZMW"
)

// countries is the static market reference table. The gateway serves these
// markets; mobile provider lists drive the hosted checkout's wallet options.
var countries = map[string]models.Country{
	"ZM": {Code: "ZM", Name: "Zambia", Currency: "ZMW", MobileProviders: []string{"Airtel Money", "MTN MoMo", "Zamtel Kwacha"}, SupportsRecurring: true, VATRate: 16},
	"KE": {Code: "KE", Name: "Kenya", Currency: "KES", MobileProviders: []string{"M-Pesa", "Airtel Money"}, SupportsRecurring: true, VATRate: 16},
	"TZ": {Code: "TZ", Name: "Tanzania", Currency: "TZS", MobileProviders: []string{"M-Pesa", "Airtel Money", "Tigo Pesa", "HaloPesa"}, SupportsRecurring: true, VATRate: 18},
	"UG": {Code: "UG", Name: "Uganda", Currency: "UGX", MobileProviders: []string{"MTN MoMo", "Airtel Money"}, SupportsRecurring: true, VATRate: 18},
	"ZA": {Code: "ZA", Name: "South Africa", Currency: "ZAR", SupportsRecurring: true, VATRate: 15},
	"RW": {Code: "RW", Name: "Rwanda", Currency: "RWF", MobileProviders: []string{"MTN MoMo", "Airtel Money"}, SupportsRecurring: true, VATRate: 18},
	"ET": {Code: "ET", Name: "Ethiopia", Currency: "ETB", MobileProviders: []string{"CBE Birr", "telebirr"}, SupportsRecurring: false, VATRate: 15},
	"NG": {Code: "NG", Name: "Nigeria", Currency: "NGN", SupportsRecurring: true, VATRate: 7.5},
	"GH": {Code: "GH", Name: "Ghana", Currency: "GHS", MobileProviders: []string{"MTN MoMo", "Vodafone Cash", "AirtelTigo Money"}, SupportsRecurring: true, VATRate: 12.5},
	"BW": {Code: "BW", Name: "Botswana", Currency: "BWP", MobileProviders: []string{"Orange Money", "MyZaka"}, SupportsRecurring: true, VATRate: 12},
	"NA": {Code: "NA", Name: "Namibia", Currency: "NAD", SupportsRecurring: true, VATRate: 15},
	"MU": {Code: "MU", Name: "Mauritius", Currency: "MUR", MobileProviders: []string{"MCB Juice", "MyT Money"}, SupportsRecurring: true, VATRate: 15},
	"MW": {Code: "MW", Name: "Malawi", Currency: "MWK", MobileProviders: []string{"Airtel Money", "TNM Mpamba"}, SupportsRecurring: false, VATRate: 16.5},
	// USD is the commonly transacted currency
	"ZW": {Code: "ZW", Name: "Zimbabwe", Currency: "USD", MobileProviders: []string{"EcoCash", "OneMoney"}, SupportsRecurring: true, VATRate: 15},
	"CI": {Code: "CI", Name: "Côte d'Ivoire", Currency: "XOF", MobileProviders: []string{"Orange Money", "MTN MoMo", "Moov Money"}, SupportsRecurring: false, VATRate: 18},
}

// currencies maps ISO codes to display formatting. Zero-decimal currencies
// have no minor unit on display even though the wire always carries 2 decimals.
var currencies = map[string]models.Currency{
	"ZMW": {Code: "ZMW", Symbol: "K", Decimals: 2},
	"KES": {Code: "KES", Symbol: "KSh", Decimals: 2},
	"TZS": {Code: "TZS", Symbol: "TSh", Decimals: 0},
	"UGX": {Code: "UGX", Symbol: "USh", Decimals: 0},
	"ZAR": {Code: "ZAR", Symbol: "R", Decimals: 2},
	"RWF": {Code: "RWF", Symbol: "FRw", Decimals: 0},
	"ETB": {Code: "ETB", Symbol: "Br", Decimals: 2},
	"NGN": {Code: "NGN", Symbol: "₦", Decimals: 2},
	"GHS": {Code: "GHS", Symbol: "₵", Decimals: 2},
	"BWP": {Code: "BWP", Symbol: "P", Decimals: 2},
	"NAD": {Code: "NAD", Symbol: "N$", Decimals: 2},
	"MUR": {Code: "MUR", Symbol: "₨", Decimals: 2},
	"MWK": {Code: "MWK", Symbol: "MK", Decimals: 2},
	"USD": {Code: "USD", Symbol: "$", Decimals: 2},
	"XOF": {Code: "XOF", Symbol: "CFA", Decimals: 0},
}

// Service answers country and currency reference lookups
type Service struct{}

// NewService creates a country reference data service
func NewService() *Service {
	return &Service{}
}

// All returns every supported country, sorted by code
func (s *Service) All() []models.Country {
	out := make([]models.Country, 0, len(countries))
	for _, c := range countries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Get returns one country by ISO code
func (s *Service) Get(code string) (models.Country, error) {
	c, ok := countries[strings.ToUpper(code)]
	if !ok {
		return models.Country{}, domain.ErrCountryNotFound
	}
	return c, nil
}

// IsValid reports whether a country code is supported
func (s *Service) IsValid(code string) bool {
	_, ok := countries[strings.ToUpper(code)]
	return ok
}

// SupportsRecurring reports whether a country permits recurring billing.
// Unknown countries do not.
func (s *Service) SupportsRecurring(code string) bool {
	c, ok := countries[strings.ToUpper(code)]
	return ok && c.SupportsRecurring
}

// CurrencyFor returns a country's transaction currency, falling back to the
// default for unknown countries
func (s *Service) CurrencyFor(countryCode string) string {
	if c, ok := countries[strings.ToUpper(countryCode)]; ok {
		return c.Currency
	}
	return DefaultCurrency
}

// MobileProviders returns a country's mobile wallet options
func (s *Service) MobileProviders(countryCode string) []string {
	if c, ok := countries[strings.ToUpper(countryCode)]; ok {
		return c.MobileProviders
	}
	return nil
}

// VATRate returns a country's VAT percentage, zero for unknown countries
func (s *Service) VATRate(countryCode string) float64 {
	if c, ok := countries[strings.ToUpper(countryCode)]; ok {
		return c.VATRate
	}
	return 0
}

// FormatAmount renders an amount for display in the currency's convention,
// e.g. "KSh 1,500.00" or "TSh 25,000". Unknown currencies render with the
// code as the symbol and 2 decimals.
func (s *Service) FormatAmount(amount decimal.Decimal, currencyCode string) string {
	cur, ok := currencies[strings.ToUpper(currencyCode)]
	if !ok {
		cur = models.Currency{Code: currencyCode, Symbol: currencyCode, Decimals: 2}
	}
	return cur.Symbol + " " + groupThousands(amount.StringFixed(int32(cur.Decimals)))
}

// groupThousands inserts comma separators into the integer part of a
// fixed-point decimal string
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String() + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// Currency returns the display configuration for a currency code
func (s *Service) Currency(code string) (models.Currency, error) {
	cur, ok := currencies[strings.ToUpper(code)]
	if !ok {
		return models.Currency{}, fmt.Errorf("currency %q not configured", code)
	}
	return cur, nil
}
