package country

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zedpay/dpo-payment-service/internal/domain"
)

func TestGetCountry(t *testing.T) {
	svc := NewService()

	ke, err := svc.Get("KE")
	require.NoError(t, err)
	assert.Equal(t, "Kenya", ke.Name)
	assert.Equal(t, "KES", ke.Currency)
	assert.True(t, ke.SupportsRecurring)

	// Lookup is case-insensitive
	_, err = svc.Get("ke")
	assert.NoError(t, err)

	_, err = svc.Get("XX")
	assert.ErrorIs(t, err, domain.ErrCountryNotFound)
}

func TestAllCountriesSorted(t *testing.T) {
	all := NewService().All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Code, all[i].Code)
	}
}

func TestSupportsRecurring(t *testing.T) {
	svc := NewService()

	assert.True(t, svc.SupportsRecurring("ZM"))
	assert.True(t, svc.SupportsRecurring("KE"))

	// Ethiopia, Malawi and Côte d'Ivoire have no recurring support
	assert.False(t, svc.SupportsRecurring("ET"))
	assert.False(t, svc.SupportsRecurring("MW"))
	assert.False(t, svc.SupportsRecurring("CI"))

	assert.False(t, svc.SupportsRecurring("XX"))
}

func TestCurrencyFor(t *testing.T) {
	svc := NewService()

	assert.Equal(t, "ZMW", svc.CurrencyFor("ZM"))
	assert.Equal(t, "USD", svc.CurrencyFor("ZW"))
	assert.Equal(t, DefaultCurrency, svc.CurrencyFor("XX"))
}

func TestFormatAmount(t *testing.T) {
	svc := NewService()

	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"1500", "KES", "KSh 1,500.00"},
		{"25000", "TZS", "TSh 25,000"},
		{"1234567.5", "ZMW", "K 1,234,567.50"},
		{"100", "UGX", "USh 100"},
		{"99.99", "USD", "$ 99.99"},
		{"50", "ABC", "ABC 50.00"},
	}

	for _, tt := range tests {
		amount, err := decimal.NewFromString(tt.amount)
		require.NoError(t, err)
		assert.Equal(t, tt.want, svc.FormatAmount(amount, tt.currency), "%s %s", tt.amount, tt.currency)
	}
}

func TestMobileProviders(t *testing.T) {
	svc := NewService()

	assert.Contains(t, svc.MobileProviders("KE"), "M-Pesa")
	assert.Empty(t, svc.MobileProviders("ZA"))
	assert.Nil(t, svc.MobileProviders("XX"))
}
