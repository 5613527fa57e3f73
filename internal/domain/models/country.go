package models

// Country is static reference data describing how the gateway operates in one
// market: which currency applies, which mobile money providers exist, and
// whether recurring billing is offered there.
type Country struct {
	Code              string
	Name              string
	Currency          string
	MobileProviders   []string
	SupportsRecurring bool
	VATRate           float64
}

// Currency describes display formatting for a currency.
type Currency struct {
	Code     string
	Symbol   string
	Decimals int
}
