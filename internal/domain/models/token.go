package models

// TokenResponse is the ephemeral value object returned by gateway token
// creation. Its fields are copied onto the Transaction; it is never persisted
// on its own.
type TokenResponse struct {
	Token       string
	TransRef    string
	ResultCode  string
	Explanation string
	PaymentURL  string
}

// Balance is the merchant account balance reported by the gateway.
type Balance struct {
	Currency  string
	Balance   float64
	Available float64
	Reserved  float64
}
