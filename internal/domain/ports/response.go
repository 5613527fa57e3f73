package ports

// ResultSuccess is the one gateway result code that denotes success.
const ResultSuccess = "000"

// Response is a gateway XML response decoded into a flat string-keyed map.
// Nested elements collapse onto their leaf element names. Every well-formed
// response carries at least a Result field.
type Response map[string]string

// ResultCode returns the gateway result code.
func (r Response) ResultCode() string {
	return r["Result"]
}

// ResultExplanation returns the gateway-supplied explanation string.
func (r Response) ResultExplanation() string {
	return r["ResultExplanation"]
}

// IsSuccess reports whether the gateway accepted the operation.
func (r Response) IsSuccess() bool {
	return r.ResultCode() == ResultSuccess
}

// Token returns the transaction token issued by the gateway, if any.
func (r Response) Token() string {
	return r["TransToken"]
}

// TransRef returns the gateway-assigned transaction reference, if any.
func (r Response) TransRef() string {
	return r["TransRef"]
}

// IsApproved reports whether the response carries a positive approval flag.
// Verification success requires both a "000" result and approval.
func (r Response) IsApproved() bool {
	switch r["TransactionApproval"] {
	case "", "0", "N", "NO":
		return false
	}
	return true
}
