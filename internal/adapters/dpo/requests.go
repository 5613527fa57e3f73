package dpo

import "encoding/xml"

// Every request document shares the API3G root with CompanyToken and the
// Request discriminator as siblings. One typed builder per operation keeps
// element names out of the orchestration code.

const (
	requestCreateToken     = "createToken"
	requestVerifyToken     = "verifyToken"
	requestCancelToken     = "cancelToken"
	requestRefundToken     = "refundToken"
	requestCreateRecurring = "createRecurring"
	requestUpdateRecurring = "updateRecurring"
	requestCancelRecurring = "cancelRecurring"
	requestGetBalance      = "getBalance"
)

type createTokenRequest struct {
	XMLName      xml.Name         `xml:"API3G"`
	CompanyToken string           `xml:"CompanyToken"`
	Request      string           `xml:"Request"`
	Transaction  transactionBlock `xml:"Transaction"`
	Services     servicesBlock    `xml:"Services"`
	Additional   *additionalBlock `xml:"Additional,omitempty"`
}

type transactionBlock struct {
	PaymentAmount     string `xml:"PaymentAmount"`
	PaymentCurrency   string `xml:"PaymentCurrency"`
	CompanyRef        string `xml:"CompanyRef"`
	RedirectURL       string `xml:"RedirectURL"`
	BackURL           string `xml:"BackURL"`
	CompanyRefUnique  string `xml:"CompanyRefUnique"`
	PTL               string `xml:"PTL"`
	CustomerEmail     string `xml:"customerEmail,omitempty"`
	CustomerPhone     string `xml:"customerPhone,omitempty"`
	CustomerFirstName string `xml:"customerFirstName,omitempty"`
	CustomerLastName  string `xml:"customerLastName,omitempty"`
	CustomerCountry   string `xml:"customerCountry,omitempty"`
}

type servicesBlock struct {
	Services []serviceBlock `xml:"Service"`
}

type serviceBlock struct {
	ServiceType        string `xml:"ServiceType"`
	ServiceDescription string `xml:"ServiceDescription"`
	ServiceDate        string `xml:"ServiceDate"`
}

type additionalBlock struct {
	BlockPayment      string `xml:"BlockPayment"`
	RecurringPayment  string `xml:"RecurringPayment"`
	ChargeImmediately string `xml:"ChargeImmediately,omitempty"`
}

type verifyTokenRequest struct {
	XMLName          xml.Name `xml:"API3G"`
	CompanyToken     string   `xml:"CompanyToken"`
	Request          string   `xml:"Request"`
	TransactionToken string   `xml:"TransactionToken"`
	CompanyRef       string   `xml:"CompanyRef,omitempty"`
}

type cancelTokenRequest struct {
	XMLName          xml.Name `xml:"API3G"`
	CompanyToken     string   `xml:"CompanyToken"`
	Request          string   `xml:"Request"`
	TransactionToken string   `xml:"TransactionToken"`
	CompanyRef       string   `xml:"CompanyRef,omitempty"`
}

type refundTokenRequest struct {
	XMLName          xml.Name `xml:"API3G"`
	CompanyToken     string   `xml:"CompanyToken"`
	Request          string   `xml:"Request"`
	TransactionToken string   `xml:"TransactionToken"`
	RefundAmount     string   `xml:"refundAmount"`
	CompanyRef       string   `xml:"CompanyRef,omitempty"`
	RefundDetails    string   `xml:"refundDetails,omitempty"`
}

type createRecurringRequest struct {
	XMLName      xml.Name          `xml:"API3G"`
	CompanyToken string            `xml:"CompanyToken"`
	Request      string            `xml:"Request"`
	Subscription subscriptionBlock `xml:"Subscription"`
}

type subscriptionBlock struct {
	SubscriptionAmount    string `xml:"SubscriptionAmount"`
	SubscriptionCurrency  string `xml:"SubscriptionCurrency"`
	SubscriptionFrequency string `xml:"SubscriptionFrequency"`
	SubscriptionStartDate string `xml:"SubscriptionStartDate"`
	SubscriptionEndDate   string `xml:"SubscriptionEndDate,omitempty"`
	CustomerEmail         string `xml:"customerEmail,omitempty"`
	CustomerFirstName     string `xml:"customerFirstName,omitempty"`
	CustomerLastName      string `xml:"customerLastName,omitempty"`
}

type updateRecurringRequest struct {
	XMLName               xml.Name `xml:"API3G"`
	CompanyToken          string   `xml:"CompanyToken"`
	Request               string   `xml:"Request"`
	SubscriptionID        string   `xml:"SubscriptionID"`
	SubscriptionAmount    string   `xml:"SubscriptionAmount,omitempty"`
	SubscriptionFrequency string   `xml:"SubscriptionFrequency,omitempty"`
	SubscriptionEndDate   string   `xml:"SubscriptionEndDate,omitempty"`
}

type cancelRecurringRequest struct {
	XMLName        xml.Name `xml:"API3G"`
	CompanyToken   string   `xml:"CompanyToken"`
	Request        string   `xml:"Request"`
	SubscriptionID string   `xml:"SubscriptionID"`
}

type getBalanceRequest struct {
	XMLName      xml.Name `xml:"API3G"`
	CompanyToken string   `xml:"CompanyToken"`
	Request      string   `xml:"Request"`
	Currency     string   `xml:"Currency,omitempty"`
}
