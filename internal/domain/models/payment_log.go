package models

import "time"

// LogDirection classifies which side of a gateway exchange a log entry records
type LogDirection string

const (
	DirectionRequest  LogDirection = "request"
	DirectionResponse LogDirection = "response"
	DirectionCallback LogDirection = "callback"
)

// PaymentLog is one append-only audit record of a gateway exchange.
// The core only ever writes these; nothing reads them back.
type PaymentLog struct {
	ID         string
	Reference  string
	Token      string
	Action     string
	Direction  LogDirection
	Payload    map[string]string
	Response   map[string]string
	StatusCode string
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}
