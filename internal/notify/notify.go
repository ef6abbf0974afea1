package notify

import "embed"

const (
	FromName = "Bazaar"

	maxRetries = 3

	BookingReceiptTemplate = "booking_receipt.tmpl"
	OrderReceiptTemplate   = "order_receipt.tmpl"
)

//go:embed "templates"
var FS embed.FS

// EmailClient sends a templated email. The int return is the provider's
// status code, useful in logs.
type EmailClient interface {
	Send(templateFile, username, email string, data any) (int, error)
}

// SMSClient delivers short texts, primarily login codes.
type SMSClient interface {
	SendSMS(phone, message string) error
}
