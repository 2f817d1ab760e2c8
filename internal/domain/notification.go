package domain

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a transient message shown to the customer as a toast.
type Notification struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// QRCode references a rendered QR image for a payload.
type QRCode struct {
	Payload  string `json:"payload"`
	ImageURL string `json:"image_url"`
	Size     int    `json:"size"`
}
