package entity

// Attachment is a file attached to an outbound notification.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
