package entity

import "unicode/utf8"

// Status is the lifecycle state carried by an appointment event.
type Status string

const (
	StatusBooked   Status = "BOOKED"
	StatusCanceled Status = "CANCELED"
	StatusUnknown  Status = "UNKNOWN"
)

// DefaultPatientName is used when the event carries no patient name.
const DefaultPatientName = "Sir/Madam"

const dateLength = 10

// ParseStatus maps a raw status literal to a Status. Anything that is not
// one of the recognized literals maps to StatusUnknown.
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusBooked:
		return StatusBooked
	case StatusCanceled:
		return StatusCanceled
	default:
		return StatusUnknown
	}
}

// Known reports whether the status is BOOKED or CANCELED.
func (s Status) Known() bool {
	return s == StatusBooked || s == StatusCanceled
}

// AppointmentEvent is one appointment lifecycle notification. It is passed by
// value and never modified after parsing.
type AppointmentEvent struct {
	PatientName  string
	PatientEmail string
	DentistName  string
	Date         string
	Time         string
	Message      string
	Status       Status
}

// NormalizeDate keeps the calendar date portion (first 10 characters) of a
// date or timestamp string. Applying it twice yields the same value.
func NormalizeDate(raw string) string {
	if utf8.RuneCountInString(raw) <= dateLength {
		return raw
	}
	return string([]rune(raw)[:dateLength])
}
