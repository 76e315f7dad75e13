package service

import (
	"fmt"

	"github.com/vurg/notification-service/app/entity"
)

const (
	SubjectConfirmation = "Appointment Confirmation"
	SubjectCancellation = "Appointment Cancelled"
)

// Composer renders the status-specific subject and body.
type Composer struct {
	signature string
}

// NewComposer builds a composer that signs messages with signature.
func NewComposer(signature string) *Composer {
	return &Composer{signature: signature}
}

// Compose returns subject and body for a BOOKED or CANCELED event.
func (c *Composer) Compose(ev entity.AppointmentEvent) (string, string, error) {
	switch ev.Status {
	case entity.StatusBooked:
		body := fmt.Sprintf("Hello %s,\n\nYour dentist appointment is scheduled for %s at %s at %s. \n\nReason: %s \n\nThanks,\n%s",
			ev.PatientName, ev.Date, ev.Time, ev.DentistName, ev.Message, c.signature)
		return SubjectConfirmation, body, nil
	case entity.StatusCanceled:
		body := fmt.Sprintf("Hello %s,\n\nYour dentist appointment scheduled for %s at %s has been canceled at %s. \n\nThanks,\n%s",
			ev.PatientName, ev.Date, ev.Time, ev.DentistName, c.signature)
		return SubjectCancellation, body, nil
	default:
		return "", "", fmt.Errorf("no message template for status %q", ev.Status)
	}
}
