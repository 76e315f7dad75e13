package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/vurg/notification-service/app/entity"
)

var errNotObject = errors.New("payload is not a JSON object")

// ParseError reports a payload that is not a well-formed booking message.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse booking payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// BookingMessage is the wire shape published on the booking topic. Pointers
// distinguish absent fields from empty ones.
type BookingMessage struct {
	PatientName  *string `json:"patientName"`
	PatientEmail *string `json:"patientEmail"`
	DentistName  *string `json:"dentistName"`
	Date         *string `json:"date"`
	Time         *string `json:"time"`
	Message      *string `json:"message"`
	Status       *string `json:"status"`
}

// ParseBooking decodes a raw broker payload into an appointment event.
func ParseBooking(payload []byte) (entity.AppointmentEvent, error) {
	if !utf8.Valid(payload) {
		return entity.AppointmentEvent{}, &ParseError{Err: errors.New("payload is not valid UTF-8")}
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return entity.AppointmentEvent{}, &ParseError{Err: errNotObject}
	}

	var msg BookingMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return entity.AppointmentEvent{}, &ParseError{Err: err}
	}
	return msg.toEvent(), nil
}

// toEvent applies defaults and normalization.
func (m BookingMessage) toEvent() entity.AppointmentEvent {
	name := value(m.PatientName)
	if name == "" {
		name = entity.DefaultPatientName
	}

	return entity.AppointmentEvent{
		PatientName:  name,
		PatientEmail: value(m.PatientEmail),
		DentistName:  value(m.DentistName),
		Date:         entity.NormalizeDate(value(m.Date)),
		Time:         value(m.Time),
		Message:      value(m.Message),
		Status:       entity.ParseStatus(value(m.Status)),
	}
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
