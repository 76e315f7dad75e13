package dto

import (
	"errors"
	"testing"

	"github.com/vurg/notification-service/app/entity"
)

func TestParseBookingValid(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"patientName":"Alex","patientEmail":"alex@ok.com","dentistName":"Dr. Lee","date":"2024-05-01T00:00:00","time":"10:00","message":"checkup","status":"BOOKED"}`)

	ev, err := ParseBooking(payload)
	if err != nil {
		t.Fatalf("ParseBooking returned error: %v", err)
	}

	want := entity.AppointmentEvent{
		PatientName:  "Alex",
		PatientEmail: "alex@ok.com",
		DentistName:  "Dr. Lee",
		Date:         "2024-05-01",
		Time:         "10:00",
		Message:      "checkup",
		Status:       entity.StatusBooked,
	}
	if ev != want {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseBookingDefaults(t *testing.T) {
	t.Parallel()

	ev, err := ParseBooking([]byte(`{"patientEmail":"a@b.com","status":"RESCHEDULED"}`))
	if err != nil {
		t.Fatalf("ParseBooking returned error: %v", err)
	}
	if ev.PatientName != entity.DefaultPatientName {
		t.Fatalf("expected default name, got %q", ev.PatientName)
	}
	if ev.Status != entity.StatusUnknown {
		t.Fatalf("expected UNKNOWN status, got %q", ev.Status)
	}
}

func TestParseBookingMissingEmail(t *testing.T) {
	t.Parallel()

	ev, err := ParseBooking([]byte(`{"status":"BOOKED"}`))
	if err != nil {
		t.Fatalf("missing email must not be a parse error: %v", err)
	}
	if ev.PatientEmail != "" {
		t.Fatalf("expected empty email, got %q", ev.PatientEmail)
	}
}

func TestParseBookingMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "not json", payload: []byte("not-json")},
		{name: "truncated", payload: []byte(`{"status":"BOOKED"`)},
		{name: "array", payload: []byte(`[1,2,3]`)},
		{name: "null", payload: []byte(`null`)},
		{name: "empty", payload: nil},
		{name: "wrong type", payload: []byte(`{"patientEmail":42}`)},
		{name: "invalid utf8", payload: []byte{'{', 0xff, '}'}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseBooking(tc.payload)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
		})
	}
}
