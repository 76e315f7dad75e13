// Package calendar renders appointment events as iCalendar attachments.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/vurg/notification-service/app/entity"
)

const (
	Filename  = "appointment.ics"
	productID = "-//ToothCheck//Notification Service//EN"
)

var ErrUnsupportedStatus = errors.New("calendar artifact requires BOOKED or CANCELED status")

// ArtifactError reports that the calendar attachment could not be produced.
type ArtifactError struct {
	Err error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("build calendar artifact: %v", e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// Generator builds ICS attachments. The zero value is not usable; use
// NewGenerator.
type Generator struct {
	location  *time.Location
	duration  time.Duration
	organizer string
	now       func() time.Time
}

// NewGenerator constructs a generator that interprets event dates in loc and
// gives every appointment the given duration.
func NewGenerator(loc *time.Location, duration time.Duration, organizer string) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	if duration <= 0 {
		duration = time.Hour
	}
	return &Generator{location: loc, duration: duration, organizer: organizer, now: time.Now}
}

// Generate renders the event as a single-VEVENT calendar. BOOKED produces a
// METHOD:REQUEST invite and CANCELED a METHOD:CANCEL for the same UID.
func (g *Generator) Generate(ev entity.AppointmentEvent) (entity.Attachment, error) {
	var (
		method ics.Method
		status ics.ObjectStatus
	)
	switch ev.Status {
	case entity.StatusBooked:
		method, status = ics.MethodRequest, ics.ObjectStatusConfirmed
	case entity.StatusCanceled:
		method, status = ics.MethodCancel, ics.ObjectStatusCancelled
	default:
		return entity.Attachment{}, &ArtifactError{Err: ErrUnsupportedStatus}
	}

	start, allDay, err := g.startTime(ev.Date, ev.Time)
	if err != nil {
		return entity.Attachment{}, &ArtifactError{Err: err}
	}

	cal := ics.NewCalendar()
	cal.SetMethod(method)
	cal.SetProductId(productID)

	stamp := g.now().UTC()
	event := cal.AddEvent(EventUID(ev))
	event.SetCreatedTime(stamp)
	event.SetDtStampTime(stamp)
	if allDay {
		event.SetAllDayStartAt(start)
		event.SetAllDayEndAt(start.AddDate(0, 0, 1))
	} else {
		event.SetStartAt(start)
		event.SetEndAt(start.Add(g.duration))
	}
	event.SetSummary(summary(ev))
	event.SetLocation(ev.DentistName)
	event.SetDescription(ev.Message)
	event.SetStatus(status)
	if g.organizer != "" {
		event.SetOrganizer("mailto:" + g.organizer)
	}
	if ev.PatientEmail != "" {
		event.AddAttendee("mailto:" + ev.PatientEmail)
	}

	return entity.Attachment{
		Filename:    Filename,
		ContentType: "text/calendar; charset=UTF-8; method=" + string(method),
		Data:        []byte(cal.Serialize()),
	}, nil
}

// EventUID derives a stable UID so that a cancellation replaces the original
// invitation in the recipient's calendar.
func EventUID(ev entity.AppointmentEvent) string {
	key := strings.Join([]string{ev.PatientEmail, ev.DentistName, ev.Date, ev.Time}, "|")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String() + "@notification-service"
}

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"15:04:05Z07:00",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
	"15.04",
}

// startTime resolves the appointment start. A time of day that cannot be
// read still yields an all-day event on the given date; only a missing or
// malformed date is an error.
func (g *Generator) startTime(date, clock string) (time.Time, bool, error) {
	if date == "" {
		return time.Time{}, false, errors.New("appointment date is empty")
	}
	day, err := time.ParseInLocation("2006-01-02", date, g.location)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("unrecognized appointment date %q: %w", date, err)
	}

	clock = strings.ToUpper(strings.TrimSpace(clock))
	if clock == "" {
		return day, true, nil
	}
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, clock, g.location); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, g.location), false, nil
		}
	}
	return day, true, nil
}

func summary(ev entity.AppointmentEvent) string {
	if ev.Status == entity.StatusCanceled {
		return "Cancelled: Dentist appointment at " + ev.DentistName
	}
	return "Dentist appointment at " + ev.DentistName
}
