package filter

import (
	"strings"

	"github.com/vurg/notification-service/app/entity"
)

// Reason explains why an event was or was not authorized.
type Reason string

const (
	ReasonAuthorized   Reason = "authorized"
	ReasonUnknown      Reason = "unknown_status"
	ReasonNoRecipient  Reason = "missing_recipient"
	ReasonNotPermitted Reason = "recipient_not_permitted"
)

// Decision is the outcome of authorizing one event.
type Decision struct {
	Eligible bool
	Reason   Reason
}

// Allowlist is the immutable set of recipient addresses permitted to receive
// notifications. Matching is exact and case-sensitive.
type Allowlist struct {
	addresses map[string]struct{}
}

// NewAllowlist builds an allowlist from the given addresses. Surrounding
// whitespace is trimmed and empty entries are ignored.
func NewAllowlist(addresses []string) *Allowlist {
	set := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		set[addr] = struct{}{}
	}
	return &Allowlist{addresses: set}
}

// ParseAllowlist builds an allowlist from a comma-separated list.
func ParseAllowlist(csv string) *Allowlist {
	return NewAllowlist(strings.Split(csv, ","))
}

// Len returns the number of permitted addresses.
func (a *Allowlist) Len() int {
	return len(a.addresses)
}

// Contains reports whether email is permitted.
func (a *Allowlist) Contains(email string) bool {
	if email == "" {
		return false
	}
	_, ok := a.addresses[email]
	return ok
}

// Decide authorizes an event.
func (a *Allowlist) Decide(ev entity.AppointmentEvent) Decision {
	switch {
	case !ev.Status.Known():
		return Decision{Reason: ReasonUnknown}
	case ev.PatientEmail == "":
		return Decision{Reason: ReasonNoRecipient}
	case !a.Contains(ev.PatientEmail):
		return Decision{Reason: ReasonNotPermitted}
	default:
		return Decision{Eligible: true, Reason: ReasonAuthorized}
	}
}

// Eligible reports whether the event should be dispatched.
func (a *Allowlist) Eligible(ev entity.AppointmentEvent) bool {
	return a.Decide(ev).Eligible
}
