package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a delivery failure.
type Kind string

const (
	KindCredential Kind = "credential"
	KindTransport  Kind = "transport"
	KindProvider   Kind = "provider"
)

// Sentinels for errors.Is checks against a *DeliveryError.
var (
	ErrDelivery   = errors.New("delivery failed")
	ErrCredential = errors.New("delivery credential error")
	ErrTransport  = errors.New("delivery transport error")
	ErrProvider   = errors.New("delivery provider error")
)

// DeliveryError is returned by providers when a prepared message could not be
// delivered.
type DeliveryError struct {
	Kind     Kind
	Provider string
	Err      error
}

// NewDeliveryError wraps err with the given kind. A nil err yields nil.
func NewDeliveryError(provider string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &DeliveryError{Kind: kind, Provider: provider, Err: err}
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Is matches ErrDelivery for every kind and the kind-specific sentinel.
func (e *DeliveryError) Is(target error) bool {
	switch target {
	case ErrDelivery:
		return true
	case ErrCredential:
		return e.Kind == KindCredential
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrProvider:
		return e.Kind == KindProvider
	}
	return false
}

// KindOf returns the delivery kind of err, or "" when err is not a
// DeliveryError.
func KindOf(err error) Kind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
