package upstream

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindNetwork Kind = iota + 1
	KindUnauthorized
	KindBusiness
	KindValidation
	KindUpstream
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindBusiness:
		return "business"
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

const (
	MsgConnection   = "connection error, please try again"
	MsgTokenExpired = "token invalid or expired, please sign in again"
	MsgUpstream     = "the service is temporarily unavailable"
	MsgDecode       = "unexpected response from the service"
)

// Error is the single failure type returned by Client. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (status %d): %s: %v", e.Kind, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an upstream error anywhere in err's chain, or 0.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return 0
}

// MessageOf returns the user-facing message of an upstream error, or fallback.
func MessageOf(err error, fallback string) string {
	var ue *Error
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	return fallback
}

// Validation builds a client-side validation error; no request is sent.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}
