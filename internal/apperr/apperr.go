package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindContentBlocked   Kind = "ContentBlocked"
	KindNoImageReturned  Kind = "NoImageReturned"
	KindGenerationFailed Kind = "GenerationFailed"
	KindUnknown          Kind = "Unknown"
)

const (
	MsgInvalidType      = "Invalid file type. Please upload a JPG or PNG image."
	MsgContentBlocked   = "The request was blocked due to safety settings. Please use a different photo."
	MsgNoImageReturned  = "The AI did not return an image. Please try a different photo."
	MsgGenerationFailed = "Failed to generate image. The AI may be busy, please try again."
	MsgUnknown          = "An unknown error occurred during image generation."
)

// Error is a classified failure. Message is safe to show to the user as is;
// Cause keeps the underlying error for logs.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, op, message string) *Error {
	if message == "" {
		message = defaultMessage(kind)
	}
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// Wrap classifies err. An error that already carries a classification is
// returned unchanged so the first classifier wins.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: defaultMessage(kind),
		Cause:   err,
	}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the text shown to the end user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) && typed.Message != "" {
		return typed.Message
	}
	return MsgUnknown
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindValidation:
		return MsgInvalidType
	case KindContentBlocked:
		return MsgContentBlocked
	case KindNoImageReturned:
		return MsgNoImageReturned
	case KindGenerationFailed:
		return MsgGenerationFailed
	default:
		return MsgUnknown
	}
}
