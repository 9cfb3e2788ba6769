package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCancelled    = errors.New("platform: cancelled by user")
	ErrNotSupported = errors.New("platform: not supported on this host")
)

// Well-known codes native hosts report.
const (
	CodeCancelled        = "cancelled"
	CodeAlreadyFinalized = "already_finalized"
	CodeInvalidProduct   = "invalid_product"
)

// Error is a collaborator failure carrying the SDK's own error code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "":
		return e.Code
	case e.Code == "":
		return e.Message
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Code == CodeCancelled {
		return ErrCancelled
	}
	return nil
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ParseError turns the "code: message" strings native hosts raise across
// the gomobile boundary into an *Error. Strings without a code prefix keep
// the whole text as the message.
func ParseError(err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	text := err.Error()
	code, msg, ok := strings.Cut(text, ":")
	if !ok || strings.ContainsAny(code, " \t") || code == "" {
		return &Error{Message: text, Err: err}
	}
	return &Error{Code: strings.TrimSpace(code), Message: strings.TrimSpace(msg), Err: err}
}

// CodeOf returns the collaborator error code if one is attached.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || CodeOf(err) == CodeCancelled
}

func IsAlreadyFinalized(err error) bool {
	return CodeOf(err) == CodeAlreadyFinalized
}

// Message returns a user-presentable message for err.
func Message(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	if err == nil {
		return ""
	}
	return fmt.Sprint(err)
}
