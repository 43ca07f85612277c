package omnik

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("omnik: invalid configuration")
	ErrAuth          = errors.New("omnik: a username and/or password is missing")
	ErrConnection    = errors.New("omnik: error communicating with the inverter")
	ErrProtocol      = errors.New("omnik: unexpected response from the inverter")
	ErrParse         = errors.New("omnik: could not parse the inverter response")
)

// ProtocolError reports a response the client refuses to parse.
type ProtocolError struct {
	StatusCode  int
	ContentType string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode >= 300 || e.StatusCode < 200 {
		return fmt.Sprintf("%s: status %d", ErrProtocol, e.StatusCode)
	}
	return fmt.Sprintf("%s: content type %q", ErrProtocol, e.ContentType)
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

type ParseError struct {
	Source SourceType
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): field %s: %v", ErrParse, e.Source, e.Field, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrParse, e.Source, e.Err)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errMissing = errors.New("missing value")

func parseErr(source SourceType, field string, err error) error {
	return &ParseError{Source: source, Field: field, Err: err}
}
