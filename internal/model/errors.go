package model

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrImageDecode   = errors.New("image decode error")
	ErrIO            = errors.New("io error")
	ErrConfiguration = errors.New("configuration error")
)

// Error is a failure of one image or filesystem operation.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IOError wraps err as an ErrIO failure of op on path.
func IOError(op, path string, err error) error {
	return &Error{Kind: ErrIO, Op: op, Path: path, Err: err}
}

// DecodeError wraps err as an ErrImageDecode failure of op on path.
func DecodeError(op, path string, err error) error {
	return &Error{Kind: ErrImageDecode, Op: op, Path: path, Err: err}
}

// ConfigError wraps err as an ErrConfiguration failure.
func ConfigError(op string, err error) error {
	return &Error{Kind: ErrConfiguration, Op: op, Err: err}
}
