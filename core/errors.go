package core

import "errors"

// Code is a short, stable error identifier. It is what the console prints
// after "err " and what host tools match on.
type Code string

func (c Code) Error() string { return string(c) }

const (
	InvalidID      Code = "invalid_id"
	OutOfRange     Code = "out_of_range"
	Malformed      Code = "malformed"
	Conflict       Code = "conflict"
	Busy           Code = "busy"
	UnknownCommand Code = "unknown_command"
	BadArgs        Code = "bad_args"
	Failed         Code = "error" // generic fallback
)

// E wraps a Code with the operation that failed and optional detail.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }

// Is lets errors.Is(err, OutOfRange) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// CodeOf extracts the Code from err, defaulting to Failed.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) {
		return e.C
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Failed
}

func fail(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}
