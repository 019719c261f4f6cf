package apperr

import "fmt"

// Kind classifies a failure for the propagation boundary. There is no
// per-kind recovery policy below that boundary; components wrap once and
// return.
type Kind string

const (
	KindConfig Kind = "config"
	KindData   Kind = "data"
	KindIO     Kind = "io"
	KindModel  Kind = "model"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
		}
		return e.Err.Error()
	}
	if e.Op != "" {
		return e.Op
	}
	return string(e.Kind) + " error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Config(op string, err error) *Error { return New(KindConfig, op, err) }
func Data(op string, err error) *Error   { return New(KindData, op, err) }
func IO(op string, err error) *Error     { return New(KindIO, op, err) }
func Model(op string, err error) *Error  { return New(KindModel, op, err) }

// KindOf reports the Kind of err if it is (or wraps) an *Error, and the
// empty Kind otherwise.
func KindOf(err error) Kind {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			return ae.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ""
}
