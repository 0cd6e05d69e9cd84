// Package classify decides how a failed statement should be treated.
//
// A statement error is either fatal, a duplicate-object error that makes a
// re-run safe to continue, or a signal that the connection cannot execute a
// whole script in one call. Engine error codes are checked first; message
// matching is only a secondary signal because messages vary across engines
// and locales.
package classify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Kind is the outcome of classifying an error.
type Kind int

const (
	Fatal Kind = iota
	DuplicateObject
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case DuplicateObject:
		return "duplicate_object"
	case Unsupported:
		return "unsupported"
	default:
		return "fatal"
	}
}

// ErrUnsupported is returned by a connection that cannot execute a
// multi-statement script natively.
var ErrUnsupported = errors.New("multi-statement execution not supported")

// Classifier maps an execution error to a Kind.
type Classifier interface {
	Classify(err error) Kind
}

// Func adapts a plain function to Classifier.
type Func func(error) Kind

func (f Func) Classify(err error) Kind { return f(err) }

// Error is an engine-neutral database error carrying a numeric code.
type Error struct {
	Number  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("error %d: %s", e.Number, e.Message)
}

// Rules classifies duplicate-object errors by numeric code, SQLSTATE or
// message substring, in that order.
type Rules struct {
	Codes    []int
	States   []string
	Messages []string
}

func (r Rules) Classify(err error) Kind {
	if err == nil {
		return Fatal
	}
	if errors.Is(err, ErrUnsupported) {
		return Unsupported
	}
	if code, ok := Code(err); ok {
		for _, c := range r.Codes {
			if c == code {
				return DuplicateObject
			}
		}
	}
	if state, ok := SQLState(err); ok {
		for _, s := range r.States {
			if s == state {
				return DuplicateObject
			}
		}
	}
	msg := strings.ToLower(Message(err))
	for _, m := range r.Messages {
		if strings.Contains(msg, m) {
			return DuplicateObject
		}
	}
	return Fatal
}

// Code extracts the engine's numeric error code.
func Code(err error) (int, bool) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return int(myErr.Number), true
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Number, true
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code(), true
	}
	return 0, false
}

// SQLState extracts a five character SQLSTATE, when the driver exposes one.
func SQLState(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}
	return "", false
}

// Message returns the human-readable part of a database error.
func Message(err error) string {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Message
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Message
	}
	return err.Error()
}
