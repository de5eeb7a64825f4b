package errors

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeTransport    ErrorType = "TRANSPORT_FAILURE"
	ErrTypeParse        ErrorType = "PARSE_FAILURE"
	ErrTypeAutomation   ErrorType = "AUTOMATION_FAILURE"
	ErrTypeBlocked      ErrorType = "BLOCKED_OR_CHALLENGED"
	ErrTypeInvalidInput ErrorType = "INVALID_INPUT"
)

// ScrapeError classifies a failure inside the scraping pipeline. None of these
// are fatal to a run; callers log them and degrade to zero results.
type ScrapeError struct {
	Type    ErrorType
	Message string
	Err     error
	Stack   []byte
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

func (e *ScrapeError) StackTrace() []byte {
	return e.Stack
}

func New(errType ErrorType, message string, err error) *ScrapeError {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &ScrapeError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func Transport(message string, err error) *ScrapeError {
	return New(ErrTypeTransport, message, err)
}

func Parse(message string, err error) *ScrapeError {
	return New(ErrTypeParse, message, err)
}

func Automation(message string, err error) *ScrapeError {
	return New(ErrTypeAutomation, message, err)
}

func Blocked(message string, err error) *ScrapeError {
	return New(ErrTypeBlocked, message, err)
}

func InvalidInput(message string, err error) *ScrapeError {
	return New(ErrTypeInvalidInput, message, err)
}

// TypeOf returns the type of the first ScrapeError in err's chain, or an
// empty ErrorType when there is none.
func TypeOf(err error) ErrorType {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// StackOf returns the stack recorded on the first ScrapeError in err's chain.
func StackOf(err error) []byte {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Stack
	}
	return nil
}
