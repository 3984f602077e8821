package errors

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeSessionLaunch     ErrorType = "SESSION_LAUNCH"
	ErrTypeNavigationTimeout ErrorType = "NAVIGATION_TIMEOUT"
	ErrTypeNavigationFailed  ErrorType = "NAVIGATION_FAILED"
	ErrTypeSessionLost       ErrorType = "SESSION_LOST"
	ErrTypePersistence       ErrorType = "PERSISTENCE"
	ErrTypeRunFault          ErrorType = "RUN_FAULT"
	ErrTypeInvalidInput      ErrorType = "INVALID_INPUT"
)

type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Stack   []byte
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

func New(errType ErrorType, message string, err error) *DomainError {
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

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

// IsType reports whether any DomainError in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var de *DomainError
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Type == errType {
			return true
		}
		err = de.Err
	}
	return false
}

func SessionLaunch(message string, err error) *DomainError {
	return New(ErrTypeSessionLaunch, message, err)
}

func NavigationTimeout(message string, err error) *DomainError {
	return New(ErrTypeNavigationTimeout, message, err)
}

func NavigationFailed(message string, err error) *DomainError {
	return New(ErrTypeNavigationFailed, message, err)
}

func SessionLost(message string, err error) *DomainError {
	return New(ErrTypeSessionLost, message, err)
}

func Persistence(message string, err error) *DomainError {
	return New(ErrTypePersistence, message, err)
}

func RunFault(message string, err error) *DomainError {
	return New(ErrTypeRunFault, message, err)
}

func InvalidInput(message string, err error) *DomainError {
	return New(ErrTypeInvalidInput, message, err)
}
