package services

import (
	"errors"
)

// ErrorKind классифицирует ошибку сервиса; HTTP слой отображает вид в код ответа
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindInvalidArgument
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "Internal"
	}
}

// Error - ошибка сервиса с явным видом
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func InvalidArgumentError(message string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: message}
}

func UnavailableError(message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Err: err}
}

func InternalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf возвращает вид ошибки; ошибки без вида считаются внутренними
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// MessageOf возвращает текст, безопасный для показа клиенту
func MessageOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		if svcErr.Kind == KindInternal {
			return "internal server error"
		}
		return svcErr.Message
	}
	return "internal server error"
}

var (
	ErrAmountNotPositive   = InvalidArgumentError("amount must be positive")
	ErrSameAccount         = InvalidArgumentError("cannot transfer to same account")
	ErrSourceNotFound      = NotFoundError("source account does not exist")
	ErrDestinationNotFound = NotFoundError("destination account does not exist")
	ErrInsufficientFunds   = InvalidArgumentError("insufficient funds")
	ErrAmountPrecision     = InvalidArgumentError("amount must have at most 2 decimal places")
	ErrAmountTooLarge      = InvalidArgumentError("amount exceeds the maximum allowed value")
	ErrBalanceLimit        = InvalidArgumentError("destination balance limit exceeded")

	ErrDepositNotPositive = InvalidArgumentError("initial deposit must be positive")
	ErrDepositPrecision   = InvalidArgumentError("initial deposit must have at most 2 decimal places")
	ErrDepositTooLarge    = InvalidArgumentError("initial deposit exceeds the maximum allowed value")
	ErrCustomerNotFound   = NotFoundError("customer does not exist")
	ErrAccountNotFound    = NotFoundError("account does not exist")

	ErrInvalidCredentials = InvalidArgumentError("invalid credentials")
)
